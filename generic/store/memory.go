// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/agenda/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps tables in process memory. Every call copies rows in and out,
// so callers never share slices with the store.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memoryTable
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memoryTable)}
}

// Table returns the named table, creating it on first use.
func (m *Memory) Table(_ context.Context, name string) (generic.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tables[name]
	if !ok {
		t = &memoryTable{name: name}
		m.tables[name] = t
	}
	return t, nil
}

// Names lists existing tables, sorted.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m *Memory) Close() error { return nil }

type memoryTable struct {
	name string
	mu   sync.RWMutex
	rows [][]string
}

func (t *memoryTable) Name() string { return t.name }

func (t *memoryTable) Header(_ context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.rows) == 0 {
		return nil, nil
	}
	return copyRow(t.rows[0]), nil
}

func (t *memoryTable) Rows(_ context.Context) ([][]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = copyRow(r)
	}
	return out, nil
}

func (t *memoryTable) Append(_ context.Context, rows [][]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, r := range rows {
		t.rows = append(t.rows, copyRow(r))
	}
	return nil
}

func (t *memoryTable) Prepend(_ context.Context, row []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = append([][]string{copyRow(row)}, t.rows...)
	return nil
}

func (t *memoryTable) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = nil
	return nil
}

// Replace swaps every row, header included, under one lock.
func (t *memoryTable) Replace(_ context.Context, rows [][]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([][]string, len(rows))
	for i, r := range rows {
		next[i] = copyRow(r)
	}
	t.rows = next
	return nil
}

func copyRow(r []string) []string {
	out := make([]string, len(r))
	copy(out, r)
	return out
}
