/*
store.go - Record store interfaces (flat tables of string cells)

PURPOSE:
  Defines the boundary between the reservation domain and whatever holds
  its tables. The contract is deliberately weak, modelled on a shared
  spreadsheet: read everything, append rows, prepend a row, clear.

KEY INTERFACES:
  RecordStore: Opens (and lazily creates) named tables
  Table:       Row-level operations on one table
  Replacer:    Optional all-or-nothing rewrite of a table

WHAT THE CONTRACT DOES NOT GIVE YOU:
  - No transactions across calls. Append and Clear are independent;
    only a table implementing Replacer swaps its content in one step.
  - No unique constraints. Duplicate rows are accepted.
  - No conditional writes. There is no "append if count < N".
  - Weak visibility. A row appended by one caller may not be visible
    to a concurrent reader yet.

  Anything that needs an invariant (capacity, exclusivity) must check it
  around these calls and accept that concurrent writers can slip past.

HEADER ROW:
  Row 0 of every table is a header. EnsureHeader writes it when the
  table is empty and inserts it when the first row is something else.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory, for tests and demos
  - store/sqlite/sqlite.go:  SQLite file or :memory:
  - store/postgres:          PostgreSQL via pgx

SEE ALSO:
  - errors.go: StorageError wraps every backend failure
  - agenda/repository.go: Reservation table on top of this
*/
package generic

import (
	"context"
	"strings"
)

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore hands out tables by name.
type RecordStore interface {
	// Table returns the named table, creating an empty one if absent.
	Table(ctx context.Context, name string) (Table, error)

	// Close releases backend resources.
	Close() error
}

// Table is an ordered list of rows. Row 0 is the header once EnsureHeader ran.
type Table interface {
	Name() string

	// Header returns the first row, or nil for an empty table.
	Header(ctx context.Context) ([]string, error)

	// Rows returns every row including the header, in order.
	Rows(ctx context.Context) ([][]string, error)

	// Append adds rows after the last row.
	Append(ctx context.Context, rows [][]string) error

	// Prepend inserts a row before the first row.
	Prepend(ctx context.Context, row []string) error

	// Clear removes every row, header included.
	Clear(ctx context.Context) error
}

// Replacer is implemented by tables that can swap their whole content at
// once. A failed Replace leaves the previous rows in place.
type Replacer interface {
	Replace(ctx context.Context, rows [][]string) error
}

// ReplaceRows rewrites t with rows, through Replace when t supports it and
// through Clear then Append otherwise.
func ReplaceRows(ctx context.Context, t Table, rows [][]string) error {
	if r, ok := t.(Replacer); ok {
		return r.Replace(ctx, rows)
	}
	if err := t.Clear(ctx); err != nil {
		return err
	}
	return t.Append(ctx, rows)
}

// =============================================================================
// HEADER ENFORCEMENT
// =============================================================================

// EnsureHeader makes sure row 0 of t is header.
//
// An empty table gets the header appended. A table whose first row already
// starts with header (case-insensitive, trimmed) is left alone. Anything
// else gets the header inserted above it; existing rows are not validated.
func EnsureHeader(ctx context.Context, t Table, header []string) error {
	first, err := t.Header(ctx)
	if err != nil {
		return err
	}

	if len(first) == 0 {
		return t.Append(ctx, [][]string{header})
	}

	if HeaderMatches(first, header) {
		return nil
	}
	return t.Prepend(ctx, header)
}

// HeaderMatches reports whether row starts with header, ignoring case and
// surrounding whitespace.
func HeaderMatches(row, header []string) bool {
	if len(row) < len(header) {
		return false
	}
	for i, h := range header {
		if !strings.EqualFold(strings.TrimSpace(row[i]), strings.TrimSpace(h)) {
			return false
		}
	}
	return true
}

// PadRow returns row extended with empty cells up to width.
func PadRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
