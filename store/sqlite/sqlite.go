/*
Package sqlite provides a SQLite-backed implementation of generic.RecordStore.

PURPOSE:
  Persists the flat tables the agenda works on (reservations, employees)
  as ordered rows of text cells. The backend deliberately offers nothing
  more than the spreadsheet it stands in for: read all, append rows,
  prepend one row, clear. No unique constraints on rows and no
  transaction spans an admission. A single Append or Replace runs in
  its own transaction, chunked into INSERTs of insertChunkRows rows.

KEY TABLES:
  sheets:     One row per logical table (name, created_at)
  sheet_rows: Ordered rows; cells are a JSON array of strings

ORDERING:
  Rows are read ORDER BY pos, id. Append takes MAX(pos)+1 onwards,
  Prepend takes MIN(pos)-1, Replace restarts at 1. Two concurrent appenders may share a pos;
  the autoincrement id keeps their order stable.

CONCURRENCY:
  Uses sync.RWMutex to serialise statements against the single SQLite
  connection. This protects the connection, not the admission rules:
  two admissions can still interleave between their reads and writes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  db, err := sqlite.New("./data/agenda.db")
  if err != nil {
      log.Fatal(err)
  }
  defer db.Close()

  repo := agenda.NewReservationRepository(db, "agenda")

SEE ALSO:
  - generic/store.go: RecordStore and Table interfaces
  - store/postgres: Same schema on PostgreSQL
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/agenda/generic"
)

// Store implements generic.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sheets (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sheet_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sheet TEXT NOT NULL REFERENCES sheets(name),
		pos INTEGER NOT NULL,
		cells TEXT NOT NULL
	);

	-- Not unique: duplicate rows and shared positions are allowed
	CREATE INDEX IF NOT EXISTS idx_sheet_rows_sheet_pos
		ON sheet_rows(sheet, pos, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (generic.RecordStore interface)
// =============================================================================

// Table returns the named table, registering it on first use.
func (s *Store) Table(ctx context.Context, name string) (generic.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := squirrel.Insert("sheets").
		Options("OR IGNORE").
		Columns("name", "created_at").
		Values(name, time.Now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, generic.Unavailable("open table "+name, err)
	}
	return &table{store: s, name: name}, nil
}

// Names lists registered tables.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, _ := squirrel.Select("name").From("sheets").OrderBy("name").ToSql()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.Unavailable("list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, generic.Unavailable("list tables", err)
		}
		names = append(names, n)
	}
	return names, generic.Unavailable("list tables", rows.Err())
}

// =============================================================================
// TABLE
// =============================================================================

type table struct {
	store *Store
	name  string
}

func (t *table) Name() string { return t.name }

func (t *table) Header(ctx context.Context) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	query, args, err := t.selectRows().Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.scan(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *table) Rows(ctx context.Context) ([][]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	query, args, err := t.selectRows().ToSql()
	if err != nil {
		return nil, err
	}
	return t.scan(ctx, query, args...)
}

// Append writes rows after the current last position. Large batches are
// split into several INSERTs inside one transaction.
func (t *table) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return t.inTx(ctx, "append to "+t.name, func(tx *sql.Tx) error {
		last, err := t.bound(ctx, tx, "COALESCE(MAX(pos), 0)")
		if err != nil {
			return err
		}
		return t.insert(ctx, tx, "append to "+t.name, last+1, rows)
	})
}

// Replace clears the table and writes rows in one transaction.
func (t *table) Replace(ctx context.Context, rows [][]string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return t.inTx(ctx, "replace "+t.name, func(tx *sql.Tx) error {
		if err := t.exec(ctx, tx, "clear "+t.name,
			squirrel.Delete("sheet_rows").Where(squirrel.Eq{"sheet": t.name})); err != nil {
			return err
		}
		return t.insert(ctx, tx, "replace "+t.name, 1, rows)
	})
}

// Prepend writes row before the current first position.
func (t *table) Prepend(ctx context.Context, row []string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	first, err := t.bound(ctx, t.store.db, "COALESCE(MIN(pos), 1)")
	if err != nil {
		return err
	}
	cells, err := encodeCells(row)
	if err != nil {
		return err
	}
	insert := squirrel.Insert("sheet_rows").
		Columns("sheet", "pos", "cells").
		Values(t.name, first-1, cells)
	return t.exec(ctx, t.store.db, "prepend to "+t.name, insert)
}

func (t *table) Clear(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return t.exec(ctx, t.store.db, "clear "+t.name,
		squirrel.Delete("sheet_rows").Where(squirrel.Eq{"sheet": t.name}))
}

// =============================================================================
// HELPERS
// =============================================================================

func (t *table) selectRows() squirrel.SelectBuilder {
	return squirrel.Select("cells").
		From("sheet_rows").
		Where(squirrel.Eq{"sheet": t.name}).
		OrderBy("pos ASC", "id ASC")
}

// insertChunkRows keeps each INSERT well under SQLite's bound variable limit.
const insertChunkRows = 500

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *table) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.Unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return generic.Unavailable(op, tx.Commit())
}

// insert writes rows at consecutive positions starting at first.
func (t *table) insert(ctx context.Context, db dbtx, op string, first int64, rows [][]string) error {
	for start := 0; start < len(rows); start += insertChunkRows {
		end := min(start+insertChunkRows, len(rows))
		b := squirrel.Insert("sheet_rows").Columns("sheet", "pos", "cells")
		for i, r := range rows[start:end] {
			cells, err := encodeCells(r)
			if err != nil {
				return err
			}
			b = b.Values(t.name, first+int64(start+i), cells)
		}
		if err := t.exec(ctx, db, op, b); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) bound(ctx context.Context, db dbtx, expr string) (int64, error) {
	query, args, err := squirrel.Select(expr).
		From("sheet_rows").
		Where(squirrel.Eq{"sheet": t.name}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var v int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, generic.Unavailable("read bounds of "+t.name, err)
	}
	return v, nil
}

func (t *table) exec(ctx context.Context, db dbtx, op string, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, query, args...)
	return generic.Unavailable(op, err)
}

func (t *table) scan(ctx context.Context, query string, args ...any) ([][]string, error) {
	rows, err := t.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.Unavailable("read "+t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, generic.Unavailable("read "+t.name, err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, generic.Unavailable("read "+t.name, rows.Err())
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("failed to encode row: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return cells, nil
}
