/*
Package postgres provides a PostgreSQL-backed generic.RecordStore.

PURPOSE:
  Same sheets/sheet_rows layout as store/sqlite, for deployments where
  several service instances share one agenda. Nothing here coordinates
  those instances: rows carry no unique constraint and appends are not
  wrapped in a transaction with the reads that precede them. Each
  Append or Replace is its own transaction, chunked into INSERTs.

QUERIER:
  The store talks to a Querier, satisfied by *pgxpool.Pool and by
  pgxmock's pool, so adapter tests run without a database.

SEE ALSO:
  - store/sqlite/sqlite.go: Embedded equivalent
  - generic/store.go: RecordStore and Table interfaces
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/agenda/generic"
)

const undefinedTableCode = "42P01"

// dbtx is satisfied by the pool and by pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the subset of pgxpool.Pool the store uses.
type Querier interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
}

// insertChunkRows keeps each INSERT well under the 65535 parameter limit.
const insertChunkRows = 500

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Schema is applied by Migrate. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sheets (
	name TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sheet_rows (
	id BIGSERIAL PRIMARY KEY,
	sheet TEXT NOT NULL REFERENCES sheets(name),
	pos BIGINT NOT NULL,
	cells JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sheet_rows_sheet_pos ON sheet_rows (sheet, pos, id);
`

// Store implements generic.RecordStore on PostgreSQL.
type Store struct {
	q Querier
}

// New wraps an existing pool. The caller owns its lifecycle unless it
// also implements Close().
func New(q Querier) *Store {
	return &Store{q: q}
}

// BuildPoolConfig parses dsn and applies the connection limit.
func BuildPoolConfig(dsn string, maxConns int) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	return poolCfg, nil
}

// Open connects, pings, and migrates.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	poolCfg, err := BuildPoolConfig(dsn, maxConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema when absent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Close closes the underlying pool when the store owns one.
func (s *Store) Close() error {
	if c, ok := s.q.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

// Table registers name on first use and returns a handle to it.
func (s *Store) Table(ctx context.Context, name string) (generic.Table, error) {
	query, args, err := psql.Insert("sheets").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.q.Exec(ctx, query, args...); err != nil {
		return nil, translate("open table "+name, err)
	}
	return &table{q: s.q, name: name}, nil
}

type table struct {
	q    Querier
	name string
}

func (t *table) Name() string { return t.name }

func (t *table) Header(ctx context.Context) ([]string, error) {
	rows, err := t.read(ctx, t.selectRows().Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (t *table) Rows(ctx context.Context) ([][]string, error) {
	return t.read(ctx, t.selectRows())
}

func (t *table) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	return t.inTx(ctx, "append to "+t.name, func(tx pgx.Tx) error {
		last, err := t.bound(ctx, tx, "COALESCE(MAX(pos), 0)")
		if err != nil {
			return err
		}
		return t.insert(ctx, tx, "append to "+t.name, last+1, rows)
	})
}

// Replace clears the table and writes rows in one transaction.
func (t *table) Replace(ctx context.Context, rows [][]string) error {
	return t.inTx(ctx, "replace "+t.name, func(tx pgx.Tx) error {
		if err := t.exec(ctx, tx, "clear "+t.name,
			psql.Delete("sheet_rows").Where(squirrel.Eq{"sheet": t.name})); err != nil {
			return err
		}
		return t.insert(ctx, tx, "replace "+t.name, 1, rows)
	})
}

func (t *table) Prepend(ctx context.Context, row []string) error {
	first, err := t.bound(ctx, t.q, "COALESCE(MIN(pos), 1)")
	if err != nil {
		return err
	}
	cells, err := encodeCells(row)
	if err != nil {
		return err
	}
	return t.exec(ctx, t.q, "prepend to "+t.name,
		psql.Insert("sheet_rows").Columns("sheet", "pos", "cells").Values(t.name, first-1, cells))
}

func (t *table) Clear(ctx context.Context) error {
	return t.exec(ctx, t.q, "clear "+t.name,
		psql.Delete("sheet_rows").Where(squirrel.Eq{"sheet": t.name}))
}

func (t *table) selectRows() squirrel.SelectBuilder {
	return psql.Select("cells").
		From("sheet_rows").
		Where(squirrel.Eq{"sheet": t.name}).
		OrderBy("pos ASC", "id ASC")
}

func (t *table) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := t.q.Begin(ctx)
	if err != nil {
		return translate(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return translate(op, err)
	}
	return nil
}

// insert writes rows at consecutive positions starting at first.
func (t *table) insert(ctx context.Context, db dbtx, op string, first int64, rows [][]string) error {
	for start := 0; start < len(rows); start += insertChunkRows {
		end := min(start+insertChunkRows, len(rows))
		b := psql.Insert("sheet_rows").Columns("sheet", "pos", "cells")
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
	query, args, err := psql.Select(expr).
		From("sheet_rows").
		Where(squirrel.Eq{"sheet": t.name}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var v int64
	if err := db.QueryRow(ctx, query, args...).Scan(&v); err != nil {
		return 0, translate("read bounds of "+t.name, err)
	}
	return v, nil
}

func (t *table) exec(ctx context.Context, db dbtx, op string, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return translate(op, err)
	}
	return nil
}

func (t *table) read(ctx context.Context, b squirrel.SelectBuilder) ([][]string, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, translate("read "+t.name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, translate("read "+t.name, err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return nil, fmt.Errorf("postgres: decode row of %s: %w", t.name, err)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("read "+t.name, err)
	}
	return out, nil
}

func encodeCells(row []string) (string, error) {
	if row == nil {
		row = []string{}
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", fmt.Errorf("postgres: encode row: %w", err)
	}
	return string(b), nil
}

// translate wraps every driver failure as StorageUnavailable. A missing
// table gets a hint since it means Migrate was never run.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTableCode {
		return generic.Unavailable(op, fmt.Errorf("schema not migrated: %w", err))
	}
	return generic.Unavailable(op, err)
}
