package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dbmigrate/internal/storage"
)

// Repo implements storage.Repository for Postgres over a pgx pool.
//
// Pool discipline: one connection is acquired per LoadBatch call and released
// on every exit path. The pool is bounded (cfg.MaxConns), so concurrent
// callers queue on Acquire instead of failing fast when the pool is busy.
type Repo struct {
	pool *pgxpool.Pool

	// acquire is a seam so tests can count acquire/release pairs without a
	// server. Production uses the pool.
	acquire func(ctx context.Context) (batchConn, error)
}

// batchConn is the slice of *pgxpool.Conn LoadBatch needs.
type batchConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Release()
}

// New creates a Postgres-backed Repo with a bounded connection pool.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	cfg = cfg.WithDefaults()

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pc.MaxConns = int32(cfg.MaxConns)
	pc.MaxConnIdleTime = cfg.IdleTimeout
	pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}

	r := &Repo{pool: pool}
	r.acquire = func(ctx context.Context) (batchConn, error) {
		return pool.Acquire(ctx)
	}
	return r, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// LoadBatch inserts rows as a single multi-row INSERT.
func (r *Repo) LoadBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckBatchShape(table, columns, rows); err != nil {
		return 0, err
	}

	sql, args := buildInsertSQL(table, columns, rows)

	conn, err := r.acquire(ctx)
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	return tag.RowsAffected(), nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Why this exists:
//   - It is pure and deterministic, so placeholder numbering can be unit
//     tested without a database.
//
// Constraints:
//   - rows must be rectangular with len(columns) values each (checked by the
//     caller via storage.CheckBatchShape).
//   - The value for row i, column j lands at args index i*len(columns)+j and
//     is referenced as $<index+1>; the numbering is contiguous or the server
//     rejects the statement with a parameter-count mismatch.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}
