package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"dbmigrate/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server via
// database/sql and the "sqlserver" driver.
//
// SQL Server caps a statement at 2100 parameters; callers control batch size,
// and buildInsertSQL does not split. A page of 1000 rows with more than two
// columns must be loaded with a smaller configured page size on this backend.
type Repo struct {
	db *sql.DB

	// acquire is a seam for tests. Production checks a dedicated connection
	// out of the database/sql pool.
	acquire func(ctx context.Context) (execConn, error)
}

// execConn is the slice of *sql.Conn LoadBatch needs. Close returns the
// connection to the pool.
type execConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// New constructs a Repo and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	cfg = cfg.WithDefaults()

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)
	db.SetConnMaxIdleTime(cfg.IdleTimeout)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}

	r := &Repo{db: db}
	r.acquire = func(ctx context.Context) (execConn, error) {
		return db.Conn(ctx)
	}
	return r, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// LoadBatch inserts rows as a single multi-row INSERT.
func (r *Repo) LoadBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := storage.CheckBatchShape(table, columns, rows); err != nil {
		return 0, err
	}

	query, args := buildInsertSQL(table, columns, rows)

	conn, err := r.acquire(ctx)
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	return n, nil
}

// buildInsertSQL constructs a single INSERT with @pN placeholders.
// Value for row i, column j is @p<i*C+j+1> and sits at the same args index,
// matching the sqlserver driver's ordinal binding.
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
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}
