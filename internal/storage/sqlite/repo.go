package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"dbmigrate/internal/storage"
)

// Repo implements storage.Repository for SQLite (modernc.org/sqlite, pure
// Go). SQLite is the local/dry-run target: the same pipeline can be exercised
// end to end against a file database before pointing at a real server.
type Repo struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database named by cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// SQLite serializes writers; a wider pool only produces SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close releases the database handle.
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

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &storage.LoadError{Table: table, Rows: len(rows), Err: err}
	}
	return n, nil
}

// buildInsertSQL constructs a single INSERT with ? placeholders. SQLite binds
// ordinally, so args order alone carries the row-major mapping.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}

	b.WriteString(";")
	return b.String(), args
}
