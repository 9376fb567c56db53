package mssql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"dbmigrate/internal/storage"
)

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

type fakeConn struct {
	query   string
	args    []any
	execErr error
	closed  int
}

func (c *fakeConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.query = query
	c.args = args
	if c.execErr != nil {
		return nil, c.execErr
	}
	return fakeResult{n: 2}, nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return nil
}

func TestBuildInsertSQL(t *testing.T) {
	sqlText, args := buildInsertSQL("dbo.accounts", []string{"id", "name"},
		[][]any{{1, "alice"}, {2, "bob"}})

	want := "INSERT INTO dbo.accounts (id, name) VALUES (@p1, @p2), (@p3, @p4);"
	if sqlText != want {
		t.Fatalf("sql = %q\nwant  %q", sqlText, want)
	}
	if len(args) != 4 || args[0] != 1 || args[1] != "alice" || args[2] != 2 || args[3] != "bob" {
		t.Fatalf("args = %v", args)
	}
}

func TestLoadBatchReturnsConnOnEveryPath(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		conn := &fakeConn{}
		r := &Repo{acquire: func(ctx context.Context) (execConn, error) { return conn, nil }}

		n, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, [][]any{{1}, {2}})
		if err != nil {
			t.Fatalf("LoadBatch: %v", err)
		}
		if n != 2 {
			t.Fatalf("n = %d, want 2", n)
		}
		if conn.closed != 1 {
			t.Fatalf("closed %d times, want 1", conn.closed)
		}
	})

	t.Run("exec_error", func(t *testing.T) {
		conn := &fakeConn{execErr: errors.New("deadlock victim")}
		r := &Repo{acquire: func(ctx context.Context) (execConn, error) { return conn, nil }}

		_, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, [][]any{{1}})
		var le *storage.LoadError
		if !errors.As(err, &le) {
			t.Fatalf("err = %v, want *storage.LoadError", err)
		}
		if le.Table != "accounts" || le.Rows != 1 {
			t.Fatalf("LoadError = %+v", le)
		}
		if conn.closed != 1 {
			t.Fatalf("closed %d times, want 1", conn.closed)
		}
	})
}

func TestLoadBatchEmptyRows(t *testing.T) {
	r := &Repo{acquire: func(ctx context.Context) (execConn, error) {
		t.Fatal("empty batch must not acquire a connection")
		return nil, nil
	}}

	n, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("n, err = %d, %v", n, err)
	}
}
