package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"dbmigrate/internal/storage"
)

type fakeConn struct {
	sql      string
	args     []any
	execErr  error
	released int
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.sql = sql
	c.args = args
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 2"), nil
}

func (c *fakeConn) Release() { c.released++ }

func fakeRepo(conn *fakeConn, acquireErr error) *Repo {
	r := &Repo{}
	r.acquire = func(ctx context.Context) (batchConn, error) {
		if acquireErr != nil {
			return nil, acquireErr
		}
		return conn, nil
	}
	return r
}

func TestBuildInsertSQL(t *testing.T) {
	rows := [][]any{{1, "alice"}, {2, "bob"}, {3, nil}}
	sql, args := buildInsertSQL("accounts", []string{"id", "name"}, rows)

	want := "INSERT INTO accounts (id, name) VALUES ($1, $2), ($3, $4), ($5, $6);"
	if sql != want {
		t.Fatalf("sql = %q\nwant  %q", sql, want)
	}
	if len(args) != 6 {
		t.Fatalf("args = %d, want 6", len(args))
	}
	// value[i][j] must land at args index i*len(columns)+j
	if args[0] != 1 || args[1] != "alice" || args[2] != 2 || args[3] != "bob" || args[4] != 3 || args[5] != nil {
		t.Fatalf("args order wrong: %v", args)
	}
}

func TestLoadBatchEmptyRowsIsNoop(t *testing.T) {
	conn := &fakeConn{}
	r := fakeRepo(conn, nil)

	n, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, nil)
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
	if conn.sql != "" {
		t.Fatal("empty batch must not touch the database")
	}
}

func TestLoadBatchReleasesOnSuccess(t *testing.T) {
	conn := &fakeConn{}
	r := fakeRepo(conn, nil)

	n, err := r.LoadBatch(context.Background(), "accounts", []string{"id", "name"},
		[][]any{{1, "alice"}, {2, "bob"}})
	if err != nil {
		t.Fatalf("LoadBatch: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if conn.released != 1 {
		t.Fatalf("released %d times, want 1", conn.released)
	}
}

func TestLoadBatchReleasesOnExecError(t *testing.T) {
	conn := &fakeConn{execErr: errors.New("duplicate key")}
	r := fakeRepo(conn, nil)

	_, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, [][]any{{1}})
	var le *storage.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *storage.LoadError", err)
	}
	if le.Table != "accounts" || le.Rows != 1 {
		t.Fatalf("LoadError = %+v", le)
	}
	if !errors.Is(err, conn.execErr) {
		t.Fatal("cause not preserved")
	}
	if conn.released != 1 {
		t.Fatalf("released %d times, want 1", conn.released)
	}
}

func TestLoadBatchAcquireError(t *testing.T) {
	acquireErr := errors.New("pool exhausted")
	r := fakeRepo(nil, acquireErr)

	_, err := r.LoadBatch(context.Background(), "accounts", []string{"id"}, [][]any{{1}})
	var le *storage.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want *storage.LoadError", err)
	}
	if !errors.Is(err, acquireErr) {
		t.Fatal("cause not preserved")
	}
}

func TestLoadBatchRejectsBadIdent(t *testing.T) {
	conn := &fakeConn{}
	r := fakeRepo(conn, nil)

	_, err := r.LoadBatch(context.Background(), "accounts; --", []string{"id"}, [][]any{{1}})
	if err == nil {
		t.Fatal("hostile table name accepted")
	}
	if conn.sql != "" {
		t.Fatal("statement must not be built for an invalid identifier")
	}
}
