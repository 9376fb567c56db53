package storage

import (
	"context"
	"testing"
	"time"
)

type stubRepo struct{}

func (stubRepo) Close() {}
func (stubRepo) LoadBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	return 0, nil
}

func TestRegisterAndNew(t *testing.T) {
	var got Config
	Register("stub", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return stubRepo{}, nil
	})

	r, err := New(context.Background(), Config{Kind: "stub", DSN: "stub://x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r == nil {
		t.Fatal("nil repository")
	}
	if got.DSN != "stub://x" {
		t.Fatalf("factory saw DSN %q", got.DSN)
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{Kind: "oracle"}); err == nil {
		t.Fatal("unknown kind accepted")
	}
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("empty kind accepted")
	}
}

func TestRegisterPanics(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			fn()
		})
	}

	mustPanic("empty_kind", func() {
		Register("", func(ctx context.Context, cfg Config) (Repository, error) { return stubRepo{}, nil })
	})
	mustPanic("nil_factory", func() { Register("stub2", nil) })
	mustPanic("duplicate", func() {
		Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return stubRepo{}, nil })
		Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return stubRepo{}, nil })
	})
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	if c.MaxConns != DefaultMaxConns {
		t.Fatalf("MaxConns = %d", c.MaxConns)
	}
	if c.IdleTimeout != DefaultIdleTimeout || c.ConnectTimeout != DefaultConnectTimeout {
		t.Fatalf("timeouts = %v, %v", c.IdleTimeout, c.ConnectTimeout)
	}

	c = Config{MaxConns: 5, IdleTimeout: time.Minute, ConnectTimeout: time.Second}.WithDefaults()
	if c.MaxConns != 5 || c.IdleTimeout != time.Minute || c.ConnectTimeout != time.Second {
		t.Fatal("explicit values overwritten")
	}
}
