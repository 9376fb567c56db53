package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config is the configuration needed to create a batch-loading repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
//   - Zero pool fields take the defaults below.
type Config struct {
	Kind string
	DSN  string

	// Pool sizing. Callers queue on an exhausted pool rather than failing
	// fast, so these bound concurrency without dropping batches.
	MaxConns       int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
}

// Pool defaults shared by backends that pool connections.
const (
	DefaultMaxConns       = 20
	DefaultIdleTimeout    = 30 * time.Second
	DefaultConnectTimeout = 20 * time.Second
)

// Repository is the backend-agnostic interface for loading row batches into
// the target database.
//
// IMPORTANT: This interface is intentionally minimal. Each backend implements
// the batch insert in its own idiomatic way (Postgres $N placeholders, SQL
// Server @pN, SQLite ?), but all share the same semantics:
//
//   - one call = one multi-row INSERT = one atomic unit at the database
//   - a connection is acquired per call and released on every exit path
//   - an empty rows slice is a no-op, not a malformed zero-row statement
type Repository interface {
	// Close releases backend resources. Call once at shutdown.
	Close()

	// LoadBatch inserts rows into table with the given column list and
	// returns the number of rows the database reports as affected.
	//
	// Errors:
	//   - *LoadError wrapping the database error, carrying the table name
	//     and the attempted row count.
	//   - A plain error only for programmer mistakes (ragged rows, invalid
	//     identifiers), which indicate a bug upstream rather than a database
	//     condition.
	LoadBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// ---- backend factory registry ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering an
// empty kind, a nil factory, or a duplicate kind panics: backend selection
// must be unambiguous, and these are all wiring bugs worth failing fast on.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or not registered.
//   - Whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// WithDefaults returns the config with zero pool fields filled in.
// Backends call this before sizing their pools.
func (c Config) WithDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}
