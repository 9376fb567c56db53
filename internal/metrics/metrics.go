// Package metrics is a small facade between the migration pipeline and
// whatever metrics system a deployment uses.
//
// The pipeline only ever calls the package-level helpers (IncCounter,
// ObserveHistogram, Flush). By default those are no-ops; a binary that wants
// metrics installs a concrete Backend at startup via SetBackend.
//
// This keeps backend-specific client code (Datadog today, possibly others
// later) out of the core packages.
package metrics

import "sync"

// Labels are free-form key/value tags attached to a metric observation.
// Backends decide which labels they honor.
type Labels map[string]string

// Backend is the minimal sink interface a metrics implementation provides.
//
// Implementations must be safe for concurrent use; the pipeline emits from
// multiple goroutines during metadata resolution.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes any buffered observations to the backing system.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide metrics backend.
// Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}
