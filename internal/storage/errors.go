package storage

import "fmt"

// LoadError reports a batch the target database rejected: constraint
// violation, type mismatch, or connectivity failure. The batch as a whole is
// the failure unit; there is no row-level isolation or partial retry.
type LoadError struct {
	// Table is the target table name.
	Table string
	// Rows is the number of rows the failed batch attempted to insert.
	Rows int
	// Err is the underlying database error.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: batch of %d rows failed: %v", e.Table, e.Rows, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
