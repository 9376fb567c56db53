package storage

import (
	"fmt"
	"strings"
)

// Table and column names are interpolated into statement text, never bound as
// parameters, so they must be validated before any SQL is built. Names come
// from operator configuration and catalog metadata, both internally
// controlled, but a typo'd or hostile name must still fail loudly here rather
// than reach the database.

// ValidIdent reports whether name is a bare SQL identifier:
// [A-Za-z_][A-Za-z0-9_]*.
func ValidIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ValidTableIdent reports whether name is a bare identifier or a single
// schema-qualified one ("schema.table").
func ValidTableIdent(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !ValidIdent(p) {
			return false
		}
	}
	return true
}

// CheckBatchShape validates the inputs every backend shares: identifier
// safety and rectangular rows. Backends call it before building SQL.
func CheckBatchShape(table string, columns []string, rows [][]any) error {
	if !ValidTableIdent(table) {
		return fmt.Errorf("storage: invalid table identifier %q", table)
	}
	if len(columns) == 0 {
		return fmt.Errorf("storage: empty column list for table %s", table)
	}
	for _, c := range columns {
		if !ValidIdent(c) {
			return fmt.Errorf("storage: invalid column identifier %q in table %s", c, table)
		}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return fmt.Errorf("storage: row %d has %d values, want %d (table %s)", i, len(row), len(columns), table)
		}
	}
	return nil
}
