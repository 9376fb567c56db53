package sqlite

import "dbmigrate/internal/storage"

func init() {
	// registers the sqlite backend factory
	storage.Register("sqlite", New)
}
