package mssql

import "dbmigrate/internal/storage"

func init() {
	// registers the mssql backend factory
	storage.Register("mssql", New)
}
