// Package all registers every storage backend with the factory. Binaries
// blank-import it so config alone selects the backend.
package all

import (
	_ "dbmigrate/internal/storage/mssql"
	_ "dbmigrate/internal/storage/postgres"
	_ "dbmigrate/internal/storage/sqlite"
)
