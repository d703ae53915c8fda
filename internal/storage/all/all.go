// Package all registers every storage backend. Import it for side effects.
package all

import (
	_ "userstats/internal/storage/mssql"
	_ "userstats/internal/storage/postgres"
	_ "userstats/internal/storage/sqlite"
)
