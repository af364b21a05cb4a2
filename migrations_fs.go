package social

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the go-social SQL migration tree, including dialect
// alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}

// GetCoreMigrationsFS returns the account and publish-attempt schema.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
