package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-social/core"
	socialmigrations "github.com/goliatone/go-social/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool {
	return c.debug
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-social"
}

// Open connects to the configured database, applies the embedded social
// migrations for its dialect and returns the persistence client.
func Open(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: database dsn is required")
	}

	var (
		dialect          schema.Dialect
		migrationDialect string
	)
	switch driver {
	case DriverPostgres:
		dialect = pgdialect.New()
		migrationDialect = socialmigrations.DialectPostgres
	case DriverSQLite:
		dialect = sqlitedialect.New()
		migrationDialect = socialmigrations.DialectSQLite
	default:
		return nil, fmt.Errorf("sqlstore: unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{driver: driver, server: dsn, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}

	_, err = socialmigrations.Register(ctx, migrationDialect, func(_ context.Context, source socialmigrations.Source) error {
		client.RegisterSQLMigrations(source.FS)
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
