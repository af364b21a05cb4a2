package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	social "github.com/goliatone/go-social"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	SourceLabel = "go-social"
)

// Source is the migration tree for one SQL dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Names lists the migration versions in apply order, without the
// .up.sql/.down.sql suffix.
func (s Source) Names() ([]string, error) {
	ups, err := fs.Glob(s.FS, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", s.Dialect, err)
	}
	names := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(s.FS, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("migrations: %s %s has no down migration", s.Dialect, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RegisterFunc receives the source for the requested dialect, e.g. to hand
// it to a persistence client.
type RegisterFunc func(ctx context.Context, source Source) error

// Sources returns the postgres and sqlite trees of root, which defaults to
// the embedded social migrations.
func Sources(root ...fs.FS) ([]Source, error) {
	tree := social.GetCoreMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		tree = root[0]
	}

	base, basePath, err := migrationsRoot(tree)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: pathJoin(basePath, "sqlite"), FS: sqliteFS},
	}
	for _, source := range sources {
		names, err := source.Names()
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("migrations: %s tree %q has no *.up.sql files", source.Dialect, source.Path)
		}
	}
	return sources, nil
}

// ForDialect picks one dialect's tree. Database driver names such as
// sqlite3 are accepted.
func ForDialect(dialect string) (Source, error) {
	normalized := normalizeDialect(dialect)
	sources, err := Sources()
	if err != nil {
		return Source{}, err
	}
	for _, source := range sources {
		if source.Dialect == normalized {
			return source, nil
		}
	}
	return Source{}, fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Register resolves the tree for dialect and passes it to registerFn.
func Register(ctx context.Context, dialect string, registerFn RegisterFunc) (Source, error) {
	if registerFn == nil {
		return Source{}, fmt.Errorf("migrations: register function is required")
	}
	source, err := ForDialect(dialect)
	if err != nil {
		return Source{}, err
	}
	if err := registerFn(ctx, source); err != nil {
		return source, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
	}
	return source, nil
}

func normalizeDialect(dialect string) string {
	switch value := strings.TrimSpace(strings.ToLower(dialect)); value {
	case "sqlite3":
		return DialectSQLite
	case "pg", "postgresql":
		return DialectPostgres
	default:
		return value
	}
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, "data/sql/migrations")
	if err == nil {
		if _, statErr := fs.Stat(sub, "."); statErr == nil {
			return sub, "data/sql/migrations", nil
		}
	}

	entries, readErr := fs.ReadDir(root, ".")
	if readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}
	return nil, "", fmt.Errorf("migrations: data/sql/migrations not found")
}

func pathJoin(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
