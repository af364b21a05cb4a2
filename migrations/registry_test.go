package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	social "github.com/goliatone/go-social"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	found := map[string][]string{}
	for _, source := range sources {
		names, err := source.Names()
		if err != nil {
			t.Fatalf("names %s: %v", source.Dialect, err)
		}
		found[source.Dialect] = names
	}
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		names := found[dialect]
		if len(names) != 2 || names[0] != "00001_social_accounts" || names[1] != "00002_social_publish_attempts" {
			t.Fatalf("unexpected %s migrations %v", dialect, names)
		}
	}
}

func TestSources_RejectsMissingDownMigration(t *testing.T) {
	tree := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(tree); err == nil || !strings.Contains(err.Error(), "no down migration") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestRegister_ResolvesDriverNames(t *testing.T) {
	var got Source
	source, err := Register(context.Background(), "sqlite3", func(_ context.Context, source Source) error {
		got = source
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if source.Dialect != DialectSQLite || got.Dialect != DialectSQLite {
		t.Fatalf("expected sqlite source, got %q / %q", source.Dialect, got.Dialect)
	}
	if got.Path != "data/sql/migrations/sqlite" {
		t.Fatalf("unexpected sqlite path %q", got.Path)
	}
}

func TestRegister_Errors(t *testing.T) {
	if _, err := Register(context.Background(), DialectPostgres, nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
	if _, err := Register(context.Background(), "mysql", func(context.Context, Source) error { return nil }); err == nil {
		t.Fatalf("expected unsupported dialect error")
	}
	failing := errors.New("boom")
	if _, err := Register(context.Background(), DialectPostgres, func(context.Context, Source) error { return failing }); !errors.Is(err, failing) {
		t.Fatalf("expected wrapped register error, got %v", err)
	}
}

func TestMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := social.GetCoreMigrationsFS()
	for _, name := range []string{"00001_social_accounts", "00002_social_publish_attempts"} {
		paths := []string{
			"data/sql/migrations/" + name + ".up.sql",
			"data/sql/migrations/" + name + ".down.sql",
			"data/sql/migrations/sqlite/" + name + ".up.sql",
			"data/sql/migrations/sqlite/" + name + ".down.sql",
		}
		for _, migrationPath := range paths {
			content, err := fs.ReadFile(root, migrationPath)
			if err != nil {
				t.Fatalf("read migration %s: %v", migrationPath, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				t.Fatalf("expected migration %s to have SQL content", migrationPath)
			}
		}
	}
}

func TestSQLiteAccountsMigration_EnforcesWorkspacePlatformUniqueness(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-social-accounts?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(social.GetCoreMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_social_accounts.up.sql"); err != nil {
		t.Fatalf("apply accounts migration up: %v", err)
	}

	insert := `INSERT INTO social_accounts (id, workspace_id, platform, encrypted_credentials) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "acc_1", "ws_1", "twitter", "blob"); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "acc_2", "ws_2", "twitter", "blob"); err != nil {
		t.Fatalf("insert account in other workspace: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "acc_3", "ws_1", "twitter", "blob"); err == nil {
		t.Fatalf("expected unique (workspace_id, platform) violation")
	}
	if _, err := db.ExecContext(ctx, insert, "acc_4", "ws_1", "myspace", "blob"); err == nil {
		t.Fatalf("expected platform check violation")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_social_accounts.down.sql"); err != nil {
		t.Fatalf("apply accounts migration down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"social_accounts",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master after down migration: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected social_accounts to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
