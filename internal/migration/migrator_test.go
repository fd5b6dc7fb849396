package migration

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/BaSui01/demoforge/config"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", "postgres", DatabaseTypePostgres, false},
		{"postgresql", "postgresql", DatabaseTypePostgres, false},
		{"pg", "pg", DatabaseTypePostgres, false},
		{"mysql", "mysql", DatabaseTypeMySQL, false},
		{"mariadb", "mariadb", DatabaseTypeMySQL, false},
		{"sqlite", "sqlite", DatabaseTypeSQLite, false},
		{"sqlite3", "sqlite3", DatabaseTypeSQLite, false},
		{"uppercase", "POSTGRES", DatabaseTypePostgres, false},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestGetMigrationsPath(t *testing.T) {
	tests := []struct {
		dbType   DatabaseType
		expected string
	}{
		{DatabaseTypePostgres, filepath.Join("migrations", "postgres")},
		{DatabaseTypeMySQL, filepath.Join("migrations", "mysql")},
		{DatabaseTypeSQLite, filepath.Join("migrations", "sqlite")},
	}

	for _, tt := range tests {
		t.Run(string(tt.dbType), func(t *testing.T) {
			result := GetMigrationsPath(tt.dbType)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestNewMigratorFromDatabaseConfig(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "forge.db")

		migrator, err := NewMigratorFromDatabaseConfig(appconfig.DatabaseConfig{
			Driver: "sqlite",
			Name:   dbPath,
		})
		require.NoError(t, err)
		require.NoError(t, migrator.Close())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		_, err := NewMigratorFromDatabaseConfig(appconfig.DatabaseConfig{Driver: "oracle"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid database type")
	})
}

func newSQLiteMigrator(t *testing.T) (*DefaultMigrator, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	dbURL := "file:" + dbPath + "?mode=rwc"

	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  dbURL,
		TableName:    "schema_migrations",
	})
	require.NoError(t, err)
	t.Cleanup(func() { migrator.Close() })

	return migrator, dbURL
}

func TestMigrator_SQLite_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping migration integration test in short mode")
	}

	migrator, dbURL := newSQLiteMigrator(t)
	ctx := context.Background()

	// Fresh database starts at version zero.
	version, dirty, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up(ctx))

	version, dirty, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// The schema the store layer expects must actually exist.
	db, err := sql.Open("sqlite", dbURL)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"owners", "documents", "artifacts"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	// identity_key carries a unique index, so a second owner with the
	// same key must be rejected.
	_, err = db.Exec("INSERT INTO owners (id, identity_key) VALUES ('o1', 'google:alice')")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO owners (id, identity_key) VALUES ('o2', 'google:alice')")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, uint(1), statuses[0].Version)
	assert.Equal(t, "init_schema", statuses[0].Name)
	assert.True(t, statuses[0].Applied)

	info, err := migrator.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), info.CurrentVersion)
	assert.Equal(t, info.TotalMigrations, info.AppliedMigrations)
	assert.Equal(t, 0, info.PendingMigrations)

	require.NoError(t, migrator.Down(ctx))

	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'owners'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "rollback should drop the owners table")
}

func TestMigrator_GetAvailableMigrations(t *testing.T) {
	migrator, _ := newSQLiteMigrator(t)

	migrations, err := migrator.getAvailableMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, uint(1), migrations[0].version)
	assert.Equal(t, "init_schema", migrations[0].name)

	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].version, migrations[i-1].version)
	}
}

func TestCLI_Output(t *testing.T) {
	migrator, _ := newSQLiteMigrator(t)

	var buf bytes.Buffer
	cli := NewCLI(migrator)
	cli.SetOutput(&buf)

	ctx := context.Background()

	require.NoError(t, cli.RunVersion(ctx))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	buf.Reset()
	require.NoError(t, cli.RunUp(ctx))
	assert.Contains(t, buf.String(), "Migrations complete. Current version: 1")

	buf.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	assert.Contains(t, buf.String(), "init_schema")
	assert.Contains(t, buf.String(), "Applied")
	assert.Contains(t, buf.String(), "Total: 1, Applied: 1, Pending: 0")
}
