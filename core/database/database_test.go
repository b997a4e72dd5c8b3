package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaultsAndDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "bot", Password: "p ss'w", Name: "tandem"}
	assert.True(t, cfg.Enabled())
	cfg.Normalize()

	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Empty(t, cfg.MigrationsDir)
	assert.Equal(t, `user=bot password='p ss\'w' host=db port=5432 dbname=tandem sslmode=disable`, cfg.DSN())
	assert.Equal(t, "postgres://bot:p%20ss%27w@db:5432/tandem?sslmode=disable", cfg.URL())

	assert.False(t, Config{}.Enabled())
}

func TestMigrationFileSelection(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_index.up.sql":         {Data: []byte("--")},
		"000001_create_profiles.up.sql":   {Data: []byte("--")},
		"000001_create_profiles.down.sql": {Data: []byte("--")},
		"nested/000003_skip.up.sql":       {Data: []byte("--")},
	}

	files := listMigrationFiles(fsys)
	assert.Equal(t, []string{"000001_create_profiles.up.sql", "000002_add_index.up.sql"}, files)
	assert.Equal(t, uint64(2), parseVersion(files[1]))
	assert.Zero(t, parseVersion("readme.md"))
	assert.Equal(t, []string{"000002_add_index.up.sql"}, selectApplied(files, 1, 2))
	assert.Empty(t, selectApplied(files, 2, 2))
	assert.Empty(t, listMigrationFiles(fstest.MapFS{}))
}

func TestMigrationSource(t *testing.T) {
	_, _, err := migrationSource(Config{})
	assert.ErrorIs(t, err, ErrNoMigrations)

	builtin := fstest.MapFS{"000001_a.up.sql": {Data: []byte("--")}}
	fsys, label, err := migrationSource(Config{Migrations: builtin})
	require.NoError(t, err)
	assert.Equal(t, "embedded", label)
	assert.Equal(t, []string{"000001_a.up.sql"}, listMigrationFiles(fsys))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_b.up.sql"), []byte("--"), 0o644))
	fsys, label, err = migrationSource(Config{MigrationsDir: dir, Migrations: builtin})
	require.NoError(t, err)
	assert.Equal(t, dir, label)
	assert.Equal(t, []string{"000007_b.up.sql"}, listMigrationFiles(fsys))
}

func TestRollbackValidatesSteps(t *testing.T) {
	assert.ErrorContains(t, Rollback(context.Background(), Config{Host: "db"}, 0), "steps must be > 0")
}
