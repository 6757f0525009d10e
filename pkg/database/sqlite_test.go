package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-appeals-api/pkg/config"
)

func TestNewSQLiteCreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "appeals.db")
	ctx := context.Background()

	db, err := NewSQLite(ctx, config.SQLiteConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, DriverSQLite, db.DriverName())

	applied, err := Migrate(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/sqlite/0001_appeals.sql"}, applied)

	_, err = Migrate(ctx, db)
	require.NoError(t, err, "schema must be re-runnable")

	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM appeals`))
	assert.Zero(t, count)
}

func TestSQLiteUsesQuestionBindvars(t *testing.T) {
	db, err := NewSQLite(context.Background(), config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bind.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, "SELECT 1 WHERE a = ? AND b = ?", db.Rebind("SELECT 1 WHERE a = ? AND b = ?"))
}
