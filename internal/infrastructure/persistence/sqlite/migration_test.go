package sqlite

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_Migrate(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(db)
	require.NoError(t, migrator.Migrate())

	version, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// All three tables exist.
	for _, table := range []string{"jobs", "job_history", "job_locks"} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrator_MigrateIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	migrator := NewMigrator(db)
	require.NoError(t, migrator.Migrate())
	require.NoError(t, migrator.Migrate())

	version, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
