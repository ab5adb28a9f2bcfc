// Package dbtest provides migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/todo-app/apiserver/config"
	"github.com/todo-app/apiserver/internal/db"
)

// New returns a migrated SQLite database living in t.TempDir().
func New(t testing.TB) *db.Conn {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     db.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "todo.db"),
	}
	require.NoError(t, db.MigrateUp(cfg))

	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
