// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/kvcache/internal/database"
)

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*options)

type options struct {
	migrate bool
}

// WithAutoMigrate creates the cache schema after opening.
func WithAutoMigrate() TestDBOption {
	return func(o *options) { o.migrate = true }
}

// MustOpenTestDB opens an in-memory sqlite database private to the test.
// Each call gets its own shared-cache name so parallel tests never see each
// other's rows. The handle is closed on cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(database.Config{
		Driver: "sqlite",
		DSN:    "file:kvcache_" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if o.migrate {
		require.NoError(t, database.Prepare(db))
	}
	return db
}
