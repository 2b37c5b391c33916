package storage

import (
	"context"
	"path/filepath"
	"testing"

	"encwallet/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStateStoreSQLite(t *testing.T) {
	store, err := OpenStateStore("SQLite", filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.SetLastProcessedBlock(ctx, "k", 5))
	block, ok, err := store.LastProcessedBlock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), block)
}

func TestOpenStateStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStateStore("postgres", "dsn")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOpenStateStoreMySQLRequiresDSN(t *testing.T) {
	_, err := OpenStateStore("mysql", "")
	assert.Error(t, err)
}
