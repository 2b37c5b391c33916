package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	repo, err := NewRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	require.NoError(t, repo.Ping(ctx))

	_, ok, err := repo.LastProcessedBlock(ctx, "transfers:0xabc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetLastProcessedBlock(ctx, "transfers:0xabc", 41))
	require.NoError(t, repo.SetLastProcessedBlock(ctx, "transfers:0xabc", 42))
	require.NoError(t, repo.SetLastProcessedBlock(ctx, "transfers:0xdef", 7))

	block, ok, err := repo.LastProcessedBlock(ctx, "transfers:0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), block)

	all, err := repo.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "transfers:0xabc", all[0].Key)
	assert.Equal(t, uint64(42), all[0].Block)
	assert.Equal(t, "transfers:0xdef", all[1].Key)
	assert.False(t, all[1].UpdatedAt.IsZero())

	require.NoError(t, repo.ClearLastProcessedBlock(ctx, "transfers:0xabc"))
	_, ok, err = repo.LastProcessedBlock(ctx, "transfers:0xabc")
	require.NoError(t, err)
	assert.False(t, ok)

	block, ok, err = repo.LastProcessedBlock(ctx, "transfers:0xdef")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), block)
}

func TestCheckpointSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	repo, err := NewRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.SetLastProcessedBlock(context.Background(), "k", 99))
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	block, ok, err := reopened.LastProcessedBlock(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(99), block)
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := NewRepository("")
	assert.Error(t, err)
}
