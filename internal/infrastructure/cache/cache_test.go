package cache

import (
	"context"
	"testing"
	"time"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000007E57")

func newMemory(t *testing.T) *MemoryTokenCache {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c, err := NewMemoryTokenCache(ctx, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryTokenCache(t *testing.T) {
	c := newMemory(t)
	ctx := context.Background()

	_, ok := c.GetToken(ctx, tokenAddr)
	assert.False(t, ok)

	info := domain.TokenInfo{Address: tokenAddr.Hex(), Name: "Secret", Symbol: "SEC", Decimals: 18}
	c.SetToken(ctx, info)

	got, ok := c.GetToken(ctx, tokenAddr)
	require.True(t, ok)
	assert.Equal(t, info, got)
	assert.Equal(t, 1, c.Len())
}

func TestTieredFillsLocalFromShared(t *testing.T) {
	local := newMemory(t)
	shared := newMemory(t)
	tiered := NewTiered(local, shared)
	ctx := context.Background()

	info := domain.TokenInfo{Address: tokenAddr.Hex(), Name: "Secret", Symbol: "SEC", Decimals: 6}
	shared.SetToken(ctx, info)

	got, ok := tiered.GetToken(ctx, tokenAddr)
	require.True(t, ok)
	assert.Equal(t, info, got)
	assert.Equal(t, 1, local.Len())

	other := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tiered.SetToken(ctx, domain.TokenInfo{Address: other.Hex(), Symbol: "ONE"})
	_, ok = shared.GetToken(ctx, other)
	assert.True(t, ok)
}

func TestTieredWithoutShared(t *testing.T) {
	tiered := NewTiered(newMemory(t), nil)
	_, ok := tiered.GetToken(context.Background(), tokenAddr)
	assert.False(t, ok)
	tiered.SetToken(context.Background(), domain.TokenInfo{Address: tokenAddr.Hex()})
	_, ok = tiered.GetToken(context.Background(), tokenAddr)
	assert.True(t, ok)
}

func TestTokenCacheKey(t *testing.T) {
	assert.Equal(t, "encwallet:tokens:v3:0x0000000000000000000000000000000000007e57", tokenCacheKey("3", tokenAddr))
}

func TestNewRedisTokenCacheRequiresAddr(t *testing.T) {
	_, err := NewRedisTokenCache(RedisConfig{Addr: " "})
	assert.Error(t, err)
}
