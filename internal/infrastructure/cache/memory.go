package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"encwallet/internal/domain"

	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
)

// MemoryTokenCache keeps token metadata in process.
type MemoryTokenCache struct {
	store *bigcache.BigCache
}

func NewMemoryTokenCache(ctx context.Context, ttl time.Duration) (*MemoryTokenCache, error) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 256
	cfg.Verbose = false
	store, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MemoryTokenCache{store: store}, nil
}

func (c *MemoryTokenCache) GetToken(_ context.Context, address common.Address) (domain.TokenInfo, bool) {
	raw, err := c.store.Get(memoryKey(address))
	if err != nil {
		return domain.TokenInfo{}, false
	}
	var info domain.TokenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.TokenInfo{}, false
	}
	return info, true
}

func (c *MemoryTokenCache) SetToken(_ context.Context, info domain.TokenInfo) {
	payload, err := json.Marshal(info)
	if err != nil {
		return
	}
	_ = c.store.Set(memoryKey(common.HexToAddress(info.Address)), payload)
}

func (c *MemoryTokenCache) Len() int {
	return c.store.Len()
}

func (c *MemoryTokenCache) Close() error {
	return c.store.Close()
}

func memoryKey(address common.Address) string {
	return strings.ToLower(address.Hex())
}
