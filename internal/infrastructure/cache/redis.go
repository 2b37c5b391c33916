package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const (
	tokenCacheVersionKey = "encwallet:tokens:version"
	tokenCacheKeyPrefix  = "encwallet:tokens:v"
	defaultCacheTTL      = time.Hour
)

type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// RedisTokenCache shares token metadata between processes. Bumping the
// version key invalidates every entry at once.
type RedisTokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenCache(cfg RedisConfig) (*RedisTokenCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisTokenCache{client: client, ttl: cfg.TTL}, nil
}

func (c *RedisTokenCache) GetToken(ctx context.Context, address common.Address) (domain.TokenInfo, bool) {
	version, ok := c.cacheVersion(ctx)
	if !ok {
		return domain.TokenInfo{}, false
	}
	cached, err := c.client.Get(ctx, tokenCacheKey(version, address)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("token cache read failed", "token", address.Hex(), "err", err)
		}
		return domain.TokenInfo{}, false
	}
	var info domain.TokenInfo
	if err := json.Unmarshal([]byte(cached), &info); err != nil {
		return domain.TokenInfo{}, false
	}
	return info, true
}

func (c *RedisTokenCache) SetToken(ctx context.Context, info domain.TokenInfo) {
	version, ok := c.cacheVersion(ctx)
	if !ok {
		return
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tokenCacheKey(version, common.HexToAddress(info.Address)), payload, c.ttl).Err(); err != nil {
		slog.Debug("token cache write failed", "token", info.Address, "err", err)
	}
}

// Invalidate drops every cached token.
func (c *RedisTokenCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, tokenCacheVersionKey).Err()
}

func (c *RedisTokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}

func (c *RedisTokenCache) cacheVersion(ctx context.Context) (string, bool) {
	version, err := c.client.Get(ctx, tokenCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func tokenCacheKey(version string, address common.Address) string {
	var b strings.Builder
	b.Grow(len(tokenCacheKeyPrefix) + len(version) + 43)
	b.WriteString(tokenCacheKeyPrefix)
	b.WriteString(version)
	b.WriteString(":")
	b.WriteString(strings.ToLower(address.Hex()))
	return b.String()
}
