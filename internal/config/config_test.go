package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() EnvMap {
	return EnvMap{
		"PAILLIER_N": "0x8f",
		"PAILLIER_G": "0x90",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, "0x8f", cfg.PaillierN)
	assert.False(t, cfg.HasPrivateKey())
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 4, cfg.RPCMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RPCMaxDelay)
	assert.Equal(t, 8, cfg.TimestampWorkers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, time.Hour, cfg.TokenCacheTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "encwallet-transfers", cfg.KafkaTopic)
	assert.Equal(t, "sqlite", cfg.StateDBDriver)
	assert.Equal(t, "encwallet-state.db", cfg.StateDBDSN)
	assert.Equal(t, uint64(1000), cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.ErrorIs(t, cfg.RequireRPC(), domain.ErrConfiguration)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PAILLIER_LAMBDA"] = "0x1"
	env["PAILLIER_MU"] = "0x2"
	env["RPC_URL"] = " http://localhost:8545 "
	env["FACTORY_ADDRESS"] = "0x000000000000000000000000000000000000fac7"
	env["FROM_BLOCK"] = "120"
	env["PAGE_SIZE"] = "25"
	env["RPC_MAX_DELAY"] = "5s"
	env["KAFKA_BROKERS"] = "a:9092, b:9092,"
	env["STATE_DB_DRIVER"] = "MySQL"
	env["STATE_DB_DSN"] = "user@tcp(db:3306)/wallet"
	env["WATCH_TOKENS"] = "0x0000000000000000000000000000000000007e57,0x0000000000000000000000000000000000000001"
	env["LOG_LEVEL"] = "debug"

	cfg, err := Load(env)
	require.NoError(t, err)
	assert.True(t, cfg.HasPrivateKey())
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.NoError(t, cfg.RequireRPC())
	assert.Equal(t, common.HexToAddress("0x000000000000000000000000000000000000fac7").Hex(), cfg.FactoryAddress)
	assert.Equal(t, uint64(120), cfg.FromBlock)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.RPCMaxDelay)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "mysql", cfg.StateDBDriver)
	assert.Len(t, cfg.WatchTokens, 2)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]func(EnvMap){
		"missing n":         func(env EnvMap) { delete(env, "PAILLIER_N") },
		"missing g":         func(env EnvMap) { env["PAILLIER_G"] = " " },
		"lambda without mu": func(env EnvMap) { env["PAILLIER_LAMBDA"] = "0x1" },
		"bad factory":       func(env EnvMap) { env["FACTORY_ADDRESS"] = "0x123" },
		"bad page size":     func(env EnvMap) { env["PAGE_SIZE"] = "0" },
		"bad from block":    func(env EnvMap) { env["FROM_BLOCK"] = "-1" },
		"bad attempts":      func(env EnvMap) { env["RPC_MAX_ATTEMPTS"] = "0" },
		"bad delay":         func(env EnvMap) { env["RPC_MAX_DELAY"] = "soon" },
		"bad driver":        func(env EnvMap) { env["STATE_DB_DRIVER"] = "postgres" },
		"bad watch token":   func(env EnvMap) { env["WATCH_TOKENS"] = "nope" },
		"negative poll":     func(env EnvMap) { env["POLL_INTERVAL"] = "-1s" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			mutate(env)
			_, err := Load(env)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestLoadRequiresSource(t *testing.T) {
	_, err := Load(nil)
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.env")
	require.NoError(t, os.WriteFile(path, []byte("PAILLIER_N=0x8f\nPAILLIER_G=0x90\nPAGE_SIZE=7\n"), 0o600))
	for _, key := range []string{"PAILLIER_N", "PAILLIER_G", "PAGE_SIZE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PageSize)
	assert.Equal(t, "0x90", cfg.PaillierG)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
