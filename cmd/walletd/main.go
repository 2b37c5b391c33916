package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/config"
	"encwallet/internal/infrastructure/cache"
	"encwallet/internal/infrastructure/ethrpc"
	"encwallet/internal/infrastructure/keyservice"
	"encwallet/internal/infrastructure/logging"
	"encwallet/internal/infrastructure/telemetry"
	"encwallet/internal/interfaces/httpapi"
	"encwallet/internal/keys"

	"github.com/ethereum/go-ethereum/common"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if closer, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	} else if closer != nil {
		defer closer.Close()
	}
	if err := cfg.RequireRPC(); err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracingConfig{
		ServiceName:    "encwallet-walletd",
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	encryptor, decryptor, err := loadKeys(cfg)
	if err != nil {
		slog.Error("key material error", "err", err)
		os.Exit(1)
	}

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:         cfg.RPCURL,
		MaxAttempts: cfg.RPCMaxAttempts,
		MaxDelay:    cfg.RPCMaxDelay,
	})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tokenCache, err := newTokenCache(ctx, cfg)
	if err != nil {
		slog.Error("token cache error", "err", err)
		os.Exit(1)
	}

	factory := common.HexToAddress(cfg.FactoryAddress)
	registry, err := application.NewTokenRegistry(rpcClient, factory, tokenCache)
	if err != nil {
		slog.Error("token registry error", "err", err)
		os.Exit(1)
	}
	history, err := application.NewHistoryService(rpcClient, application.HistoryConfig{
		FromBlock:        cfg.FromBlock,
		PageSize:         cfg.PageSize,
		TimestampWorkers: cfg.TimestampWorkers,
	})
	if err != nil {
		slog.Error("history service error", "err", err)
		os.Exit(1)
	}
	balances, err := application.NewBalanceService(rpcClient, registry, decryptor)
	if err != nil {
		slog.Error("balance service error", "err", err)
		os.Exit(1)
	}
	transfers, err := application.NewTransferService(registry, encryptor)
	if err != nil {
		slog.Error("transfer service error", "err", err)
		os.Exit(1)
	}
	deployments, err := application.NewDeployService(encryptor, application.DeployConfig{
		Factory:  factory,
		Paillier: common.HexToAddress(cfg.PaillierAddress),
	})
	if err != nil {
		slog.Error("deploy service error", "err", err)
		os.Exit(1)
	}

	httpServer, err := httpapi.NewServer(httpapi.Services{
		History:     history,
		Tokens:      registry,
		Balances:    balances,
		Transfers:   transfers,
		Deployments: deployments,
		PublicKey:   encryptor.PublicKey(),
	}, rpcClient, httpapi.NewMetrics(), httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	slog.Info("walletd listening",
		"addr", cfg.HTTPAddr,
		"rpc", cfg.RPCURL,
		"factory", cfg.FactoryAddress,
		"private_key", cfg.HasPrivateKey(),
		"remote_decrypt", cfg.DecryptURL != "",
	)
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server stopped", "err", err)
		os.Exit(1)
	}
}

// loadKeys picks the key capability this process runs with: full material
// when the private key is configured, otherwise public material paired with
// the remote decrypt service or no decryption at all.
func loadKeys(cfg config.Config) (*keys.PublicMaterial, application.Decryptor, error) {
	if cfg.HasPrivateKey() {
		full, err := keys.LoadFull(cfg.PaillierN, cfg.PaillierG, cfg.PaillierLambda, cfg.PaillierMu)
		if err != nil {
			return nil, nil, err
		}
		return &full.PublicMaterial, full, nil
	}
	public, err := keys.LoadPublic(cfg.PaillierN, cfg.PaillierG)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DecryptURL == "" {
		return public, keys.Unsupported{}, nil
	}
	remote, err := keyservice.NewClient(keyservice.Config{
		URL:         cfg.DecryptURL,
		MaxAttempts: cfg.RPCMaxAttempts,
		MaxDelay:    cfg.RPCMaxDelay,
	})
	if err != nil {
		return nil, nil, err
	}
	return public, remote, nil
}

func newTokenCache(ctx context.Context, cfg config.Config) (application.TokenCache, error) {
	local, err := cache.NewMemoryTokenCache(ctx, cfg.TokenCacheTTL)
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return cache.NewTiered(local, nil), nil
	}
	shared, err := cache.NewRedisTokenCache(cache.RedisConfig{Addr: cfg.RedisAddr, TTL: cfg.TokenCacheTTL})
	if err != nil {
		slog.Warn("redis token cache disabled", "addr", cfg.RedisAddr, "err", err)
		return cache.NewTiered(local, nil), nil
	}
	return cache.NewTiered(local, shared), nil
}
