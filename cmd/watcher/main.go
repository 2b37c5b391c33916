package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/config"
	"encwallet/internal/infrastructure/ethrpc"
	"encwallet/internal/infrastructure/kafka"
	"encwallet/internal/infrastructure/logging"
	"encwallet/internal/infrastructure/storage"
	"encwallet/internal/infrastructure/telemetry"
	"encwallet/internal/interfaces/httpapi"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
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
	if len(cfg.WatchTokens) == 0 {
		slog.Error("config error", "err", "WATCH_TOKENS is required")
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracingConfig{
		ServiceName: "encwallet-watcher",
		Endpoint:    cfg.OtelEndpoint,
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:         cfg.RPCURL,
		MaxAttempts: cfg.RPCMaxAttempts,
		MaxDelay:    cfg.RPCMaxDelay,
	})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}
	chainID, err := rpcClient.ChainID(ctx)
	if err != nil {
		slog.Error("chain id error", "err", err)
		os.Exit(1)
	}

	state, err := storage.OpenStateStore(cfg.StateDBDriver, cfg.StateDBDSN)
	if err != nil {
		slog.Error("state store error", "err", err)
		os.Exit(1)
	}
	defer state.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopic,
		ChainID:     chainID,
	})
	if err != nil {
		slog.Error("kafka producer error", "err", err)
		os.Exit(1)
	}
	defer producer.Close()

	metrics := httpapi.NewMetrics()
	watcher, err := application.NewTransferWatcher(rpcClient, state, &observer{metrics: metrics}, application.WatcherConfig{
		StartBlock:    cfg.FromBlock,
		Confirmations: cfg.Confirmations,
		PollInterval:  cfg.PollInterval,
		BatchSize:     cfg.BatchSize,
	})
	if err != nil {
		slog.Error("watcher error", "err", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, metrics.Handler())
	}

	slog.Info("watcher started",
		"chain_id", chainID,
		"tokens", cfg.WatchTokens,
		"state", cfg.StateDBDriver,
		"topic_prefix", cfg.KafkaTopic,
		"confirmations", cfg.Confirmations,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, raw := range cfg.WatchTokens {
		token := common.HexToAddress(raw)
		group.Go(func() error {
			return watcher.Run(groupCtx, token, producer.PublishBatch)
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watcher stopped", "err", err)
		os.Exit(1)
	}
}

type observer struct {
	metrics *httpapi.Metrics
}

func (o *observer) OnLatestBlock(block uint64) {
	o.metrics.OnLatestBlock(block)
}

func (o *observer) OnBatchProcessed(fromBlock, toBlock uint64, logCount int) {
	o.metrics.OnBatchProcessed(fromBlock, toBlock, logCount)
	slog.Info("transfer batch published",
		"from_block", fromBlock,
		"to_block", toBlock,
		"logs", logCount,
	)
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics server stopped", "addr", addr, "err", err)
	}
}
