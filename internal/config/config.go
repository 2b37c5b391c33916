package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	PaillierN      string
	PaillierG      string
	PaillierLambda string
	PaillierMu     string

	RPCURL           string
	RPCMaxAttempts   int
	RPCMaxDelay      time.Duration
	FactoryAddress   string
	PaillierAddress  string
	FromBlock        uint64
	PageSize         int
	TimestampWorkers int
	DecryptURL       string

	HTTPAddr      string
	MetricsAddr   string
	RedisAddr     string
	TokenCacheTTL time.Duration
	OtelEndpoint  string

	KafkaBrokers  []string
	KafkaTopic    string
	StateDBDriver string
	StateDBDSN    string
	Confirmations uint64
	PollInterval  time.Duration
	BatchSize     uint64
	WatchTokens   []string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// HasPrivateKey reports whether both private key parts are configured.
func (c Config) HasPrivateKey() bool {
	return c.PaillierLambda != "" && c.PaillierMu != ""
}

// RequireRPC fails unless a chain RPC endpoint is configured.
func (c Config) RequireRPC() error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: RPC_URL is required", domain.ErrConfiguration)
	}
	return nil
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}
	cfg, err := load(source)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

func load(source EnvSource) (Config, error) {
	paillierN := lookupTrimmed(source, "PAILLIER_N")
	if paillierN == "" {
		return Config{}, errors.New("PAILLIER_N is required")
	}
	paillierG := lookupTrimmed(source, "PAILLIER_G")
	if paillierG == "" {
		return Config{}, errors.New("PAILLIER_G is required")
	}
	lambda := lookupTrimmed(source, "PAILLIER_LAMBDA")
	mu := lookupTrimmed(source, "PAILLIER_MU")
	if (lambda == "") != (mu == "") {
		return Config{}, errors.New("PAILLIER_LAMBDA and PAILLIER_MU must be set together")
	}

	factory, err := parseAddressEnv(source, "FACTORY_ADDRESS")
	if err != nil {
		return Config{}, err
	}
	paillierAddress, err := parseAddressEnv(source, "PAILLIER_ADDRESS")
	if err != nil {
		return Config{}, err
	}

	fromBlock, err := parseUintEnv(source, "FROM_BLOCK", 0)
	if err != nil {
		return Config{}, err
	}
	pageSize, err := parseUintEnv(source, "PAGE_SIZE", 10)
	if err != nil {
		return Config{}, err
	}
	if pageSize == 0 || pageSize > 1000 {
		return Config{}, errors.New("PAGE_SIZE must be between 1 and 1000")
	}
	maxAttempts, err := parseUintEnv(source, "RPC_MAX_ATTEMPTS", 4)
	if err != nil {
		return Config{}, err
	}
	if maxAttempts == 0 {
		return Config{}, errors.New("RPC_MAX_ATTEMPTS must be at least 1")
	}
	maxDelay, err := parseDurationEnv(source, "RPC_MAX_DELAY", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	timestampWorkers, err := parseUintEnv(source, "TIMESTAMP_WORKERS", 8)
	if err != nil {
		return Config{}, err
	}
	if timestampWorkers == 0 {
		timestampWorkers = 1
	}

	httpAddr := ":8080"
	if raw := lookupTrimmed(source, "HTTP_ADDR"); raw != "" {
		httpAddr = raw
	}
	metricsAddr := ":9102"
	if raw, ok := source.Lookup("METRICS_ADDR"); ok {
		metricsAddr = strings.TrimSpace(raw)
	}
	tokenCacheTTL, err := parseDurationEnv(source, "TOKEN_CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	kafkaTopic := lookupTrimmed(source, "KAFKA_TOPIC")
	if kafkaTopic == "" {
		kafkaTopic = "encwallet-transfers"
	}
	stateDriver := strings.ToLower(lookupTrimmed(source, "STATE_DB_DRIVER"))
	if stateDriver == "" {
		stateDriver = "sqlite"
	}
	if stateDriver != "sqlite" && stateDriver != "mysql" {
		return Config{}, fmt.Errorf("invalid STATE_DB_DRIVER %q", stateDriver)
	}
	stateDSN := lookupTrimmed(source, "STATE_DB_DSN")
	if stateDSN == "" && stateDriver == "sqlite" {
		stateDSN = "encwallet-state.db"
	}
	confirmations, err := parseUintEnv(source, "CONFIRMATIONS", 0)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDurationEnv(source, "POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	batchSize, err := parseUintEnv(source, "BATCH_SIZE", 1000)
	if err != nil {
		return Config{}, err
	}
	watchTokens, err := parseAddressList(source, "WATCH_TOKENS")
	if err != nil {
		return Config{}, err
	}

	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	return Config{
		PaillierN:        paillierN,
		PaillierG:        paillierG,
		PaillierLambda:   lambda,
		PaillierMu:       mu,
		RPCURL:           lookupTrimmed(source, "RPC_URL"),
		RPCMaxAttempts:   int(maxAttempts),
		RPCMaxDelay:      maxDelay,
		FactoryAddress:   factory,
		PaillierAddress:  paillierAddress,
		FromBlock:        fromBlock,
		PageSize:         int(pageSize),
		TimestampWorkers: int(timestampWorkers),
		DecryptURL:       lookupTrimmed(source, "DECRYPT_URL"),
		HTTPAddr:         httpAddr,
		MetricsAddr:      metricsAddr,
		RedisAddr:        lookupTrimmed(source, "REDIS_ADDR"),
		TokenCacheTTL:    tokenCacheTTL,
		OtelEndpoint:     lookupTrimmed(source, "OTEL_EXPORTER_OTLP_ENDPOINT"),
		KafkaBrokers:     kafkaBrokers,
		KafkaTopic:       kafkaTopic,
		StateDBDriver:    stateDriver,
		StateDBDSN:       stateDSN,
		Confirmations:    confirmations,
		PollInterval:     pollInterval,
		BatchSize:        batchSize,
		WatchTokens:      watchTokens,
		LogLevel:         lookupTrimmed(source, "LOG_LEVEL"),
		LogFile:          lookupTrimmed(source, "LOG_FILE"),
		LogMaxSizeMB:     int(logMaxSize),
		LogMaxBackups:    int(logMaxBackups),
	}, nil
}

func lookupTrimmed(source EnvSource, key string) string {
	raw, _ := source.Lookup(key)
	return strings.TrimSpace(raw)
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}

func parseAddressEnv(source EnvSource, key string) (string, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return "", nil
	}
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("invalid %s: %q is not an address", key, raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}

func parseAddressList(source EnvSource, key string) ([]string, error) {
	raw := lookupTrimmed(source, key)
	if raw == "" {
		return nil, nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		if !common.IsHexAddress(value) {
			return nil, fmt.Errorf("invalid %s: %q is not an address", key, value)
		}
		values = append(values, common.HexToAddress(value).Hex())
	}
	return values, nil
}
