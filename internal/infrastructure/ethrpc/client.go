package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrBlockUnavailable = errors.New("block unavailable")

type Client struct {
	url         string
	httpClient  *http.Client
	idCounter   uint64
	maxAttempts int
	maxDelay    time.Duration
	baseDelay   time.Duration
}

type Config struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	MaxDelay    time.Duration
	BaseDelay   time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Client{
		url:         cfg.URL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		maxDelay:    cfg.MaxDelay,
		baseDelay:   cfg.BaseDelay,
	}, nil
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_chainId", []any{}, &result); err != nil {
		return 0, err
	}
	return parseHexUint(result)
}

func (c *Client) GetLogs(ctx context.Context, filter application.LogFilter) ([]domain.LogEntry, error) {
	topics := make([]any, len(filter.Topics))
	for i, topic := range filter.Topics {
		if topic != nil {
			topics[i] = topic.Hex()
		}
	}
	toBlock := "latest"
	if filter.ToBlock != nil {
		toBlock = formatHexUint(*filter.ToBlock)
	}
	params := map[string]any{
		"address":   strings.ToLower(filter.Address.Hex()),
		"topics":    topics,
		"fromBlock": formatHexUint(filter.FromBlock),
		"toBlock":   toBlock,
	}

	var result []rpcLog
	if err := c.call(ctx, "eth_getLogs", []any{params}, &result); err != nil {
		return nil, err
	}

	logs := make([]domain.LogEntry, 0, len(result))
	for _, log := range result {
		entry := domain.LogEntry{
			Address: strings.ToLower(log.Address),
			Data:    log.Data,
			Topics:  log.Topics,
			Removed: log.Removed,
		}
		if log.TxHash != nil {
			entry.TxHash = *log.TxHash
		}
		if log.BlockHash != nil {
			entry.BlockHash = *log.BlockHash
		}
		if log.BlockNumber == nil {
			entry.Pending = true
		} else {
			blockNumber, err := parseHexUint(*log.BlockNumber)
			if err != nil {
				return nil, err
			}
			entry.BlockNumber = blockNumber
		}
		if log.LogIndex != nil {
			logIndex, err := parseHexUint(*log.LogIndex)
			if err != nil {
				return nil, err
			}
			entry.LogIndex = logIndex
		}
		logs = append(logs, entry)
	}

	return logs, nil
}

// BlockByNumber returns the header of a block. A block the node does not know
// yields ErrBlockUnavailable.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (domain.Block, error) {
	var result *rpcBlock
	if err := c.call(ctx, "eth_getBlockByNumber", []any{formatHexUint(number), false}, &result); err != nil {
		return domain.Block{}, err
	}
	if result == nil {
		return domain.Block{}, fmt.Errorf("%w: block %d: %w", domain.ErrNetwork, number, ErrBlockUnavailable)
	}
	timestamp, err := parseHexUint(result.Timestamp)
	if err != nil {
		return domain.Block{}, err
	}
	return domain.Block{Number: number, Hash: result.Hash, Timestamp: timestamp}, nil
}

// BlockTimestamp returns the unix timestamp of a block.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	block, err := c.BlockByNumber(ctx, number)
	if err != nil {
		return 0, err
	}
	return block.Timestamp, nil
}

// Call runs eth_call against the latest block.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]any{
		"to":   strings.ToLower(to.Hex()),
		"data": hexutil.Encode(data),
	}
	var result string
	if err := c.call(ctx, "eth_call", []any{msg, "latest"}, &result); err != nil {
		return nil, err
	}
	out, err := hexutil.Decode(normalizeHexData(result))
	if err != nil {
		return nil, fmt.Errorf("%w: eth_call result: %v", domain.ErrReconstruction, err)
	}
	return out, nil
}

type rpcLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber *string  `json:"blockNumber"`
	BlockHash   *string  `json:"blockHash"`
	TxHash      *string  `json:"transactionHash"`
	LogIndex    *string  `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

type rpcBlock struct {
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Limit exceeded and internal errors are the codes providers return for
// overload; everything else is a caller error.
func (e *rpcError) transient() bool {
	return e.Code == -32005 || e.Code == -32603
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rpc status %d", e.code)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	ctx, span := otel.Tracer("encwallet/ethrpc").Start(ctx, "rpc."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("rpc.method", method))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.baseDelay
	policy.MaxInterval = c.maxDelay
	policy.MaxElapsedTime = 0
	var attempts int
	op := func() error {
		attempts++
		err := c.do(ctx, method, params, result)
		if err == nil || isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx))
	span.SetAttributes(attribute.Int("rpc.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", domain.ErrNetwork, method, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{code: resp.StatusCode}
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("rpc result is empty")
	}
	return json.Unmarshal(decoded.Result, result)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) {
		return rpcErr.transient()
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= 500
	}
	var transport *transportError
	return errors.As(err, &transport)
}

func parseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, errors.New("empty hex value")
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

func formatHexUint(value uint64) string {
	return fmt.Sprintf("0x%x", value)
}

func normalizeHexData(value string) string {
	if value == "" {
		return "0x"
	}
	return value
}
