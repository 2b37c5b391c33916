// Package keyservice decrypts through a remote walletd that holds the
// private key, so public-only processes can still serve balances.
package keyservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"encwallet/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	MaxDelay    time.Duration
}

type Client struct {
	endpoint    string
	httpClient  *http.Client
	maxAttempts int
	maxDelay    time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: decrypt service url is required", domain.ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	return &Client{
		endpoint:    base + "/decrypt",
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		maxDelay:    cfg.MaxDelay,
	}, nil
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

type decryptResponse struct {
	Raw       string `json:"raw"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// Decrypt returns the signed plaintext of ciphertext. Remote errors are
// mapped back onto the same domain errors the local decryptor returns.
func (c *Client) Decrypt(ctx context.Context, ciphertext string) (*big.Int, error) {
	ctx, span := otel.Tracer("encwallet/keyservice").Start(ctx, "keyservice.decrypt", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	payload, err := json.Marshal(decryptRequest{Ciphertext: ciphertext})
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = min(time.Second, c.maxDelay)
	policy.MaxInterval = c.maxDelay
	policy.MaxElapsedTime = 0

	var value *big.Int
	op := func() error {
		result, err := c.do(ctx, payload)
		if err != nil {
			if errors.Is(err, domain.ErrNetwork) {
				return err
			}
			return backoff.Permanent(err)
		}
		value = result
		return nil
	}
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return value, nil
}

func (c *Client) do(ctx context.Context, payload []byte) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: decrypt service: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read decrypt response: %v", domain.ErrNetwork, err)
	}
	var decoded decryptResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil && resp.StatusCode == http.StatusOK {
			return nil, fmt.Errorf("%w: decode decrypt response: %v", domain.ErrNetwork, err)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(resp.StatusCode, decoded.Error)
	}
	value, ok := new(big.Int).SetString(decoded.Raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: decrypt service returned %q", domain.ErrDecryption, decoded.Raw)
	}
	return value, nil
}

func remoteError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrMalformedInput, message)
	case status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrDecryption, message)
	case status == http.StatusNotImplemented:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedOperation, message)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: decrypt service status %d: %s", domain.ErrNetwork, status, message)
	default:
		return fmt.Errorf("%w: decrypt service status %d: %s", domain.ErrConfiguration, status, message)
	}
}
