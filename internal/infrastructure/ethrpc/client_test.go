package ethrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcHandler func(method string, params []json.RawMessage) (any, *rpcError, int)

func newTestServer(t *testing.T, handler rpcHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr, status := handler(req.Method, req.Params)
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{URL: url, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	require.NoError(t, err)
	return client
}

func TestGetLogsEncodesWildcardTopics(t *testing.T) {
	var captured map[string]any
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		require.Equal(t, "eth_getLogs", method)
		require.NoError(t, json.Unmarshal(params[0], &captured))
		return []map[string]any{
			{"address": "0xABC", "topics": []string{"0x01"}, "data": "0x", "blockNumber": "0x10", "transactionHash": "0xaa", "logIndex": "0x2"},
			{"address": "0xabc", "topics": []string{"0x01"}, "data": "0x", "blockNumber": nil, "transactionHash": "0xbb", "logIndex": nil},
		}, nil, 0
	})
	client := newTestClient(t, server.URL)

	topic := common.HexToHash("0x01")
	logs, err := client.GetLogs(context.Background(), application.LogFilter{
		Address:   common.HexToAddress("0xabc"),
		Topics:    []*common.Hash{&topic, nil, &topic},
		FromBlock: 16,
	})
	require.NoError(t, err)

	assert.Equal(t, "0x10", captured["fromBlock"])
	assert.Equal(t, "latest", captured["toBlock"])
	topics := captured["topics"].([]any)
	require.Len(t, topics, 3)
	assert.Nil(t, topics[1])
	assert.Equal(t, topic.Hex(), topics[0])

	require.Len(t, logs, 2)
	assert.Equal(t, uint64(16), logs[0].BlockNumber)
	assert.Equal(t, uint64(2), logs[0].LogIndex)
	assert.Equal(t, "0xabc", logs[0].Address)
	assert.False(t, logs[0].Pending)
	assert.True(t, logs[1].Pending)
	assert.Equal(t, "0xbb", logs[1].TxHash)
}

func TestCallRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		if calls.Add(1) < 3 {
			return nil, nil, http.StatusServiceUnavailable
		}
		return "0x2a", nil, 0
	})
	client := newTestClient(t, server.URL)

	latest, err := client.LatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), latest)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		calls.Add(1)
		return nil, &rpcError{Code: -32005, Message: "limit exceeded"}, 0
	})
	client := newTestClient(t, server.URL)

	_, err := client.LatestBlockNumber(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallDoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		calls.Add(1)
		return nil, &rpcError{Code: -32602, Message: "invalid params"}, 0
	})
	client := newTestClient(t, server.URL)

	_, err := client.ChainID(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBlockTimestamp(t *testing.T) {
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		require.Equal(t, "eth_getBlockByNumber", method)
		var number string
		require.NoError(t, json.Unmarshal(params[0], &number))
		if number == "0x5" {
			return map[string]any{"hash": "0xb5", "timestamp": "0x6553f100"}, nil, 0
		}
		return nil, nil, 0
	})
	client := newTestClient(t, server.URL)

	ts, err := client.BlockTimestamp(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x6553f100), ts)

	_, err = client.BlockTimestamp(context.Background(), 6)
	assert.ErrorIs(t, err, ErrBlockUnavailable)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCallDecodesReturnData(t *testing.T) {
	server := newTestServer(t, func(method string, params []json.RawMessage) (any, *rpcError, int) {
		require.Equal(t, "eth_call", method)
		var msg map[string]string
		require.NoError(t, json.Unmarshal(params[0], &msg))
		assert.Equal(t, "0x01020304", msg["data"])
		return "0xbeef", nil, 0
	})
	client := newTestClient(t, server.URL)

	out, err := client.Call(context.Background(), common.HexToAddress("0x1"), []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xbe, 0xef}, out)
}
