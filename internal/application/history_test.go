package application

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"encwallet/internal/contracts"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	token = common.HexToAddress("0x0000000000000000000000000000000000007e57")
)

type fakeLogSource struct {
	mu         sync.Mutex
	sent       []domain.LogEntry
	received   []domain.LogEntry
	timestamps map[uint64]uint64
	tsErr      error
	tsCalls    map[uint64]int
	filters    []LogFilter
}

func (f *fakeLogSource) GetLogs(_ context.Context, filter LogFilter) ([]domain.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if filter.Topics[1] != nil {
		return f.sent, nil
	}
	return f.received, nil
}

func (f *fakeLogSource) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tsCalls == nil {
		f.tsCalls = make(map[uint64]int)
	}
	f.tsCalls[number]++
	if f.tsErr != nil {
		return 0, f.tsErr
	}
	return f.timestamps[number], nil
}

func transferLog(t *testing.T, hash string, block uint64, from, to common.Address) domain.LogEntry {
	t.Helper()
	data, topics, err := contracts.EncodeTransferLog(from, to, contracts.Ciphertext{Value: []byte{0xca, 0xfe}})
	require.NoError(t, err)
	return domain.LogEntry{BlockNumber: block, TxHash: hash, Address: token.Hex(), Data: data, Topics: topics}
}

func TestMergeLogsDedupAndOrder(t *testing.T) {
	sent := []domain.LogEntry{{TxHash: "h1", BlockNumber: 5}, {TxHash: "h2", BlockNumber: 3}}
	received := []domain.LogEntry{{TxHash: "h2", BlockNumber: 3}, {TxHash: "h3", BlockNumber: 7}}

	merged := MergeLogs(sent, received)

	require.Len(t, merged, 3)
	assert.Equal(t, "h3", merged[0].TxHash)
	assert.Equal(t, "h1", merged[1].TxHash)
	assert.Equal(t, "h2", merged[2].TxHash)
}

func TestMergeLogsPendingLastAndDropsMissingHash(t *testing.T) {
	sent := []domain.LogEntry{{TxHash: "p", Pending: true}, {TxHash: "", BlockNumber: 9}, {TxHash: "a", BlockNumber: 1}}
	received := []domain.LogEntry{{TxHash: "b", BlockNumber: 2}}

	merged := MergeLogs(sent, received)

	require.Len(t, merged, 3)
	assert.Equal(t, []string{"b", "a", "p"}, []string{merged[0].TxHash, merged[1].TxHash, merged[2].TxHash})
}

func TestPaginate(t *testing.T) {
	txs := make([]domain.Transaction, 5)
	for i := range txs {
		txs[i].Hash = string(rune('a' + i))
	}

	first := Paginate(txs, 0, 2)
	require.Len(t, first.Transactions, 2)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, 1, *first.NextCursor)

	last := Paginate(txs, 2, 2)
	require.Len(t, last.Transactions, 1)
	assert.Equal(t, "e", last.Transactions[0].Hash)
	assert.Nil(t, last.NextCursor)

	beyond := Paginate(txs, 7, 2)
	assert.Empty(t, beyond.Transactions)
	assert.Nil(t, beyond.NextCursor)

	exact := Paginate(txs[:4], 1, 2)
	assert.Len(t, exact.Transactions, 2)
	assert.Nil(t, exact.NextCursor)
}

func TestPaginateHugeValuesDoNotOverflow(t *testing.T) {
	txs := make([]domain.Transaction, 5)

	all := Paginate(txs, 0, math.MaxInt)
	assert.Len(t, all.Transactions, 5)
	assert.Nil(t, all.NextCursor)

	second := Paginate(txs, 1, math.MaxInt)
	assert.Empty(t, second.Transactions)
	assert.Nil(t, second.NextCursor)

	far := Paginate(txs, math.MaxInt/5, 10)
	assert.Empty(t, far.Transactions)
	assert.Nil(t, far.NextCursor)

	farther := Paginate(txs, math.MaxInt, math.MaxInt)
	assert.Empty(t, farther.Transactions)
}

func TestHistoryPageReconstructsTransfers(t *testing.T) {
	source := &fakeLogSource{
		sent: []domain.LogEntry{
			transferLog(t, "0x01", 5, alice, bob),
			transferLog(t, "0x02", 3, alice, carol),
		},
		received: []domain.LogEntry{
			transferLog(t, "0x02", 3, alice, carol),
			transferLog(t, "0x03", 7, bob, alice),
		},
		timestamps: map[uint64]uint64{3: 300, 5: 500, 7: 700},
	}
	service, err := NewHistoryService(source, HistoryConfig{FromBlock: 2})
	require.NoError(t, err)

	page, err := service.Page(context.Background(), HistoryQuery{Account: alice, Token: token})
	require.NoError(t, err)

	require.Len(t, page.Transactions, 3)
	assert.Nil(t, page.NextCursor)
	first := page.Transactions[0]
	assert.Equal(t, "0x03", first.Hash)
	assert.Equal(t, bob.Hex(), first.From)
	assert.Equal(t, alice.Hex(), first.To)
	assert.Equal(t, "0xcafe", first.EncryptedAmount)
	assert.Equal(t, uint64(700), first.Timestamp)
	assert.Equal(t, domain.StatusConfirmed, first.Status)
	assert.Equal(t, uint64(300), page.Transactions[2].Timestamp)

	require.Len(t, source.filters, 2)
	for _, filter := range source.filters {
		assert.Equal(t, token, filter.Address)
		assert.Equal(t, uint64(2), filter.FromBlock)
		assert.Nil(t, filter.ToBlock)
		assert.Equal(t, contracts.TransferTopic, *filter.Topics[0])
	}
}

func TestHistoryPageFetchesEachBlockOnce(t *testing.T) {
	source := &fakeLogSource{
		sent: []domain.LogEntry{
			transferLog(t, "0x01", 4, alice, bob),
			transferLog(t, "0x02", 4, alice, carol),
		},
		timestamps: map[uint64]uint64{4: 40},
	}
	service, err := NewHistoryService(source, HistoryConfig{})
	require.NoError(t, err)

	_, err = service.Page(context.Background(), HistoryQuery{Account: alice, Token: token})
	require.NoError(t, err)
	assert.Equal(t, 1, source.tsCalls[4])
}

func TestHistoryPageFailsWhenTimestampUnavailable(t *testing.T) {
	source := &fakeLogSource{
		sent:  []domain.LogEntry{transferLog(t, "0x01", 4, alice, bob)},
		tsErr: errors.Join(domain.ErrNetwork, errors.New("boom")),
	}
	service, err := NewHistoryService(source, HistoryConfig{})
	require.NoError(t, err)

	_, err = service.Page(context.Background(), HistoryQuery{Account: alice, Token: token})
	require.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, domain.Retryable(err))
}

func TestHistoryPageStatuses(t *testing.T) {
	removed := transferLog(t, "0x01", 4, alice, bob)
	removed.Removed = true
	pending := transferLog(t, "0x02", 0, alice, bob)
	pending.Pending = true
	source := &fakeLogSource{
		sent:       []domain.LogEntry{removed, pending},
		timestamps: map[uint64]uint64{4: 40},
	}
	service, err := NewHistoryService(source, HistoryConfig{})
	require.NoError(t, err)

	page, err := service.Page(context.Background(), HistoryQuery{Account: alice, Token: token})
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, domain.StatusFailed, page.Transactions[0].Status)
	assert.Equal(t, domain.StatusPending, page.Transactions[1].Status)
	assert.Zero(t, page.Transactions[1].Timestamp)
	assert.NotContains(t, source.tsCalls, uint64(0))
}

func TestHistoryPageRejectsForeignEvents(t *testing.T) {
	entry := transferLog(t, "0x01", 4, alice, bob)
	entry.Topics[0] = contracts.TokenABI.Events["Approval"].ID.Hex()
	source := &fakeLogSource{sent: []domain.LogEntry{entry}}
	service, err := NewHistoryService(source, HistoryConfig{})
	require.NoError(t, err)

	_, err = service.Page(context.Background(), HistoryQuery{Account: alice, Token: token})
	assert.ErrorIs(t, err, domain.ErrReconstruction)
}

func TestHistoryPageFilterAndSearch(t *testing.T) {
	source := &fakeLogSource{
		sent: []domain.LogEntry{
			transferLog(t, "0x01", 5, alice, bob),
			transferLog(t, "0x02", 3, alice, carol),
		},
		received: []domain.LogEntry{
			transferLog(t, "0x03", 7, bob, alice),
		},
		timestamps: map[uint64]uint64{3: 3, 5: 5, 7: 7},
	}
	service, err := NewHistoryService(source, HistoryConfig{})
	require.NoError(t, err)
	ctx := context.Background()

	sent, err := service.Page(ctx, HistoryQuery{Account: alice, Token: token, Filter: FilterSent})
	require.NoError(t, err)
	assert.Len(t, sent.Transactions, 2)

	received, err := service.Page(ctx, HistoryQuery{Account: alice, Token: token, Filter: FilterReceived})
	require.NoError(t, err)
	require.Len(t, received.Transactions, 1)
	assert.Equal(t, "0x03", received.Transactions[0].Hash)

	searched, err := service.Page(ctx, HistoryQuery{Account: alice, Token: token, Search: "CA201"})
	require.NoError(t, err)
	require.Len(t, searched.Transactions, 1)
	assert.Equal(t, "0x02", searched.Transactions[0].Hash)
}

func TestHistoryPageRejectsNegativePage(t *testing.T) {
	service, err := NewHistoryService(&fakeLogSource{}, HistoryConfig{})
	require.NoError(t, err)
	_, err = service.Page(context.Background(), HistoryQuery{Account: alice, Token: token, Page: -1})
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestParseHistoryFilter(t *testing.T) {
	filter, err := ParseHistoryFilter(" Sent ")
	require.NoError(t, err)
	assert.Equal(t, FilterSent, filter)

	filter, err = ParseHistoryFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, filter)

	_, err = ParseHistoryFilter("minted")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
