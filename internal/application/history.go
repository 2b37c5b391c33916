package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"encwallet/internal/contracts"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const DefaultPageSize = 10

type LogSource interface {
	GetLogs(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

type HistoryConfig struct {
	FromBlock        uint64
	PageSize         int
	TimestampWorkers int
}

// HistoryService rebuilds an account's transfer history on one token from
// Transfer event logs.
type HistoryService struct {
	source LogSource
	cfg    HistoryConfig
}

func NewHistoryService(source LogSource, cfg HistoryConfig) (*HistoryService, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: history log source must not be nil", domain.ErrConfiguration)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.TimestampWorkers <= 0 {
		cfg.TimestampWorkers = 8
	}
	return &HistoryService{source: source, cfg: cfg}, nil
}

func (s *HistoryService) Page(ctx context.Context, query HistoryQuery) (domain.TransactionPage, error) {
	if query.Page < 0 {
		return domain.TransactionPage{}, fmt.Errorf("%w: page must not be negative", domain.ErrMalformedInput)
	}
	if query.PageSize <= 0 {
		query.PageSize = s.cfg.PageSize
	}
	if query.Filter == "" {
		query.Filter = FilterAll
	}

	ctx, span := otel.Tracer("encwallet/history").Start(ctx, "history.page")
	defer span.End()
	span.SetAttributes(
		attribute.String("account", query.Account.Hex()),
		attribute.String("token", query.Token.Hex()),
		attribute.Int("page", query.Page),
	)

	page, err := s.page(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.TransactionPage{}, err
	}
	span.SetAttributes(attribute.Int("transactions", len(page.Transactions)))
	return page, nil
}

func (s *HistoryService) page(ctx context.Context, query HistoryQuery) (domain.TransactionPage, error) {
	sent, received, err := s.fetchTransferLogs(ctx, query.Token, query.Account)
	if err != nil {
		return domain.TransactionPage{}, err
	}

	logs := MergeLogs(sent, received)
	txs := make([]domain.Transaction, 0, len(logs))
	for _, entry := range logs {
		tx, err := decodeTransaction(entry)
		if err != nil {
			return domain.TransactionPage{}, err
		}
		txs = append(txs, tx)
	}
	if err := s.attachTimestamps(ctx, txs); err != nil {
		return domain.TransactionPage{}, err
	}

	txs = FilterTransactions(txs, query.Account, query.Filter, query.Search)
	return Paginate(txs, query.Page, query.PageSize), nil
}

func (s *HistoryService) fetchTransferLogs(ctx context.Context, token, account common.Address) ([]domain.LogEntry, []domain.LogEntry, error) {
	topic := contracts.TransferTopic
	accountTopic := common.BytesToHash(account.Bytes())

	var sent, received []domain.LogEntry
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logs, err := s.source.GetLogs(groupCtx, LogFilter{
			Address:   token,
			Topics:    []*common.Hash{&topic, &accountTopic, nil},
			FromBlock: s.cfg.FromBlock,
		})
		if err != nil {
			return fmt.Errorf("fetch sent transfers: %w", err)
		}
		sent = logs
		return nil
	})
	group.Go(func() error {
		logs, err := s.source.GetLogs(groupCtx, LogFilter{
			Address:   token,
			Topics:    []*common.Hash{&topic, nil, &accountTopic},
			FromBlock: s.cfg.FromBlock,
		})
		if err != nil {
			return fmt.Errorf("fetch received transfers: %w", err)
		}
		received = logs
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return sent, received, nil
}

// attachTimestamps fills in block timestamps for every reconstructed
// transaction, one lookup per distinct block. All lookups must succeed; a
// single failure fails the whole page.
func (s *HistoryService) attachTimestamps(ctx context.Context, txs []domain.Transaction) error {
	blocks := make(map[uint64]uint64)
	for _, tx := range txs {
		if tx.Status != domain.StatusPending {
			blocks[tx.BlockNumber] = 0
		}
	}
	if len(blocks) == 0 {
		return nil
	}

	numbers := make([]uint64, 0, len(blocks))
	for number := range blocks {
		numbers = append(numbers, number)
	}
	timestamps := make([]uint64, len(numbers))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.TimestampWorkers)
	for i, number := range numbers {
		group.Go(func() error {
			ts, err := s.source.BlockTimestamp(groupCtx, number)
			if err != nil {
				return fmt.Errorf("timestamp for block %d: %w", number, err)
			}
			timestamps[i] = ts
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, number := range numbers {
		blocks[number] = timestamps[i]
	}
	for i := range txs {
		if txs[i].Status != domain.StatusPending {
			txs[i].Timestamp = blocks[txs[i].BlockNumber]
		}
	}
	return nil
}

// MergeLogs concatenates sent and received logs, keeps the first log seen for
// each transaction hash and orders the result newest block first. Logs that
// are not yet in a block sort last.
func MergeLogs(sent, received []domain.LogEntry) []domain.LogEntry {
	seen := make(map[string]struct{}, len(sent)+len(received))
	merged := make([]domain.LogEntry, 0, len(sent)+len(received))
	for _, group := range [][]domain.LogEntry{sent, received} {
		for _, entry := range group {
			if entry.TxHash == "" {
				continue
			}
			key := strings.ToLower(entry.TxHash)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, entry)
		}
	}
	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Pending != merged[b].Pending {
			return !merged[a].Pending
		}
		return merged[a].BlockNumber > merged[b].BlockNumber
	})
	return merged
}

func FilterTransactions(txs []domain.Transaction, account common.Address, filter HistoryFilter, search string) []domain.Transaction {
	search = strings.ToLower(strings.TrimSpace(search))
	if (filter == "" || filter == FilterAll) && search == "" {
		return txs
	}
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		switch filter {
		case FilterSent:
			if !strings.EqualFold(tx.From, account.Hex()) {
				continue
			}
		case FilterReceived:
			if !strings.EqualFold(tx.To, account.Hex()) {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(tx.To), search) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Paginate slices one page out of txs. NextCursor is set only when entries
// remain past the end of the page.
func Paginate(txs []domain.Transaction, page, pageSize int) domain.TransactionPage {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	// page*pageSize may overflow int, so bound page before multiplying.
	if page < 0 || page > len(txs)/pageSize {
		return domain.TransactionPage{Transactions: []domain.Transaction{}}
	}
	start := page * pageSize
	end := len(txs)
	if remaining := len(txs) - start; pageSize < remaining {
		end = start + pageSize
	}
	result := domain.TransactionPage{Transactions: append([]domain.Transaction{}, txs[start:end]...)}
	if end < len(txs) {
		next := page + 1
		result.NextCursor = &next
	}
	return result
}

func decodeTransaction(entry domain.LogEntry) (domain.Transaction, error) {
	transfer, err := contracts.DecodeTransfer(entry)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("log %s: %w", entry.TxHash, err)
	}
	status := domain.StatusConfirmed
	switch {
	case entry.Removed:
		status = domain.StatusFailed
	case entry.Pending:
		status = domain.StatusPending
	}
	return domain.Transaction{
		Hash:            entry.TxHash,
		From:            transfer.From.Hex(),
		To:              transfer.To.Hex(),
		EncryptedAmount: transfer.Value.Hex(),
		Status:          status,
		BlockNumber:     entry.BlockNumber,
	}, nil
}
