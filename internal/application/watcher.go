package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"encwallet/internal/contracts"
	"encwallet/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type ChainSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]domain.LogEntry, error)
}

type StateRepository interface {
	LastProcessedBlock(ctx context.Context, key string) (uint64, bool, error)
	SetLastProcessedBlock(ctx context.Context, key string, block uint64) error
	ClearLastProcessedBlock(ctx context.Context, key string) error
}

type WatcherObserver interface {
	OnLatestBlock(block uint64)
	OnBatchProcessed(fromBlock, toBlock uint64, logCount int)
}

type WatcherConfig struct {
	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	BatchSize     uint64
}

// LogBatch is the set of Transfer logs emitted by one token over an inclusive
// block range.
type LogBatch struct {
	Token     common.Address
	FromBlock uint64
	ToBlock   uint64
	Logs      []domain.LogEntry
}

type BatchHandler func(ctx context.Context, batch LogBatch) error

// TransferWatcher polls the chain for Transfer logs of a token, a confirmed
// block range at a time, and checkpoints progress after each handled batch.
type TransferWatcher struct {
	source   ChainSource
	state    StateRepository
	observer WatcherObserver
	cfg      WatcherConfig
}

func NewTransferWatcher(source ChainSource, state StateRepository, observer WatcherObserver, cfg WatcherConfig) (*TransferWatcher, error) {
	if source == nil || state == nil {
		return nil, errors.New("watcher dependencies must not be nil")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &TransferWatcher{source: source, state: state, observer: observer, cfg: cfg}, nil
}

func checkpointKey(token common.Address) string {
	return "transfers:" + strings.ToLower(token.Hex())
}

// Reset forgets the checkpoint of token so the next run starts over from
// StartBlock.
func (w *TransferWatcher) Reset(ctx context.Context, token common.Address) error {
	return w.state.ClearLastProcessedBlock(ctx, checkpointKey(token))
}

// Run drives the polling loop until ctx ends or handle fails. A batch is
// checkpointed only after handle returns nil, so a restart replays it.
// Retryable chain errors are logged and retried on the next tick.
func (w *TransferWatcher) Run(ctx context.Context, token common.Address, handle BatchHandler) error {
	if handle == nil {
		return errors.New("batch handler must not be nil")
	}
	key := checkpointKey(token)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		advanced, err := w.step(ctx, token, key, handle)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !domain.Retryable(err) {
				return err
			}
			slog.Warn("watcher step failed, retrying", "token", token.Hex(), "err", err)
			advanced = false
		}
		if advanced {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// step processes at most one batch and reports whether it did.
func (w *TransferWatcher) step(ctx context.Context, token common.Address, key string, handle BatchHandler) (bool, error) {
	current := w.cfg.StartBlock
	if last, ok, err := w.state.LastProcessedBlock(ctx, key); err != nil {
		return false, fmt.Errorf("load checkpoint: %w", err)
	} else if ok {
		current = last + 1
	}

	latest, err := w.source.LatestBlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if w.observer != nil {
		w.observer.OnLatestBlock(latest)
	}
	if latest < w.cfg.Confirmations {
		return false, nil
	}
	latest -= w.cfg.Confirmations
	if current > latest {
		return false, nil
	}

	toBlock := current + w.cfg.BatchSize - 1
	if toBlock > latest {
		toBlock = latest
	}

	topic := contracts.TransferTopic
	logs, err := w.source.GetLogs(ctx, LogFilter{
		Address:   token,
		Topics:    []*common.Hash{&topic},
		FromBlock: current,
		ToBlock:   &toBlock,
	})
	if err != nil {
		return false, err
	}
	sort.Slice(logs, func(a, b int) bool { return logs[a].Precedes(logs[b]) })

	batch := LogBatch{Token: token, FromBlock: current, ToBlock: toBlock, Logs: logs}
	if err := handle(ctx, batch); err != nil {
		return false, fmt.Errorf("handle blocks %d-%d: %w", current, toBlock, err)
	}
	if err := w.state.SetLastProcessedBlock(ctx, key, toBlock); err != nil {
		return false, fmt.Errorf("save checkpoint: %w", err)
	}
	if w.observer != nil {
		w.observer.OnBatchProcessed(current, toBlock, len(logs))
	}
	return true, nil
}

// Subscription delivers batches from a running watcher until Unsubscribe is
// called or the watcher stops. Err reports why it stopped.
type Subscription struct {
	batches chan LogBatch
	done    chan struct{}
	cancel  context.CancelFunc
	once    sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe starts watching token in the background. Every batch, including
// empty ones, is delivered on Batches before it is checkpointed.
func (w *TransferWatcher) Subscribe(ctx context.Context, token common.Address) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		batches: make(chan LogBatch),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go func() {
		defer close(sub.done)
		defer close(sub.batches)
		err := w.Run(runCtx, token, func(ctx context.Context, batch LogBatch) error {
			select {
			case sub.batches <- batch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		sub.mu.Lock()
		sub.err = err
		sub.mu.Unlock()
	}()
	return sub, nil
}

func (s *Subscription) Batches() <-chan LogBatch {
	return s.batches
}

// Err returns the error that stopped the watcher, or nil while it runs and
// after a clean Unsubscribe.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe stops the watcher and waits for it to exit. It is safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
	<-s.done
}
