package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"encwallet/internal/application"
	"encwallet/internal/contracts"
	"encwallet/internal/infrastructure/telemetry"
	"encwallet/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	prefix  string
	chainID uint64
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
	ChainID     uint64
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(writer, cfg)
}

func newProducer(writer messageWriter, cfg ProducerConfig) (*Producer, error) {
	if cfg.ChainID == 0 {
		return nil, errors.New("chain id is required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "encwallet-transfers"
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix, chainID: cfg.ChainID}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishBatch writes one message per Transfer log followed by a checkpoint
// message for the batch range, all keyed by token so they stay ordered within
// a partition.
func (p *Producer) PublishBatch(ctx context.Context, batch application.LogBatch) error {
	tracer := otel.Tracer("encwallet/kafka")
	token := batch.Token.Hex()
	key := []byte(strings.ToLower(token))

	messages := make([]kafka.Message, 0, len(batch.Logs)+1)
	spans := make([]trace.Span, 0, len(batch.Logs))
	endAll := func(err error) {
		for _, span := range spans {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}

	for _, entry := range batch.Logs {
		traceCtx, traceIDHex := telemetry.NewRootContext(ctx)
		traceCtx, span := tracer.Start(traceCtx, "watcher.publish_transfer", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.Int64("block.number", int64(entry.BlockNumber)),
			attribute.Int64("log.index", int64(entry.LogIndex)),
			attribute.String("tx.hash", entry.TxHash),
			attribute.String("token", token),
		)
		spans = append(spans, span)

		transfer, err := contracts.DecodeTransfer(entry)
		if err != nil {
			endAll(err)
			return err
		}
		payload, err := streaming.Encode(streaming.Message{
			Type:            streaming.MessageTypeTransfer,
			ChainID:         p.chainID,
			Token:           token,
			TraceID:         traceIDHex,
			BlockNumber:     entry.BlockNumber,
			BlockHash:       entry.BlockHash,
			TxHash:          entry.TxHash,
			LogIndex:        entry.LogIndex,
			From:            transfer.From.Hex(),
			To:              transfer.To.Hex(),
			EncryptedAmount: transfer.Value.Hex(),
			Removed:         entry.Removed,
		})
		if err != nil {
			endAll(err)
			return err
		}
		messages = append(messages, kafka.Message{
			Topic:   p.topic(),
			Key:     key,
			Value:   payload,
			Headers: telemetry.MessageHeaders(traceCtx, string(streaming.MessageTypeTransfer)),
		})
	}

	checkpoint, err := streaming.Encode(streaming.Message{
		Type:      streaming.MessageTypeCheckpoint,
		ChainID:   p.chainID,
		Token:     token,
		FromBlock: batch.FromBlock,
		ToBlock:   batch.ToBlock,
	})
	if err != nil {
		endAll(err)
		return err
	}
	messages = append(messages, kafka.Message{
		Topic:   p.topic(),
		Key:     key,
		Value:   checkpoint,
		Headers: telemetry.MessageHeaders(ctx, string(streaming.MessageTypeCheckpoint)),
	})

	err = p.writer.WriteMessages(ctx, messages...)
	endAll(err)
	if err != nil {
		return fmt.Errorf("publish blocks %d-%d: %w", batch.FromBlock, batch.ToBlock, err)
	}
	return nil
}

func (p *Producer) topic() string {
	return fmt.Sprintf("%s-%d", p.prefix, p.chainID)
}
