package telemetry

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageTypeHeader carries the streaming message type so consumers can route
// without decoding the payload.
const MessageTypeHeader = "encwallet-message-type"

// headerCarrier adapts kafka message headers to the otel TextMapCarrier.
// Keys are matched case-insensitively, the way HTTP propagators expect.
type headerCarrier []kafka.Header

func (h *headerCarrier) Get(key string) string {
	for _, header := range *h {
		if strings.EqualFold(header.Key, key) {
			return string(header.Value)
		}
	}
	return ""
}

func (h *headerCarrier) Set(key, value string) {
	for i, header := range *h {
		if strings.EqualFold(header.Key, key) {
			(*h)[i].Value = []byte(value)
			return
		}
	}
	*h = append(*h, kafka.Header{Key: key, Value: []byte(value)})
}

func (h *headerCarrier) Keys() []string {
	keys := make([]string, len(*h))
	for i, header := range *h {
		keys[i] = header.Key
	}
	return keys
}

// MessageHeaders builds the headers for an outgoing message of messageType,
// including the trace context of ctx when one is active.
func MessageHeaders(ctx context.Context, messageType string) []kafka.Header {
	carrier := headerCarrier{{Key: MessageTypeHeader, Value: []byte(messageType)}}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	return carrier
}

// ContextFromMessage restores the producer's trace context from msg headers.
func ContextFromMessage(ctx context.Context, msg kafka.Message) context.Context {
	carrier := headerCarrier(msg.Headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}

// MessageType returns the type header of msg, or "" when absent.
func MessageType(msg kafka.Message) string {
	carrier := headerCarrier(msg.Headers)
	return carrier.Get(MessageTypeHeader)
}
