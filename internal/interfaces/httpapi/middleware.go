package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"encwallet/internal/infrastructure/telemetry"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	traceIDHeader   = "X-Trace-ID"
)

type requestIDKey struct{}

// withRequestID tags each request with an id, reusing the caller's when one
// is sent, and joins the caller's trace when X-Trace-ID carries one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		if traceID := r.Header.Get(traceIDHeader); traceID != "" {
			if traced, ok := telemetry.ContextWithTraceID(ctx, traceID); ok {
				ctx = traced
			}
		}

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "request_id", requestID, "duration", time.Since(start))
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
