package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so each process (and each test) gets an
// independent set of collectors.
type Metrics struct {
	registry        *prometheus.Registry
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	decryptFailures prometheus.Counter
	latestBlock     prometheus.Gauge
	lastProcessed   prometheus.Gauge
	transfersSeen   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "encwallet",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "encwallet",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		),
		decryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "encwallet",
			Name:      "decrypt_failures_total",
			Help:      "Decryption requests that failed",
		}),
		latestBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "encwallet",
			Subsystem: "watcher",
			Name:      "latest_block",
			Help:      "Latest chain head seen by the watcher",
		}),
		lastProcessed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "encwallet",
			Subsystem: "watcher",
			Name:      "last_processed_block",
			Help:      "Last block checkpointed by the watcher",
		}),
		transfersSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "encwallet",
			Subsystem: "watcher",
			Name:      "transfers_total",
			Help:      "Transfer logs emitted by the watcher",
		}),
	}
}

func (m *Metrics) OnLatestBlock(block uint64) {
	m.latestBlock.Set(float64(block))
}

func (m *Metrics) OnBatchProcessed(fromBlock, toBlock uint64, logCount int) {
	m.lastProcessed.Set(float64(toBlock))
	m.transfersSeen.Add(float64(logCount))
}

func (m *Metrics) IncDecryptFailure() {
	m.decryptFailures.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records count and latency of requests served by next under a
// fixed route label.
func (m *Metrics) Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.requestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
