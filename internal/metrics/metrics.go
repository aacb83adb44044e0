// Package metrics exposes Prometheus metrics for the pipeline and its HTTP surface.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bull/rag-studio/internal/apperr"
)

const namespace = "rag"

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultStale = "stale"
)

// Metrics holds Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - rag_http_requests_total{method,path,status}
//   - rag_http_request_duration_seconds{method,path}
//   - rag_chunk_runs_total{truncated}
//   - rag_chunks_produced_total
//   - rag_embedding_runs_total{result}
//   - rag_embedded_texts_total
//   - rag_asks_total{result}
//   - rag_sessions_active
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	chunkRuns      *prometheus.CounterVec
	chunksProduced prometheus.Counter
	embeddingRuns  *prometheus.CounterVec
	embeddedTexts  prometheus.Counter
	asks           *prometheus.CounterVec
	sessions       prometheus.Gauge
}

// New creates metrics registered on a fresh registry, with Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"method", "path"},
		),
		chunkRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_runs_total",
				Help:      "Total number of chunking runs",
			},
			[]string{"truncated"},
		),
		chunksProduced: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_produced_total",
				Help:      "Total number of chunks produced",
			},
		),
		embeddingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_runs_total",
				Help:      "Total number of embedding runs by result (ok, error, stale)",
			},
			[]string{"result"},
		),
		embeddedTexts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedded_texts_total",
				Help:      "Total number of texts sent for embedding",
			},
		),
		asks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Total number of retrieval questions by result",
			},
			[]string{"result"},
		),
		sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Current number of live sessions",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChunking records one chunking run.
func (m *Metrics) RecordChunking(chunks int, truncated bool) {
	if m == nil {
		return
	}
	m.chunkRuns.WithLabelValues(strconv.FormatBool(truncated)).Inc()
	m.chunksProduced.Add(float64(chunks))
}

// RecordEmbedding records one embedding run of n texts.
func (m *Metrics) RecordEmbedding(result string, n int) {
	if m == nil {
		return
	}
	m.embeddingRuns.WithLabelValues(result).Inc()
	if result != ResultError {
		m.embeddedTexts.Add(float64(n))
	}
}

// RecordAsk records one retrieval question.
func (m *Metrics) RecordAsk(result string) {
	if m == nil {
		return
	}
	m.asks.WithLabelValues(result).Inc()
}

// SetSessions updates the live session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// Middleware records request counts and durations per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusOf(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf predicts the status the error handler will write for err.
func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.HTTPStatus(apperr.KindOf(err))
}
