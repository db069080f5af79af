package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphbench"

// Metrics holds the prometheus collectors of one process.
type Metrics struct {
	registry  *prometheus.Registry
	latency   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	httpResp  *prometheus.SummaryVec
	httpInUse prometheus.Gauge
	stats     *QueryStats
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics(stats *QueryStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stats:    stats,
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "latency_ms",
			Help:      "Latency of measured engine calls in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 16),
		}, []string{"query", "engine", "cache_phase"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "failures_total",
			Help:      "Engine calls that reported a failure.",
		}, []string{"query", "engine"}),
		httpResp: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "resp_time_ms",
			Help:      "HTTP response time in milliseconds.",
			Objectives: map[float64]float64{
				0.5:  0.01,
				0.9:  0.01,
				0.99: 0.005,
			},
		}, []string{"method", "pattern", "status"}),
		httpInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_req",
			Help:      "HTTP requests in flight.",
		}),
	}
	m.registry.MustRegister(m.latency, m.failures, m.httpResp, m.httpInUse)
	return m
}

// ObserveEngineCall records one measured engine call.
func (m *Metrics) ObserveEngineCall(query, engine, cachePhase string, latencyMs float64, success bool) {
	m.latency.WithLabelValues(query, engine, cachePhase).Observe(latencyMs)
	if !success {
		m.failures.WithLabelValues(query, engine).Inc()
	}
	if m.stats != nil {
		m.stats.Record(query, engine, success)
	}
}

// Stats returns the query statistics tracker, which may be nil.
func (m *Metrics) Stats() *QueryStats {
	return m.stats
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware observes response time by route pattern and status.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInUse.Inc()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			m.httpInUse.Dec()
			pattern := r.Pattern
			if pattern == "" {
				pattern = "unknown"
			}
			m.httpResp.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).
				Observe(float64(time.Since(start).Milliseconds()))
		}()
		next.ServeHTTP(rec, r)
	})
}
