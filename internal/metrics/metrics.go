package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors
type Registry struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec

	// Engine metrics
	ForecastsComputed *prometheus.CounterVec
	OptimizerRuns     prometheus.Counter
	AnomaliesFlagged  prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Delivery metrics
	ReportsDelivered *prometheus.CounterVec
	ExternalFetches  *prometheus.CounterVec
}

// NewRegistry creates a registry with every collector registered
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "co2_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"method", "route", "status"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		ForecastsComputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_forecasts_computed_total",
				Help: "Total number of forecasts computed by kind",
			},
			[]string{"kind"},
		),

		OptimizerRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "co2_optimizer_runs_total",
				Help: "Total number of budget optimizer runs",
			},
		),

		AnomaliesFlagged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "co2_anomalies_flagged_total",
				Help: "Total number of emission records flagged as anomalous",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		ReportsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_reports_delivered_total",
				Help: "Total number of report deliveries by method and status",
			},
			[]string{"method", "status"},
		),

		ExternalFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "co2_external_fetches_total",
				Help: "Total number of external emission data fetches by result",
			},
			[]string{"result"},
		),
	}

	r.registry.MustRegister(
		r.RequestDuration,
		r.RequestsTotal,
		r.ForecastsComputed,
		r.OptimizerRuns,
		r.AnomaliesFlagged,
		r.CacheHits,
		r.CacheMisses,
		r.ReportsDelivered,
		r.ExternalFetches,
	)

	return r
}

// Gatherer exposes the underlying registry for scraping and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics HTTP handler
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency per route
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		r.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}

// ObserveForecast counts one computed forecast of the given kind
func (r *Registry) ObserveForecast(kind string) {
	if r == nil {
		return
	}
	r.ForecastsComputed.WithLabelValues(kind).Inc()
}

// ObserveOptimizerRun counts one optimizer run
func (r *Registry) ObserveOptimizerRun() {
	if r == nil {
		return
	}
	r.OptimizerRuns.Inc()
}

// ObserveAnomalies adds n flagged records
func (r *Registry) ObserveAnomalies(n int) {
	if r == nil {
		return
	}
	r.AnomaliesFlagged.Add(float64(n))
}

// ObserveCache records a hit or miss for cacheType
func (r *Registry) ObserveCache(cacheType string, hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.WithLabelValues(cacheType).Inc()
	} else {
		r.CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// ObserveDelivery records a report delivery attempt
func (r *Registry) ObserveDelivery(method string, err error) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.ReportsDelivered.WithLabelValues(method, status).Inc()
}

// ObserveExternalFetch records an external data fetch result
func (r *Registry) ObserveExternalFetch(result string) {
	if r == nil {
		return
	}
	r.ExternalFetches.WithLabelValues(result).Inc()
}
