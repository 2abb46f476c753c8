// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records the server's operational metrics.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	generations  *prometheus.CounterVec
	renders      *prometheus.CounterVec
	rateLimited  prometheus.Counter
	activeTokens prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbastudio_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vbastudio_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbastudio_generations_total",
			Help: "Macro generation attempts by outcome class",
		}, []string{"outcome"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vbastudio_renders_total",
			Help: "Workbook renders by operation and outcome",
		}, []string{"operation", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vbastudio_rate_limited_total",
			Help: "Requests rejected by rate limiting",
		}),
		activeTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vbastudio_issued_sessions",
			Help: "Sessions issued since start, net of sign-outs",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.generations,
		c.renders,
		c.rateLimited,
		c.activeTokens,
	)

	return c
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordGeneration records a generation attempt. Outcome is "ok" or an
// error class such as "invalid_key", "quota", "malformed", "network".
func (c *Collector) RecordGeneration(outcome string) {
	c.generations.WithLabelValues(outcome).Inc()
}

// RecordRender records a workbook render.
func (c *Collector) RecordRender(operation, outcome string) {
	c.renders.WithLabelValues(operation, outcome).Inc()
}

// RecordRateLimited records a request rejected by a limiter.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// SessionIssued tracks a newly issued session.
func (c *Collector) SessionIssued() { c.activeTokens.Inc() }

// SessionRevoked tracks a sign-out.
func (c *Collector) SessionRevoked() { c.activeTokens.Dec() }

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
