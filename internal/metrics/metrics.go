// Package metrics exposes Prometheus collectors for value builds, deploys
// and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kstack"

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	valuesBuilds   *prometheus.CounterVec
	deploys        *prometheus.CounterVec
	deployDuration *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	cacheClears    prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		valuesBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "values_builds_total",
			Help:      "Values documents built, by environment and result.",
		}, []string{"environment", "result"}),
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Deployments by environment and terminal state.",
		}, []string{"environment", "state"}),
		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_duration_seconds",
			Help:      "Wall time of deployments.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"environment", "state"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deployments_in_flight",
			Help:      "Deployments currently running.",
		}),
		cacheClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defaults_cache_clears_total",
			Help:      "Full or per-category clears of the category defaults cache.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.valuesBuilds,
		m.deploys,
		m.deployDuration,
		m.inFlight,
		m.cacheClears,
		m.requests,
		m.requestLatency,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ValuesBuilt counts one values build.
func (m *Metrics) ValuesBuilt(environment string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.valuesBuilds.WithLabelValues(environment, result).Inc()
}

// DeployStarted marks a deploy as running. The returned func records the
// terminal state and must be called exactly once.
func (m *Metrics) DeployStarted(environment string) func(state string) {
	m.inFlight.Inc()
	start := time.Now()
	return func(state string) {
		m.inFlight.Dec()
		m.deploys.WithLabelValues(environment, state).Inc()
		m.deployDuration.WithLabelValues(environment, state).Observe(time.Since(start).Seconds())
	}
}

// DeployRejected counts a deploy that never started running.
func (m *Metrics) DeployRejected(environment, state string) {
	m.deploys.WithLabelValues(environment, state).Inc()
}

// CacheCleared counts a cache clear or category invalidation.
func (m *Metrics) CacheCleared() {
	m.cacheClears.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
