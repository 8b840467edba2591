package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the editor backend
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Bus metrics
	BusMessages *prometheus.CounterVec
	BusDuration *prometheus.HistogramVec

	// Editor metrics
	SessionsOpen   prometheus.Gauge
	LayoutRuns     *prometheus.CounterVec
	LayoutNodes    prometheus.Histogram
	SaveAttempts   *prometheus.CounterVec
	NodesPersisted prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      "Commands and queries dispatched by kind, name and status",
		}, []string{"kind", "name", "status"}),
		BusDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bus_message_duration_seconds",
			Help:      "Command and query handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "name"}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_sessions_open",
			Help:      "Number of open editor sessions",
		}),
		LayoutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_runs_total",
			Help:      "Automatic layout runs by trigger",
		}, []string{"trigger"}),
		LayoutNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_nodes",
			Help:      "Number of nodes placed per layout run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		SaveAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_saves_total",
			Help:      "Layout save attempts by outcome",
		}, []string{"outcome"}),
		NodesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_positions_persisted_total",
			Help:      "Node positions written to the store",
		}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of node store operations",
		}, []string{"operation", "store", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Node store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "store"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.BusMessages,
		c.BusDuration,
		c.SessionsOpen,
		c.LayoutRuns,
		c.LayoutNodes,
		c.SaveAttempts,
		c.NodesPersisted,
		c.StoreOperations,
		c.StoreDuration,
		c.BreakerState,
	)
	return c
}

// Registry exposes the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStore records one node store call
func (c *Collector) ObserveStore(operation, store string, err error, elapsed time.Duration) {
	c.StoreOperations.WithLabelValues(operation, store, statusLabel(err)).Inc()
	c.StoreDuration.WithLabelValues(operation, store).Observe(elapsed.Seconds())
}

// ObserveCommand records one dispatched command
func (c *Collector) ObserveCommand(name string, err error, elapsed time.Duration) {
	c.observeBus("command", name, err, elapsed)
}

// ObserveQuery records one dispatched query
func (c *Collector) ObserveQuery(name string, err error, elapsed time.Duration) {
	c.observeBus("query", name, err, elapsed)
}

func (c *Collector) observeBus(kind, name string, err error, elapsed time.Duration) {
	c.BusMessages.WithLabelValues(kind, name, statusLabel(err)).Inc()
	c.BusDuration.WithLabelValues(kind, name).Observe(elapsed.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveLayout records an automatic layout run
func (c *Collector) ObserveLayout(trigger string, nodes int) {
	c.LayoutRuns.WithLabelValues(trigger).Inc()
	c.LayoutNodes.Observe(float64(nodes))
}

// ObserveSave records a save attempt and how many positions it wrote
func (c *Collector) ObserveSave(outcome string, persisted int) {
	c.SaveAttempts.WithLabelValues(outcome).Inc()
	c.NodesPersisted.Add(float64(persisted))
}
