package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string

	// Metric options
	Namespace        string    // Prometheus namespace (default: hostbridge)
	Subsystem        string    // Prometheus subsystem
	HistogramBuckets []float64 // Custom histogram buckets for latency in milliseconds

	// Labels to add to all metrics
	ConstLabels prometheus.Labels

	// Registry to register collectors with; a private registry is created when nil
	Registry *prometheus.Registry
}

// Metrics records bridge activity in Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	rpcDuration     *prometheus.HistogramVec
	rpcTotal        *prometheus.CounterVec
	connectionState *prometheus.GaugeVec
	connectAttempts *prometheus.CounterVec
	retries         prometheus.Counter
	fallbacks       *prometheus.CounterVec
	hostEvents      *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics provider
func NewMetrics(config MetricsConfig) (*Metrics, error) {
	if config.Namespace == "" {
		config.Namespace = "hostbridge"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}
	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	if config.ServiceName != "" {
		config.ConstLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		config.ConstLabels["version"] = config.ServiceVersion
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	m := &Metrics{config: config, registry: config.Registry}
	m.initializeMetrics()

	if err := m.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initializeMetrics() {
	c := m.config

	m.rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "rpc_duration_milliseconds",
			Help:        "Duration of bridge operations in milliseconds",
			Buckets:     c.HistogramBuckets,
			ConstLabels: c.ConstLabels,
		},
		[]string{"operation", "environment", "status"},
	)

	m.rpcTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "rpc_total",
			Help:        "Total number of bridge operations",
			ConstLabels: c.ConstLabels,
		},
		[]string{"operation", "environment", "status"},
	)

	m.connectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "connection_state",
			Help:        "Current connection state (1 for the active state)",
			ConstLabels: c.ConstLabels,
		},
		[]string{"state"},
	)

	m.connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "connect_attempts_total",
			Help:        "Connection attempts by environment and outcome",
			ConstLabels: c.ConstLabels,
		},
		[]string{"environment", "status"},
	)

	m.retries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "connect_retries_total",
			Help:        "Scheduled connection retries",
			ConstLabels: c.ConstLabels,
		},
	)

	m.fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "fallbacks_total",
			Help:        "Switches to the browser-only simulation",
			ConstLabels: c.ConstLabels,
		},
		[]string{"reason"},
	)

	m.hostEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "host_events_total",
			Help:        "Messages received from the host by event name",
			ConstLabels: c.ConstLabels,
		},
		[]string{"event"},
	)

	m.errorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.Namespace,
			Subsystem:   c.Subsystem,
			Name:        "errors_total",
			Help:        "Errors published on the bus by code",
			ConstLabels: c.ConstLabels,
		},
		[]string{"operation", "code"},
	)
}

func (m *Metrics) registerMetrics() error {
	collectors := []prometheus.Collector{
		m.rpcDuration,
		m.rpcTotal,
		m.connectionState,
		m.connectAttempts,
		m.retries,
		m.fallbacks,
		m.hostEvents,
		m.errorTotal,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordRPC records one strategy operation
func (m *Metrics) RecordRPC(operation, environment, status string, duration time.Duration) {
	if m == nil {
		return
	}
	ms := float64(duration.Milliseconds())
	m.rpcDuration.WithLabelValues(operation, environment, status).Observe(ms)
	m.rpcTotal.WithLabelValues(operation, environment, status).Inc()
}

// RecordConnectionState marks state as the current one
func (m *Metrics) RecordConnectionState(state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"disconnected", "connecting", "connected", "failed"} {
		m.connectionState.WithLabelValues(s).Set(0)
	}
	m.connectionState.WithLabelValues(state).Set(1)
}

// RecordConnectAttempt records the outcome of one connection attempt
func (m *Metrics) RecordConnectAttempt(environment, status string) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(environment, status).Inc()
}

// RecordRetry records a scheduled retry
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// RecordFallback records a switch to the simulation
func (m *Metrics) RecordFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

// RecordHostEvent records a message pushed by the host
func (m *Metrics) RecordHostEvent(event string) {
	if m == nil {
		return
	}
	m.hostEvents.WithLabelValues(event).Inc()
}

// RecordError records an error event
func (m *Metrics) RecordError(operation, code string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(operation, code).Inc()
}

// Registry returns the registry the collectors are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
