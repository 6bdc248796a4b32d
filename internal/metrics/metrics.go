package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labelbox"

// Metrics holds the label worker collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	LabelRuns            *prometheus.CounterVec
	CarrierCallDuration  *prometheus.HistogramVec
	NotificationFailures prometheus.Counter
	TriggersConsumed     *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.LabelRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "label_runs_total",
			Help:      "Label invocations by outcome",
		},
		[]string{"outcome"},
	)
	m.CarrierCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "carrier_call_duration_seconds",
			Help:      "CreateShipment call duration by result",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"result"},
	)
	m.NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Event messages that could not be written",
		},
	)
	m.TriggersConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_consumed_total",
			Help:      "Label requests read from Kafka by handling status",
		},
		[]string{"status"},
	)
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Worker HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.LabelRuns,
		m.CarrierCallDuration,
		m.NotificationFailures,
		m.TriggersConsumed,
		m.HTTPRequestsTotal,
		m.CircuitBreakerState,
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRun(outcome string) {
	m.LabelRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCarrierCall(result string, d time.Duration) {
	m.CarrierCallDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) NotificationFailed() {
	m.NotificationFailures.Inc()
}

func (m *Metrics) RecordTrigger(status string) {
	m.TriggersConsumed.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// SetCircuitBreakerState takes a gobreaker state name.
func (m *Metrics) SetCircuitBreakerState(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}
