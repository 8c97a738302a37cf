// Package metrics holds the Prometheus collectors for the menu layer: HTTP
// traffic plus cart, auth, menu write and Supabase upstream counters.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "menu_layer"

// Metrics is a set of collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	cartMutations  *prometheus.CounterVec
	authOperations *prometheus.CounterVec
	menuWrites     *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	breakerState     prometheus.Gauge
}

// New registers all collectors. Process and Go runtime collectors are added
// when withRuntime is set.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"service", "method", "path"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by result.",
		}, []string{"op", "result"}),
		menuWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "menu",
			Name:      "writes_total",
			Help:      "Category and menu item writes by result.",
		}, []string{"op", "result"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "requests_total",
			Help:      "Requests sent to Supabase.",
		}, []string{"method", "status"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "request_duration_seconds",
			Help:      "Duration of Supabase requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"method"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.cartMutations, m.authOperations, m.menuWrites,
		m.upstreamRequests, m.upstreamDuration, m.breakerState,
	)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewGoCollector(),
		)
	}
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// ObserveCartMutation implements cart.Observer.
func (m *Metrics) ObserveCartMutation(op string) {
	m.cartMutations.WithLabelValues(op).Inc()
}

// ObserveAuthOperation implements auth.Observer.
func (m *Metrics) ObserveAuthOperation(op, result string) {
	m.authOperations.WithLabelValues(op, result).Inc()
}

// ObserveMenuWrite implements menu.Observer.
func (m *Metrics) ObserveMenuWrite(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.menuWrites.WithLabelValues(op, result).Inc()
}

// ObserveUpstream records a Supabase round trip. status 0 means a transport
// error.
func (m *Metrics) ObserveUpstream(method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(strings.ToUpper(method), label).Inc()
	m.upstreamDuration.WithLabelValues(strings.ToUpper(method)).Observe(duration.Seconds())
}

// SetBreakerState records the numeric circuit state.
func (m *Metrics) SetBreakerState(state int) {
	m.breakerState.Set(float64(state))
}
