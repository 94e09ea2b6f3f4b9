// Package metrics exposes a node's Prometheus metrics surface on the
// configured metrics port (default 34111, per spec.md §6): pool offsets,
// in-flight protocol instances, and compute latencies.
//
// No teacher equivalent exists in republicprotocol/tau. Grounded on
// orbas1-Synnergy's core/system_health_logging.go: a custom
// prometheus.Registry, one gauge/counter/histogram per tracked quantity,
// MustRegister at construction, and a dedicated http.Server serving
// promhttp.HandlerFor that registry on /metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a node's Prometheus metric set, registered against its own
// private registry rather than the global default so multiple nodes can
// run in the same test binary without collector collisions.
type Metrics struct {
	registry *prometheus.Registry

	PoolGenerated *prometheus.GaugeVec
	PoolReserved  *prometheus.GaugeVec
	PoolDeleted   *prometheus.GaugeVec

	InFlightInstances prometheus.Gauge

	ComputeLatency  *prometheus.HistogramVec
	ComputeFailures *prometheus.CounterVec
}

// New builds a Metrics set and registers its collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		PoolGenerated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nilvm_preprocessing_pool_generated",
			Help: "Number of generated preprocessing offsets, by element.",
		}, []string{"element"}),
		PoolReserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nilvm_preprocessing_pool_reserved",
			Help: "Number of reserved preprocessing offsets, by element.",
		}, []string{"element"}),
		PoolDeleted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nilvm_preprocessing_pool_deleted",
			Help: "Number of deleted preprocessing offsets, by element.",
		}, []string{"element"}),
		InFlightInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nilvm_protocol_instances_in_flight",
			Help: "Number of currently running ProtocolInstances.",
		}),
		ComputeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nilvm_compute_latency_seconds",
			Help:    "InvokeCompute end-to-end latency, from Admitted to a terminal state.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		ComputeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nilvm_compute_failures_total",
			Help: "Count of failed ComputeInstances, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.PoolGenerated,
		m.PoolReserved,
		m.PoolDeleted,
		m.InFlightInstances,
		m.ComputeLatency,
		m.ComputeFailures,
	)
	return m
}

// ObservePoolSnapshot records a preprocessing.Pool.Snapshot's counters for
// element, intended to be called periodically by the pool's owning
// manager goroutine.
func (m *Metrics) ObservePoolSnapshot(element string, generated, reserved, deleted uint64) {
	m.PoolGenerated.WithLabelValues(element).Set(float64(generated))
	m.PoolReserved.WithLabelValues(element).Set(float64(reserved))
	m.PoolDeleted.WithLabelValues(element).Set(float64(deleted))
}

// Server wraps an http.Server bound to addr, serving this Metrics set's
// registry on /metrics.
func (m *Metrics) Server(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux}
}

// Shutdown gracefully stops srv, honoring ctx's deadline.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
