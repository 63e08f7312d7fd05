// Package metrics exposes prometheus telemetry for the core: xrun
// counts, buffer fill levels, IPC round-trip latency and pipeline
// state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every prometheus collector the core registers.
type Metrics struct {
	XrunsTotal        *prometheus.CounterVec
	BufferFillRatio   *prometheus.GaugeVec
	IPCRequestsTotal  *prometheus.CounterVec
	IPCLatencySeconds *prometheus.HistogramVec
	IPCNotifyDropped  *prometheus.CounterVec
	PipelinesActive   prometheus.Gauge
	ComponentsActive  prometheus.Gauge
	IDCCallsTotal     *prometheus.CounterVec

	startTime time.Time
}

// New registers and returns a fresh Metrics instance. Using
// prometheus.NewRegistry (not the global default) lets multiple Runtimes
// coexist in one test binary without collector-already-registered panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),
		XrunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dspcore_xruns_total",
			Help: "Total xrun notifications raised, by pipeline id and kind (underrun/overrun).",
		}, []string{"pipeline_id", "kind"}),
		BufferFillRatio: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dspcore_buffer_fill_ratio",
			Help: "Fraction of an audio buffer currently holding unconsumed data.",
		}, []string{"buffer_id"}),
		IPCRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dspcore_ipc_requests_total",
			Help: "Total IPC requests processed, by class and status.",
		}, []string{"class", "status"}),
		IPCLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dspcore_ipc_request_duration_seconds",
			Help:    "IPC request handling latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"class"}),
		IPCNotifyDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dspcore_ipc_notifications_dropped_total",
			Help: "Notifications dropped because the ring was full, by class.",
		}, []string{"class"}),
		PipelinesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dspcore_pipelines_active",
			Help: "Number of pipelines currently in the active state.",
		}),
		ComponentsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dspcore_components_active",
			Help: "Number of components currently in the active state.",
		}),
		IDCCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dspcore_idc_calls_total",
			Help: "Cross-core IDC calls, by target core and outcome.",
		}, []string{"core", "outcome"}),
	}
}

// Uptime returns how long this Metrics instance has existed.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
