// Package prometheus implements the metrics interfaces on top of the global
// Prometheus registry.
package prometheus

import (
	"time"

	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reactorMetrics is the Prometheus implementation of metrics.ReactorMetrics.
type reactorMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsRejected    *prometheus.CounterVec
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	itemsEnqueued          prometheus.Counter
	itemsDropped           *prometheus.CounterVec
	queueDepth             prometheus.Gauge
	itemsProcessed         *prometheus.CounterVec
	queueWait              prometheus.Histogram
	processDuration        *prometheus.HistogramVec
	busyWorkers            prometheus.Gauge
	bytesTransferred       *prometheus.CounterVec
}

// NewReactorMetrics creates a new Prometheus-backed ReactorMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewReactorMetrics() metrics.ReactorMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopReactorMetrics()
	}
	return NewReactorMetricsWith(metrics.GetRegistry())
}

// NewReactorMetricsWith registers the reactor collectors on reg.
// Registering twice on the same registry panics.
func NewReactorMetricsWith(reg prometheus.Registerer) metrics.ReactorMetrics {
	factory := promauto.With(reg)

	return &reactorMetrics{
		connectionsAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hsha_connections_accepted_total",
				Help: "Total number of connections accepted",
			},
		),
		connectionsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hsha_connections_closed_total",
				Help: "Total number of connections closed",
			},
		),
		connectionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsha_connections_rejected_total",
				Help: "Connections accepted and immediately closed because of a limit",
			},
			[]string{"reason"},
		),
		connectionsForceClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hsha_connections_force_closed_total",
				Help: "Total number of connections force-closed during shutdown timeout",
			},
		),
		activeConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hsha_active_connections",
				Help: "Current number of open client connections",
			},
		),
		itemsEnqueued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hsha_work_items_enqueued_total",
				Help: "Total number of work items handed to the queue",
			},
		),
		itemsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsha_work_items_dropped_total",
				Help: "Work items that never reached a worker",
			},
			[]string{"reason"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hsha_queue_depth",
				Help: "Number of work items waiting for a worker",
			},
		),
		itemsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsha_work_items_processed_total",
				Help: "Work items processed by workers, by processor and status",
			},
			[]string{"processor", "status"},
		),
		queueWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name: "hsha_queue_wait_milliseconds",
				Help: "Time work items spent queued before a worker picked them up",
				Buckets: []float64{
					0.1,   // 100us
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
		),
		processDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "hsha_process_duration_milliseconds",
				Help: "Duration of processing in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"processor"},
		),
		busyWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hsha_busy_workers",
				Help: "Number of workers currently processing an item",
			},
		),
		bytesTransferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hsha_bytes_transferred_total",
				Help: "Total bytes read from and written to clients",
			},
			[]string{"direction"},
		),
	}
}

func (m *reactorMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *reactorMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *reactorMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *reactorMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *reactorMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *reactorMetrics) RecordItemEnqueued() {
	m.itemsEnqueued.Inc()
}

func (m *reactorMetrics) RecordItemDropped(reason string) {
	m.itemsDropped.WithLabelValues(reason).Inc()
}

func (m *reactorMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *reactorMetrics) RecordItemProcessed(processor string, wait, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	m.itemsProcessed.WithLabelValues(processor, status).Inc()
	m.queueWait.Observe(float64(wait.Microseconds()) / 1000)
	m.processDuration.WithLabelValues(processor).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *reactorMetrics) SetBusyWorkers(count int32) {
	m.busyWorkers.Set(float64(count))
}

func (m *reactorMetrics) RecordBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}
