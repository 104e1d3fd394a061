// Package metrics exposes Prometheus instrumentation for the server,
// scraped over its own dedicated promhttp listener (spec §4.H's
// supervisor owns this the way the teacher's metrics.go is wired
// directly into its Server/MetricsCollector).
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge the server reports. Each
// instance owns a private registry so tests can construct as many as
// they like without tripping the duplicate-registration panic that a
// package-level MustRegister would cause.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	ConnectionsRejected prometheus.Counter

	CommandsTotal  *prometheus.CounterVec
	CommandErrors  *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec

	KeyspaceSize     prometheus.Gauge
	KeysExpired      prometheus.Counter
	SubscriberCount  prometheus.Gauge
	ChannelCount     prometheus.Gauge

	SnapshotDuration prometheus.Histogram
	SnapshotFailures prometheus.Counter

	WorkerQueueDepth    prometheus.Gauge
	WorkerQueueCapacity prometheus.Gauge
	TasksDropped        prometheus.Counter

	MemoryUsageBytes prometheus.Gauge
}

// New builds a Metrics bundle and registers every collector with its
// own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstore_connections_total",
			Help: "Total client connections accepted.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_connections_active",
			Help: "Currently open client connections.",
		}),
		ConnectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstore_connections_rejected_total",
			Help: "Connections rejected by the admission limiter.",
		}),

		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_commands_total",
			Help: "Commands dispatched, by command name.",
		}, []string{"command"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvstore_command_errors_total",
			Help: "Commands that returned an error reply, by command name.",
		}, []string{"command"}),
		CommandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kvstore_command_duration_seconds",
			Help:    "Command dispatch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),

		KeyspaceSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_keyspace_size",
			Help: "Number of live keys in the keyspace.",
		}),
		KeysExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstore_keys_expired_total",
			Help: "Keys evicted, lazily or by the background sweeper.",
		}),
		SubscriberCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_subscribers",
			Help: "Connections currently in subscribed mode.",
		}),
		ChannelCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_channels",
			Help: "Channels with at least one subscriber.",
		}),

		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kvstore_snapshot_duration_seconds",
			Help:    "Time spent writing a snapshot file.",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10},
		}),
		SnapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstore_snapshot_failures_total",
			Help: "Snapshot saves that returned an error.",
		}),

		WorkerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_worker_queue_depth",
			Help: "Tasks waiting in the session worker pool queue.",
		}),
		WorkerQueueCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_worker_queue_capacity",
			Help: "Session worker pool queue capacity.",
		}),
		TasksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kvstore_tasks_dropped_total",
			Help: "Session tasks dropped because the worker queue was full.",
		}),

		MemoryUsageBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvstore_memory_usage_bytes",
			Help: "Resident process memory, sampled periodically via gopsutil.",
		}),
	}

	reg.MustRegister(
		m.ConnectionsTotal, m.ConnectionsActive, m.ConnectionsRejected,
		m.CommandsTotal, m.CommandErrors, m.CommandLatency,
		m.KeyspaceSize, m.KeysExpired, m.SubscriberCount, m.ChannelCount,
		m.SnapshotDuration, m.SnapshotFailures,
		m.WorkerQueueDepth, m.WorkerQueueCapacity, m.TasksDropped,
		m.MemoryUsageBytes,
	)
	return m
}

// Handler returns the http.Handler to mount at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a dedicated metrics listener and blocks until ctx is
// cancelled, mirroring the teacher's standalone /metrics mux rather
// than sharing a listener with the data-plane port.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
