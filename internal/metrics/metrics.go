// Package metrics exposes install and boot activity as Prometheus metrics on
// a private registry.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "classboot"

// Collector implements orchestrate.Metrics and install.Metrics.
type Collector struct {
	// Install phase
	installs        *prometheus.CounterVec
	installDuration *prometheus.HistogramVec

	// Boot phase
	launched *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	exited   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	running  prometheus.Gauge
	runtime  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewCollector creates a Collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
	}

	c.installs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Dependency installs by project and status",
		},
		[]string{"project", "status"},
	)

	c.installDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Wall time of dependency installs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"project"},
	)

	c.launched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processes_launched_total",
			Help:      "Child processes started",
		},
		[]string{"project"},
	)

	c.skipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processes_skipped_total",
			Help:      "Sub-projects that could not be launched",
		},
		[]string{"project"},
	)

	c.exited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processes_exited_total",
			Help:      "Child processes that exited, by result",
		},
		[]string{"project", "result"},
	)

	c.bytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_bytes_total",
			Help:      "Bytes read from child output streams",
		},
		[]string{"project", "stream"},
	)

	c.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes_running",
			Help:      "Child processes launched and not yet exited",
		},
	)

	c.runtime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_runtime_seconds",
			Help:      "Time from launch to exit",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"project", "result"},
	)

	c.registry.MustRegister(
		c.installs,
		c.installDuration,
		c.launched,
		c.skipped,
		c.exited,
		c.bytes,
		c.running,
		c.runtime,
	)

	return c
}

// Registry is the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// InstallFinished records one install attempt.
func (c *Collector) InstallFinished(project string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.installs.WithLabelValues(project, status).Inc()
	c.installDuration.WithLabelValues(project).Observe(d.Seconds())
}

// ProcessLaunched records a started child.
func (c *Collector) ProcessLaunched(project string) {
	c.launched.WithLabelValues(project).Inc()
	c.running.Inc()
}

// ProcessSkipped records a sub-project that was never started.
func (c *Collector) ProcessSkipped(project string) {
	c.skipped.WithLabelValues(project).Inc()
}

// OutputStreamed records n bytes read from one of a child's streams.
func (c *Collector) OutputStreamed(project, stream string, n int) {
	c.bytes.WithLabelValues(project, stream).Add(float64(n))
}

// ProcessExited records a child's exit. result is "success", "failure" or "signal".
func (c *Collector) ProcessExited(project, result string, d time.Duration) {
	c.exited.WithLabelValues(project, result).Inc()
	c.runtime.WithLabelValues(project, result).Observe(d.Seconds())
	c.running.Dec()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr in the background. The returned server is
// shut down by the caller.
func (c *Collector) Serve(addr string, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "addr", addr, "error", err)
		}
	}()
	log.Info("metrics endpoint", "url", "http://"+addr+"/metrics")
	return srv
}
