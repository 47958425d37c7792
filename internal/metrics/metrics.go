package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	threadsRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "intthread",
		Name:      "threads_running",
		Help:      "Number of native threads spawned and not yet exited.",
	}, []string{"backend"})

	threadStarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intthread",
		Name:      "thread_starts_total",
		Help:      "Total number of native threads spawned.",
	}, []string{"backend"})

	spawnFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intthread",
		Name:      "thread_spawn_failures_total",
		Help:      "Total number of failed native thread spawns.",
	}, []string{"backend"})

	interrupts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intthread",
		Name:      "thread_interrupts_total",
		Help:      "Total number of interrupt requests delivered to running threads.",
	}, []string{"backend"})

	suspends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intthread",
		Name:      "thread_suspends_total",
		Help:      "Total number of suspend requests delivered to running threads.",
	}, []string{"backend"})

	runSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intthread",
		Name:      "thread_run_seconds",
		Help:      "Time from spawn to exit of native threads in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"backend"})

	registryEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intthread",
		Name:      "registry_entries",
		Help:      "Number of controllers currently registered.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "intthread",
		Name:      "build_info",
		Help:      "Build metadata for the running intthread binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(threadsRunning, threadStarts, spawnFailures, interrupts, suspends, runSeconds, registryEntries, buildInfo)
}

// Registry returns the Prometheus registry containing all intthread metrics.
func Registry() *prometheus.Registry {
	return registry
}

func label(backend string) string {
	if backend == "" {
		return "unknown"
	}
	return backend
}

// ThreadSpawning counts a thread as running before its spawn is attempted,
// so a body that exits before the spawn returns never drives the gauge
// negative. SpawnFailed rolls it back.
func ThreadSpawning(backend string) {
	threadsRunning.WithLabelValues(label(backend)).Inc()
}

// ThreadStarted records a successful spawn.
func ThreadStarted(backend string) {
	threadStarts.WithLabelValues(label(backend)).Inc()
}

// ThreadExited records the exit of a thread that ran for d.
func ThreadExited(backend string, d time.Duration) {
	threadsRunning.WithLabelValues(label(backend)).Dec()
	runSeconds.WithLabelValues(label(backend)).Observe(d.Seconds())
}

// SpawnFailed records a failed spawn and undoes ThreadSpawning.
func SpawnFailed(backend string) {
	spawnFailures.WithLabelValues(label(backend)).Inc()
	threadsRunning.WithLabelValues(label(backend)).Dec()
}

// ThreadInterrupted records an interrupt delivered to a running thread.
func ThreadInterrupted(backend string) {
	interrupts.WithLabelValues(label(backend)).Inc()
}

// ThreadSuspended records a suspend delivered to a running thread.
func ThreadSuspended(backend string) {
	suspends.WithLabelValues(label(backend)).Inc()
}

// RegistryEntryAdded and RegistryEntryRemoved track the registry size.
func RegistryEntryAdded() {
	registryEntries.Inc()
}

func RegistryEntryRemoved() {
	registryEntries.Dec()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
