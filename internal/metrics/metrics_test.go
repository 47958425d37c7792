package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/intthread/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	backend := "metrics_test_backend"

	metrics.EmitBuildInfo()
	for i := 0; i < 2; i++ {
		metrics.ThreadSpawning(backend)
		metrics.ThreadStarted(backend)
	}
	metrics.ThreadInterrupted(backend)
	metrics.ThreadExited(backend, 20*time.Millisecond)
	metrics.ThreadSpawning(backend)
	metrics.SpawnFailed(backend)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		`intthread_thread_starts_total{backend="metrics_test_backend"} 2`,
		`intthread_threads_running{backend="metrics_test_backend"} 1`,
		`intthread_thread_interrupts_total{backend="metrics_test_backend"} 1`,
		`intthread_thread_spawn_failures_total{backend="metrics_test_backend"} 1`,
		`intthread_thread_run_seconds_count{backend="metrics_test_backend"} 1`,
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected metric line %q in body:\n%s", line, body)
		}
	}

	if !strings.Contains(body, "intthread_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}
