package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/intthread/internal/native"
	"github.com/Paintersrp/intthread/internal/worker"
)

func validManifest() *Manifest {
	return &Manifest{
		Version:  Version,
		Defaults: Defaults{Interval: Duration{Duration: time.Second}},
		Threads: []*ThreadSpec{
			{ID: 1, Worker: string(worker.KindCounter), Interval: Duration{Duration: time.Second}},
			{ID: 2, Worker: string(worker.KindBlocking), Interval: Duration{Duration: time.Second}, Hold: Duration{Duration: time.Minute}, Backend: native.SuspendName},
		},
	}
}

func TestValidateAcceptsManifest(t *testing.T) {
	if err := validManifest().Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	m := validManifest()
	m.Threads[0].Limit = -1
	m.Threads[1].ID = 1
	m.Threads[1].Hold = Duration{Duration: -time.Second}

	err := m.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{
		"threads[0].limit: must not be negative",
		"threads[1].id: id 1 already used by threads[0]",
		"threads[1].hold: must not be negative",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidateManifestLevelFields(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Manifest)
		want   string
	}{
		"version": {
			mutate: func(m *Manifest) { m.Version = "9" },
			want:   "unsupported manifest version",
		},
		"default interval": {
			mutate: func(m *Manifest) { m.Defaults.Interval = Duration{} },
			want:   "defaults.interval: must be positive",
		},
		"interrupt after": {
			mutate: func(m *Manifest) { m.Interrupt.After = Duration{Duration: -time.Second} },
			want:   "interrupt.after: must not be negative",
		},
		"nil thread": {
			mutate: func(m *Manifest) { m.Threads = append(m.Threads, nil) },
			want:   "threads[2]: entry must not be empty",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			m := validManifest()
			tc.mutate(m)
			err := m.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateBackendWrapsLookupError(t *testing.T) {
	err := validateBackend("threads[0].backend", "sigkill")
	if !errors.Is(err, native.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "threads[0].backend: ") {
		t.Fatalf("expected field prefix, got %v", err)
	}
	if err := validateBackend("defaults.backend", ""); err != nil {
		t.Fatalf("empty backend selects the default, got %v", err)
	}
}
