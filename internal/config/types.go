package config

import (
	"fmt"
	"time"

	"github.com/Paintersrp/intthread/internal/registry"
	"github.com/Paintersrp/intthread/internal/worker"
)

// Version is the manifest version understood by this build.
const Version = "1"

// DefaultHold is the blocking worker wait when none is configured.
const DefaultHold = time.Minute

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the threads.yaml document structure.
type Manifest struct {
	Version   string        `yaml:"version"`
	Defaults  Defaults      `yaml:"defaults"`
	Interrupt InterruptSpec `yaml:"interrupt"`
	Threads   []*ThreadSpec `yaml:"threads"`
}

// Defaults are applied to threads that leave a field unset.
type Defaults struct {
	Backend  string   `yaml:"backend"`
	Interval Duration `yaml:"interval"`
}

// InterruptSpec controls when `run` interrupts the manifest's threads.
type InterruptSpec struct {
	After Duration `yaml:"after"`
}

// ThreadSpec declares one registered controller.
type ThreadSpec struct {
	ID       uint64   `yaml:"id"`
	Name     string   `yaml:"name"`
	Worker   string   `yaml:"worker"`
	Interval Duration `yaml:"interval"`
	Limit    int      `yaml:"limit"`
	Hold     Duration `yaml:"hold"`
	Backend  string   `yaml:"backend"`
	Start    *bool    `yaml:"start"`
}

// RegistryID returns the id the thread is registered under.
func (t *ThreadSpec) RegistryID() registry.ID {
	return registry.ID(t.ID)
}

// Label returns the configured name, or one derived from the id.
func (t *ThreadSpec) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("thread-%d", t.ID)
}

// AutoStart reports whether the thread is started when the manifest runs.
func (t *ThreadSpec) AutoStart() bool {
	return t.Start == nil || *t.Start
}

// WorkerSpec converts the entry into a stock worker description.
func (t *ThreadSpec) WorkerSpec() worker.Spec {
	return worker.Spec{
		Kind:     worker.Kind(t.Worker),
		Interval: t.Interval.Duration,
		Limit:    t.Limit,
		Hold:     t.Hold.Duration,
	}
}

// ApplyDefaults fills unset fields from the manifest defaults.
func (m *Manifest) ApplyDefaults() error {
	if m.Version == "" {
		m.Version = Version
	}
	if !m.Defaults.Interval.IsSet() {
		m.Defaults.Interval = Duration{Duration: worker.DefaultInterval}
	}
	for idx, t := range m.Threads {
		if t == nil {
			return fmt.Errorf("%s: entry must not be empty", threadField(idx, ""))
		}
		if t.Worker == "" {
			t.Worker = string(worker.KindCounter)
		}
		if t.Backend == "" {
			t.Backend = m.Defaults.Backend
		}
		if !t.Interval.IsSet() {
			t.Interval = m.Defaults.Interval
		}
		if t.Worker == string(worker.KindBlocking) && !t.Hold.IsSet() {
			t.Hold = Duration{Duration: DefaultHold}
		}
	}
	return nil
}

func threadField(idx int, field string) string {
	if field == "" {
		return fmt.Sprintf("threads[%d]", idx)
	}
	return fmt.Sprintf("threads[%d].%s", idx, field)
}
