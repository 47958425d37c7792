package config

import (
	"errors"
	"fmt"

	"github.com/Paintersrp/intthread/internal/native"
	"github.com/Paintersrp/intthread/internal/worker"
)

// Validate performs semantic validation of the manifest after defaults have
// been applied.
func (m *Manifest) Validate() error {
	if m.Version != Version {
		return fmt.Errorf("version: unsupported manifest version %q", m.Version)
	}
	if err := validateBackend("defaults.backend", m.Defaults.Backend); err != nil {
		return err
	}
	if m.Defaults.Interval.Duration <= 0 {
		return fmt.Errorf("defaults.interval: must be positive")
	}
	if m.Interrupt.After.Duration < 0 {
		return fmt.Errorf("interrupt.after: must not be negative")
	}

	seen := make(map[uint64]int, len(m.Threads))
	var errs []error
	for idx, t := range m.Threads {
		if t == nil {
			errs = append(errs, fmt.Errorf("%s: entry must not be empty", threadField(idx, "")))
			continue
		}
		if t.ID == 0 {
			errs = append(errs, fmt.Errorf("%s: must be non-zero", threadField(idx, "id")))
		} else if prev, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: id %d already used by %s", threadField(idx, "id"), t.ID, threadField(prev, "")))
		} else {
			seen[t.ID] = idx
		}
		if !worker.Known(t.Worker) {
			errs = append(errs, fmt.Errorf("%s: unknown worker %q (expected one of %v)", threadField(idx, "worker"), t.Worker, worker.Kinds()))
		}
		if err := validateBackend(threadField(idx, "backend"), t.Backend); err != nil {
			errs = append(errs, err)
		}
		if t.Interval.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", threadField(idx, "interval")))
		}
		if t.Limit < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", threadField(idx, "limit")))
		}
		if t.Hold.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", threadField(idx, "hold")))
		}
	}
	return errors.Join(errs...)
}

func validateBackend(field, name string) error {
	if name == "" {
		return nil
	}
	if _, err := native.Lookup(name); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
