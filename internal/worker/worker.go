// Package worker provides the stock work bodies used by the CLI and the
// thread manifest.
package worker

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/intthread/internal/thread"
)

// Kind names a stock worker.
type Kind string

const (
	KindCounter  Kind = "counter"
	KindBlocking Kind = "blocking"
)

// InterruptedStatus is the status code recorded by cleanup hooks, matching
// the shell convention for SIGINT.
const InterruptedStatus = 130

// DefaultInterval is the counter tick used when none is configured.
const DefaultInterval = time.Second

// ErrUnknownKind is returned by Build for unsupported kinds.
var ErrUnknownKind = errors.New("unknown worker kind")

// Spec describes a stock worker.
type Spec struct {
	Kind     Kind
	Interval time.Duration
	Limit    int
	Hold     time.Duration
}

// Kinds lists the supported worker kinds.
func Kinds() []Kind {
	kinds := []Kind{KindCounter, KindBlocking}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Known reports whether kind names a stock worker.
func Known(kind string) bool {
	for _, k := range Kinds() {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// Stats reports what a stock worker has done so far.
type Stats struct {
	Ticks    int64
	Cleanups int64
	Elapsed  time.Duration
}

// Reporter is implemented by the stock workers.
type Reporter interface {
	Stats() Stats
}

// Build constructs the worker described by spec.
func Build(spec Spec) (thread.Worker, error) {
	switch spec.Kind {
	case KindCounter:
		return NewCounter(spec.Interval, spec.Limit), nil
	case KindBlocking:
		return NewBlocking(spec.Hold), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, spec.Kind)
	}
}

// Counter increments once per interval until interrupted or, when Limit is
// positive, until Limit ticks have been counted.
type Counter struct {
	Interval time.Duration
	Limit    int

	ticks    atomic.Int64
	cleanups atomic.Int64
}

// NewCounter returns a counter. Non-positive intervals use DefaultInterval.
func NewCounter(interval time.Duration, limit int) *Counter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Counter{Interval: interval, Limit: limit}
}

func (c *Counter) Run(t *thread.Thread) {
	log := t.Logger()
	for c.Limit <= 0 || c.ticks.Load() < int64(c.Limit) {
		if err := t.Sleep(c.Interval); err != nil {
			if !errors.Is(err, thread.ErrInterrupted) {
				log.WithError(err).Warn("counter wait failed")
			}
			return
		}
		n := c.ticks.Add(1)
		log.WithField("count", n).Debug("tick")
	}
}

func (c *Counter) OnInterrupt(t *thread.Thread) {
	c.cleanups.Add(1)
	t.SetStatusCode(InterruptedStatus)
	t.Logger().WithField("count", c.ticks.Load()).Info("counter interrupted")
}

// Count returns the number of ticks so far.
func (c *Counter) Count() int64 {
	return c.ticks.Load()
}

func (c *Counter) Stats() Stats {
	return Stats{Ticks: c.ticks.Load(), Cleanups: c.cleanups.Load()}
}

// Blocking performs one long wait. With a forced-wake backend an interrupt
// ends the wait early; otherwise the full hold elapses first.
type Blocking struct {
	Hold time.Duration

	elapsed  atomic.Int64
	cleanups atomic.Int64
}

func NewBlocking(hold time.Duration) *Blocking {
	return &Blocking{Hold: hold}
}

func (b *Blocking) Run(t *thread.Thread) {
	began := time.Now()
	err := t.Sleep(b.Hold)
	b.elapsed.Store(int64(time.Since(began)))
	if err != nil && !errors.Is(err, thread.ErrInterrupted) {
		t.Logger().WithError(err).Warn("blocking wait failed")
	}
}

func (b *Blocking) OnInterrupt(t *thread.Thread) {
	b.cleanups.Add(1)
	t.SetStatusCode(InterruptedStatus)
	t.Logger().WithField("blocked_for", b.Elapsed()).Info("blocking worker interrupted")
}

// Elapsed returns how long Run spent waiting.
func (b *Blocking) Elapsed() time.Duration {
	return time.Duration(b.elapsed.Load())
}

func (b *Blocking) Stats() Stats {
	return Stats{Cleanups: b.cleanups.Load(), Elapsed: b.Elapsed()}
}
