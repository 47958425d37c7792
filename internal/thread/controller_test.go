package thread

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/metrics"
	"github.com/Paintersrp/intthread/internal/native"
)

const unit = 100 * time.Millisecond

func backends() []native.Backend {
	return []native.Backend{native.NewSignal(), native.NewSuspend()}
}

func newController(t *testing.T, w Worker, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Component(logging.Discard(), "thread"))}, opts...)
	c, err := New(w, opts...)
	require.NoError(t, err)
	return c
}

// joinWithin fails the test if Join does not return in time.
func joinWithin(t *testing.T, c *Controller, d time.Duration) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Join() }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(d):
		t.Fatalf("join did not return within %s", d)
	}
}

// untilInterrupted polls the flag and records how many times OnInterrupt ran.
type untilInterrupted struct {
	cleanups atomic.Int32
}

func (w *untilInterrupted) Run(t *Thread) {
	for t.Checkpoint() == nil {
		time.Sleep(time.Millisecond)
	}
}

func (w *untilInterrupted) OnInterrupt(*Thread) {
	w.cleanups.Add(1)
}

func TestCounterScenario(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			var count, cleanups atomic.Int32
			w := Funcs{
				RunFunc: func(th *Thread) {
					for {
						if err := th.Sleep(unit); err != nil {
							return
						}
						count.Add(1)
					}
				},
				InterruptFunc: func(*Thread) { cleanups.Add(1) },
			}
			c := newController(t, w, WithBackend(b))

			require.NoError(t, c.Start())
			time.Sleep(unit * 5 / 2)
			require.NoError(t, c.Interrupt())
			joinWithin(t, c, 5*unit)

			assert.GreaterOrEqual(t, count.Load(), int32(2))
			assert.LessOrEqual(t, count.Load(), int32(3))
			assert.Equal(t, int32(1), cleanups.Load())

			joinWithin(t, c, unit)
			assert.Equal(t, StateExited, c.State())
		})
	}
}

func TestStartIsIdempotent(t *testing.T) {
	w := &untilInterrupted{}
	c := newController(t, w)

	require.NoError(t, c.Start())
	first, err := c.ID()
	require.NoError(t, err)

	require.NoError(t, c.Start())
	second, err := c.ID()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, c.Interrupt())
	joinWithin(t, c, time.Second)
	assert.Equal(t, int32(1), w.cleanups.Load())
}

func TestStartAfterJoinIsNoop(t *testing.T) {
	var runs atomic.Int32
	c := newController(t, Funcs{RunFunc: func(*Thread) { runs.Add(1) }})

	require.NoError(t, c.Start())
	joinWithin(t, c, time.Second)
	require.NoError(t, c.Start())
	joinWithin(t, c, time.Second)

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, StateExited, c.State())
}

func TestUnstartedOperations(t *testing.T) {
	c := newController(t, &untilInterrupted{})

	assert.Equal(t, StateNotStarted, c.State())
	assert.ErrorIs(t, c.Interrupt(), ErrNotStarted)
	assert.False(t, c.Interrupted(), "interrupt before start must leave the flag clear")
	assert.NoError(t, c.Suspend())
	assert.NoError(t, c.Resume())
	assert.ErrorIs(t, c.Join(), ErrNotStarted)
	assert.Nil(t, c.Done())

	_, err := c.ID()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestInterruptFlagIsMonotonic(t *testing.T) {
	c := newController(t, &untilInterrupted{})
	require.NoError(t, c.Start())

	require.NoError(t, c.Interrupt())
	require.NoError(t, c.Interrupt())
	assert.True(t, c.Interrupted())

	joinWithin(t, c, time.Second)
	assert.True(t, c.Interrupted())

	require.NoError(t, c.Interrupt())
	assert.True(t, c.Interrupted())
}

func TestOnInterruptSkippedWhenNotInterrupted(t *testing.T) {
	var cleanups atomic.Int32
	c := newController(t, Funcs{
		RunFunc:       func(*Thread) {},
		InterruptFunc: func(*Thread) { cleanups.Add(1) },
	})

	require.NoError(t, c.Start())
	joinWithin(t, c, time.Second)
	assert.Zero(t, cleanups.Load())
}

func TestSuspendResumePreservesFlag(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			var ticks atomic.Int64
			c := newController(t, Funcs{RunFunc: func(th *Thread) {
				for th.Checkpoint() == nil {
					ticks.Add(1)
					time.Sleep(time.Millisecond)
				}
			}}, WithBackend(b))

			require.NoError(t, c.Start())
			require.Eventually(t, func() bool { return ticks.Load() > 0 }, time.Second, time.Millisecond)

			require.NoError(t, c.Suspend())
			require.Eventually(t, func() bool { return c.State() == StateSuspended }, time.Second, time.Millisecond)
			time.Sleep(10 * time.Millisecond)
			parked := ticks.Load()
			time.Sleep(5 * unit / 2)
			assert.LessOrEqual(t, ticks.Load(), parked+1, "suspended thread kept running")
			assert.False(t, c.Interrupted())

			require.NoError(t, c.Resume())
			require.Eventually(t, func() bool { return ticks.Load() > parked+1 }, time.Second, time.Millisecond)
			assert.False(t, c.Interrupted())

			require.NoError(t, c.Interrupt())
			joinWithin(t, c, time.Second)
		})
	}
}

func TestInterruptWhileSuspendedForceResumes(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			w := &untilInterrupted{}
			c := newController(t, w, WithBackend(b))

			require.NoError(t, c.Start())
			require.NoError(t, c.Suspend())
			require.NoError(t, c.Interrupt())

			joinWithin(t, c, time.Second)
			assert.Equal(t, int32(1), w.cleanups.Load())
		})
	}
}

func TestSuspendAfterInterruptDoesNotPark(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			w := &untilInterrupted{}
			c := newController(t, w, WithBackend(b))

			require.NoError(t, c.Start())
			require.NoError(t, c.Interrupt())
			require.NoError(t, c.Suspend())

			joinWithin(t, c, time.Second)
			assert.Equal(t, int32(1), w.cleanups.Load())
		})
	}
}

func TestForcedWakeDifference(t *testing.T) {
	long := 20 * unit
	for _, tc := range []struct {
		backend native.Backend
		forced  bool
	}{
		{native.NewSignal(), true},
		{native.NewSuspend(), false},
	} {
		t.Run(tc.backend.Name(), func(t *testing.T) {
			waiting := make(chan struct{})
			c := newController(t, Funcs{RunFunc: func(th *Thread) {
				close(waiting)
				_ = th.Sleep(long)
			}}, WithBackend(tc.backend))

			require.NoError(t, c.Start())
			<-waiting
			time.Sleep(unit / 2)

			began := time.Now()
			require.NoError(t, c.Interrupt())
			if tc.forced {
				joinWithin(t, c, long/2)
				assert.Less(t, time.Since(began), long/2)
				return
			}
			// Only flag visibility is guaranteed: the wait runs to completion.
			select {
			case <-c.Done():
				t.Fatalf("suspend backend cut the wait short")
			case <-time.After(2 * unit):
			}
			assert.True(t, c.Interrupted())
			joinWithin(t, c, 2*long)
		})
	}
}

func TestJoinDoesNotBlockResume(t *testing.T) {
	c := newController(t, &untilInterrupted{})
	require.NoError(t, c.Start())
	require.NoError(t, c.Suspend())

	joined := make(chan error, 1)
	go func() { joined <- c.Join() }()

	time.Sleep(unit / 2)
	resumed := make(chan error, 1)
	go func() { resumed <- c.Resume() }()
	select {
	case err := <-resumed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("resume blocked behind join")
	}

	require.NoError(t, c.Interrupt())
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("join did not return")
	}
}

func TestDoneClosesOnExit(t *testing.T) {
	c := newController(t, Funcs{})
	require.NoError(t, c.Start())

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("done not closed")
	}
	joinWithin(t, c, time.Second)

	select {
	case <-c.Done():
	default:
		t.Fatalf("done must stay closed after join")
	}
}

func TestStatusCode(t *testing.T) {
	c := newController(t, Funcs{RunFunc: func(th *Thread) { th.SetStatusCode(7) }})
	assert.Zero(t, c.StatusCode())

	c.SetStatusCode(3)
	assert.Equal(t, 3, c.StatusCode())

	require.NoError(t, c.Start())
	joinWithin(t, c, time.Second)
	assert.Equal(t, 7, c.StatusCode())
}

type failingBackend struct {
	native.Backend
}

func (failingBackend) Spawn(func(*native.Thread)) (*native.Thread, error) {
	return nil, errors.New("out of threads")
}

func TestSpawnFailure(t *testing.T) {
	c := newController(t, Funcs{}, WithBackend(failingBackend{Backend: native.NewSignal()}))

	err := c.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpawnFailure)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, native.SignalName, spawnErr.Backend)

	assert.Equal(t, StateNotStarted, c.State())
	assert.ErrorIs(t, c.Join(), ErrNotStarted)
}

func TestPanicRecovered(t *testing.T) {
	var cleanups atomic.Int32
	c := newController(t, Funcs{
		RunFunc: func(th *Thread) {
			for th.Checkpoint() == nil {
				time.Sleep(time.Millisecond)
			}
			panic("boom")
		},
		InterruptFunc: func(*Thread) { cleanups.Add(1) },
	})

	require.NoError(t, c.Start())
	require.NoError(t, c.Interrupt())
	joinWithin(t, c, time.Second)

	var panicErr *PanicError
	require.ErrorAs(t, c.Err(), &panicErr)
	assert.Equal(t, "run", panicErr.Hook)
	assert.Equal(t, "boom", panicErr.Value)
	assert.Zero(t, cleanups.Load(), "cleanup must be skipped after a panic in run")
}

func TestTransferMovesOwnership(t *testing.T) {
	w := &untilInterrupted{}
	src := newController(t, w, WithName("mover"))
	require.NoError(t, src.Start())
	id, err := src.ID()
	require.NoError(t, err)

	dst, err := src.Transfer()
	require.NoError(t, err)

	assert.Equal(t, StateClosed, src.State())
	assert.ErrorIs(t, src.Interrupt(), ErrClosed)
	assert.ErrorIs(t, src.Join(), ErrClosed)
	assert.NoError(t, src.Close())
	_, err = src.Transfer()
	assert.ErrorIs(t, err, ErrClosed)

	movedID, err := dst.ID()
	require.NoError(t, err)
	assert.Equal(t, id, movedID)
	assert.Equal(t, "mover", dst.Name())

	require.NoError(t, dst.Interrupt())
	joinWithin(t, dst, time.Second)
	assert.Equal(t, int32(1), w.cleanups.Load())
	require.NoError(t, dst.Close())
}

func TestCloseWhileRunningRejected(t *testing.T) {
	c := newController(t, &untilInterrupted{})
	require.NoError(t, c.Start())

	assert.ErrorIs(t, c.Close(), ErrDestroyedWhileRunning)
	assert.Equal(t, StateRunning, c.State())

	require.NoError(t, c.Interrupt())
	joinWithin(t, c, time.Second)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Start(), ErrClosed)
}

func TestCloseBeforeStart(t *testing.T) {
	c := newController(t, Funcs{})
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(), ErrClosed)
}

func TestInfoSnapshot(t *testing.T) {
	c := newController(t, &untilInterrupted{}, WithName("snap"), WithBackend(native.NewSuspend()))
	require.NoError(t, c.Start())

	info := c.Info()
	assert.Equal(t, "snap", info.Name)
	assert.Equal(t, native.SuspendName, info.Backend)
	assert.Equal(t, StateRunning, info.State)
	assert.NotEmpty(t, info.RunID)
	assert.NotZero(t, info.NativeID)
	assert.False(t, info.Interrupted)

	require.NoError(t, c.Interrupt())
	joinWithin(t, c, time.Second)
	assert.True(t, c.Info().Interrupted)
}

func TestNewRejectsNilWorker(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilWorker)
}

func runningGauge(t *testing.T, backend string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "intthread_threads_running" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "backend" && l.GetValue() == backend {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

// exitBeforeReturnBackend lets the body finish before Spawn returns and
// samples the running gauge at that point.
type exitBeforeReturnBackend struct {
	native.Backend
	t       *testing.T
	sampled *float64
}

func (b exitBeforeReturnBackend) Name() string { return "exit-before-return" }

func (b exitBeforeReturnBackend) Spawn(body func(*native.Thread)) (*native.Thread, error) {
	nt, err := b.Backend.Spawn(body)
	if err != nil {
		return nil, err
	}
	<-nt.Done()
	*b.sampled = runningGauge(b.t, b.Name())
	return nt, nil
}

func TestRunningGaugeNeverNegative(t *testing.T) {
	var sampled float64
	backend := exitBeforeReturnBackend{Backend: native.NewSignal(), t: t, sampled: &sampled}
	c := newController(t, Funcs{}, WithBackend(backend))

	require.NoError(t, c.Start())
	assert.Zero(t, sampled, "gauge seen while the body had already exited")
	joinWithin(t, c, time.Second)
	assert.Zero(t, runningGauge(t, backend.Name()))
}

func TestSpawnFailureRollsBackRunningGauge(t *testing.T) {
	before := runningGauge(t, native.SignalName)
	c := newController(t, Funcs{}, WithBackend(failingBackend{Backend: native.NewSignal()}))
	require.Error(t, c.Start())
	assert.Equal(t, before, runningGauge(t, native.SignalName))
}
