package thread

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/intthread/internal/native"
)

// Worker supplies the two hooks executed on the native thread.
type Worker interface {
	// Run is the work body. It should poll Thread.Interrupted, or call
	// Thread.Checkpoint / Thread.Sleep, and return once interrupted.
	Run(t *Thread)

	// OnInterrupt runs once, right after Run returns, if the controller was
	// interrupted by then.
	OnInterrupt(t *Thread)
}

// Funcs adapts two plain functions to Worker. Nil functions are skipped.
type Funcs struct {
	RunFunc       func(*Thread)
	InterruptFunc func(*Thread)
}

func (f Funcs) Run(t *Thread) {
	if f.RunFunc != nil {
		f.RunFunc(t)
	}
}

func (f Funcs) OnInterrupt(t *Thread) {
	if f.InterruptFunc != nil {
		f.InterruptFunc(t)
	}
}

// Thread is the view of the controller handed to worker hooks. It is only
// meaningful on the thread that received it.
type Thread struct {
	core   *core
	native *native.Thread
	log    *logrus.Entry
}

// Interrupted reports whether an interrupt has been requested. It never
// takes a lock.
func (t *Thread) Interrupted() bool {
	return t.core.interrupted.Load()
}

// Checkpoint returns ErrInterrupted once interrupted. Otherwise it parks
// while the thread is suspended and checks the flag again on release.
func (t *Thread) Checkpoint() error {
	if t.Interrupted() {
		return ErrInterrupted
	}
	t.native.Pause(t.Interrupted)
	if t.Interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Sleep waits for d between two checkpoints. On backends with forced wake
// an interrupt cuts the wait short; otherwise the full duration elapses
// before the flag is observed.
func (t *Thread) Sleep(d time.Duration) error {
	if err := t.Checkpoint(); err != nil {
		return err
	}
	if d > 0 {
		if _, err := t.native.Wait(d); err != nil {
			return err
		}
	}
	return t.Checkpoint()
}

// ID returns the native thread id.
func (t *Thread) ID() int64 {
	return t.native.ID()
}

// RunID returns the unique id of this spawn.
func (t *Thread) RunID() string {
	return t.native.RunID()
}

// Name returns the controller name.
func (t *Thread) Name() string {
	return t.core.name
}

// SetStatusCode records an exit status visible through Controller.StatusCode.
func (t *Thread) SetStatusCode(code int) {
	t.core.setStatusCode(code)
}

// Logger returns an entry tagged with the thread's identity.
func (t *Thread) Logger() *logrus.Entry {
	return t.log
}
