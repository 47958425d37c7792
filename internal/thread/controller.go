package thread

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/metrics"
	"github.com/Paintersrp/intthread/internal/native"
)

const defaultName = "thread"

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Info is a point-in-time snapshot of a controller.
type Info struct {
	Name        string
	Backend     string
	State       State
	NativeID    int64
	RunID       string
	Interrupted bool
	StatusCode  int
	Err         error
}

// Option configures a controller.
type Option func(*core)

// WithBackend selects the native backend. The platform default is used
// otherwise.
func WithBackend(b native.Backend) Option {
	return func(c *core) {
		if b != nil {
			c.backend = b
		}
	}
}

// WithLogger sets the base log entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(c *core) {
		if entry != nil {
			c.log = entry
		}
	}
}

// WithName labels the controller in logs and snapshots.
func WithName(name string) Option {
	return func(c *core) {
		if name != "" {
			c.name = name
		}
	}
}

// Controller owns the lifecycle of one native thread. Controllers must not
// be copied; use Transfer to move ownership.
type Controller struct {
	core atomic.Pointer[core]
}

// core is the state that moves with ownership on Transfer.
type core struct {
	name    string
	worker  Worker
	backend native.Backend
	log     *logrus.Entry

	interrupted atomic.Bool

	mu         sync.Mutex
	handle     handle
	started    bool
	exited     bool
	closed     bool
	nativeID   int64
	runID      string
	statusCode int
	exitErr    error
}

// New constructs a controller that runs w once started.
func New(w Worker, opts ...Option) (*Controller, error) {
	if w == nil {
		return nil, ErrNilWorker
	}
	c := &core{
		name:   defaultName,
		worker: w,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backend == nil {
		c.backend = native.Default()
	}
	if c.log == nil {
		c.log = logging.Component(logrus.StandardLogger(), "thread")
	}
	c.log = c.log.WithFields(logrus.Fields{
		"thread":  c.name,
		"backend": c.backend.Name(),
	})

	ctrl := &Controller{}
	ctrl.core.Store(c)
	return ctrl, nil
}

func (c *Controller) load() (*core, error) {
	core := c.core.Load()
	if core == nil {
		return nil, ErrClosed
	}
	return core, nil
}

// Start spawns the native thread. It is a no-op while a thread is held and
// after the thread has been joined.
func (c *Controller) Start() error {
	core, err := c.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return ErrClosed
	}
	if !core.handle.empty() || core.exited {
		return nil
	}

	backend := core.backend.Name()
	metrics.ThreadSpawning(backend)
	nt, err := core.backend.Spawn(core.run)
	if err != nil {
		metrics.SpawnFailed(backend)
		spawnErr := &SpawnError{Backend: backend, Err: err}
		core.log.WithError(err).Error("spawn failed")
		return spawnErr
	}

	core.handle.set(nt)
	core.started = true
	core.nativeID = nt.ID()
	core.runID = nt.RunID()
	metrics.ThreadStarted(backend)
	core.log.WithFields(logrus.Fields{"tid": core.nativeID, "run_id": core.runID}).Debug("thread started")
	return nil
}

// Interrupt requests cooperative cancellation. It sets the flag, releases a
// suspended thread and issues the backend's wake action. Before Start it
// fails with ErrNotStarted and leaves the flag untouched.
func (c *Controller) Interrupt() error {
	core, err := c.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	nt := core.handle.peek()
	if nt == nil {
		if !core.started {
			return ErrNotStarted
		}
		core.interrupted.Store(true)
		return nil
	}

	if core.interrupted.CompareAndSwap(false, true) {
		metrics.ThreadInterrupted(core.backend.Name())
		core.log.Debug("interrupt requested")
	}

	// Resume first so the body can reach a checkpoint even when the wake
	// action cannot unblock it.
	var errs []error
	if err := core.backend.Resume(nt); err != nil {
		errs = append(errs, fmt.Errorf("resume: %w", err))
	}
	if err := core.backend.Wake(nt); err != nil {
		errs = append(errs, fmt.Errorf("wake: %w", err))
	}
	return errors.Join(errs...)
}

// Suspend parks the thread at its next checkpoint. It is a no-op while no
// thread is held.
func (c *Controller) Suspend() error {
	core, err := c.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	nt := core.handle.peek()
	if nt == nil {
		return nil
	}
	if err := core.backend.Suspend(nt); err != nil {
		return fmt.Errorf("suspend %s: %w", core.name, err)
	}
	metrics.ThreadSuspended(core.backend.Name())
	core.log.Debug("thread suspended")
	return nil
}

// Resume releases a suspended thread. Resuming a thread that is not
// suspended, or before Start, is a no-op.
func (c *Controller) Resume() error {
	core, err := c.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	nt := core.handle.peek()
	if nt == nil {
		return nil
	}
	if err := core.backend.Resume(nt); err != nil {
		return fmt.Errorf("resume %s: %w", core.name, err)
	}
	core.log.Debug("thread resumed")
	return nil
}

// Join blocks until the worker hooks have returned and clears the handle.
// Later calls return immediately. There is no timeout: a worker that never
// observes its interrupt flag blocks Join forever.
func (c *Controller) Join() error {
	core, err := c.load()
	if err != nil {
		return err
	}

	core.mu.Lock()
	nt := core.handle.peek()
	if nt == nil {
		started := core.started
		core.mu.Unlock()
		if !started {
			return ErrNotStarted
		}
		return nil
	}
	core.mu.Unlock()

	// The lock is not held while waiting so Resume and Interrupt stay usable.
	core.backend.Join(nt)

	core.mu.Lock()
	defer core.mu.Unlock()
	if core.handle.peek() != nt {
		return nil
	}
	core.handle.take()
	core.exited = true
	if err := core.backend.Release(nt); err != nil {
		core.log.WithError(err).Warn("release native thread")
	}
	core.log.Debug("thread joined")
	return nil
}

// ID returns the native thread id. It fails with ErrNotStarted before Start
// and keeps returning the last id after Join.
func (c *Controller) ID() (int64, error) {
	core, err := c.load()
	if err != nil {
		return 0, err
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	if !core.started {
		return 0, ErrNotStarted
	}
	return core.nativeID, nil
}

// SetStatusCode records a status value independent of the lifecycle.
func (c *Controller) SetStatusCode(code int) {
	if core := c.core.Load(); core != nil {
		core.setStatusCode(code)
	}
}

// StatusCode returns the last recorded status value.
func (c *Controller) StatusCode() int {
	core := c.core.Load()
	if core == nil {
		return 0
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	return core.statusCode
}

// Interrupted reports whether an interrupt has been requested.
func (c *Controller) Interrupted() bool {
	core := c.core.Load()
	return core != nil && core.interrupted.Load()
}

// Running reports whether the controller holds a thread that has not been
// joined yet.
func (c *Controller) Running() bool {
	core := c.core.Load()
	if core == nil {
		return false
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	return !core.handle.empty()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	core := c.core.Load()
	if core == nil {
		return StateClosed
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	return core.stateLocked()
}

// Done is closed once the worker hooks have returned. It is nil before
// Start.
func (c *Controller) Done() <-chan struct{} {
	core := c.core.Load()
	if core == nil {
		return closedCh
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	if nt := core.handle.peek(); nt != nil {
		return nt.Done()
	}
	if core.started {
		return closedCh
	}
	return nil
}

// Err returns the panic recovered from a worker hook, if any.
func (c *Controller) Err() error {
	core := c.core.Load()
	if core == nil {
		return nil
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	return core.exitErr
}

// Name returns the controller name.
func (c *Controller) Name() string {
	if core := c.core.Load(); core != nil {
		return core.name
	}
	return ""
}

// Backend returns the name of the backend driving this controller.
func (c *Controller) Backend() string {
	if core := c.core.Load(); core != nil {
		return core.backend.Name()
	}
	return ""
}

// Info returns a snapshot of the controller.
func (c *Controller) Info() Info {
	core := c.core.Load()
	if core == nil {
		return Info{State: StateClosed}
	}
	core.mu.Lock()
	defer core.mu.Unlock()
	return Info{
		Name:        core.name,
		Backend:     core.backend.Name(),
		State:       core.stateLocked(),
		NativeID:    core.nativeID,
		RunID:       core.runID,
		Interrupted: core.interrupted.Load(),
		StatusCode:  core.statusCode,
		Err:         core.exitErr,
	}
}

// Transfer moves the thread, flag, status code and worker into a new
// controller. The receiver is left closed: every later operation on it
// fails with ErrClosed and it can never release the moved thread.
func (c *Controller) Transfer() (*Controller, error) {
	core := c.core.Swap(nil)
	if core == nil {
		return nil, ErrClosed
	}
	moved := &Controller{}
	moved.core.Store(core)
	return moved, nil
}

// Close releases the controller. It fails with ErrDestroyedWhileRunning
// while a thread is held; interrupt and join first. Closing twice is a
// no-op.
func (c *Controller) Close() error {
	core := c.core.Load()
	if core == nil {
		return nil
	}

	core.mu.Lock()
	defer core.mu.Unlock()

	if !core.handle.empty() {
		return fmt.Errorf("%w: %s", ErrDestroyedWhileRunning, core.name)
	}
	core.closed = true
	c.core.CompareAndSwap(core, nil)
	return nil
}

func (c *core) stateLocked() State {
	nt := c.handle.peek()
	switch {
	case c.closed:
		return StateClosed
	case nt == nil && !c.started:
		return StateNotStarted
	case nt == nil, nt.Exited():
		return StateExited
	case nt.Suspended():
		return StateSuspended
	default:
		return StateRunning
	}
}

func (c *core) setStatusCode(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCode = code
}

// run is the body handed to the backend. It executes on the native thread.
func (c *core) run(nt *native.Thread) {
	started := time.Now()
	defer func() {
		metrics.ThreadExited(c.backend.Name(), time.Since(started))
	}()

	view := &Thread{
		core:   c,
		native: nt,
		log:    c.log.WithFields(logrus.Fields{"tid": nt.ID(), "run_id": nt.RunID()}),
	}

	if !c.invoke(view, "run", c.worker.Run) {
		return
	}
	if c.interrupted.Load() {
		c.invoke(view, "on_interrupt", c.worker.OnInterrupt)
	}
}

func (c *core) invoke(view *Thread, hook string, fn func(*Thread)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Hook: hook, Value: r, Stack: debug.Stack()}
			c.mu.Lock()
			if c.exitErr == nil {
				c.exitErr = err
			}
			c.mu.Unlock()
			view.log.WithError(err).Error("worker panicked")
			ok = false
		}
	}()
	fn(view)
	return true
}
