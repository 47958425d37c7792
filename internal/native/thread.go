package native

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Thread is the native side of one spawned body.
type Thread struct {
	id    atomic.Int64
	runID ulid.ULID

	gate  gate
	waker waker

	ready chan struct{}
	done  chan struct{}
}

// spawn runs body on a goroutine that is locked to its OS thread for its
// whole life and returns once the thread id has been recorded.
func spawn(w waker, body func(*Thread)) *Thread {
	t := &Thread{
		runID: ulid.Make(),
		waker: w,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}

	go func() {
		// Never unlocked: the OS thread exits together with the body.
		runtime.LockOSThread()
		t.id.Store(currentThreadID())
		close(t.ready)

		defer close(t.done)
		body(t)
	}()

	<-t.ready
	return t
}

// ID returns the OS thread id.
func (t *Thread) ID() int64 {
	return t.id.Load()
}

// RunID returns a unique identifier for this spawn, useful for correlating
// logs across restarts of the same process.
func (t *Thread) RunID() string {
	return t.runID.String()
}

// Done is closed once the body has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Exited reports whether the body has returned.
func (t *Thread) Exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Suspended reports whether the suspension gate is closed.
func (t *Thread) Suspended() bool {
	return t.gate.isClosed()
}

// Pause blocks while the thread is suspended. It returns early once stop
// reports true, which lets a cancelled thread leave a gate that was closed
// again after it was released.
func (t *Thread) Pause(stop func() bool) {
	t.gate.wait(stop)
}

// Wait blocks for up to d. It reports true when the wait ended because of a
// forced wake. Negative durations are treated as zero.
func (t *Thread) Wait(d time.Duration) (bool, error) {
	if d < 0 {
		d = 0
	}
	return t.waker.wait(d)
}

type gate struct {
	mu sync.Mutex
	ch chan struct{}
}

func (g *gate) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch != nil {
		return false
	}
	g.ch = make(chan struct{})
	return true
}

func (g *gate) open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		return false
	}
	close(g.ch)
	g.ch = nil
	return true
}

func (g *gate) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch != nil
}

func (g *gate) wait(stop func() bool) {
	for {
		if stop != nil && stop() {
			return
		}
		g.mu.Lock()
		ch := g.ch
		g.mu.Unlock()
		if ch == nil {
			return
		}
		<-ch
	}
}
