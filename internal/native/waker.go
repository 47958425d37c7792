package native

import (
	"math"
	"sync"
	"time"
)

// Longest single waits handed to poll(2) and WaitForSingleObject, whose
// INFINITE is MaxUint32. Longer waits are split into chunks.
const (
	maxPollMillis  = math.MaxInt32
	maxEventMillis = math.MaxUint32 - 1
)

// waitMillis rounds d up to whole milliseconds, capped at limit.
func waitMillis(d time.Duration, limit int64) int64 {
	if d <= 0 {
		return 0
	}
	ms := int64(d / time.Millisecond)
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > limit {
		return limit
	}
	return ms
}

// waker is the per-thread wake primitive. Signalling is sticky: once
// signalled, every later wait returns immediately.
type waker interface {
	signal() error
	wait(d time.Duration) (bool, error)
	close() error
}

// sleepWaker has no wake path; waits always last the full duration.
type sleepWaker struct{}

func (sleepWaker) signal() error { return nil }

func (sleepWaker) wait(d time.Duration) (bool, error) {
	if d <= 0 {
		return false, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
	return false, nil
}

func (sleepWaker) close() error { return nil }

// chanWaker is the portable wake descriptor used where no OS primitive is
// wired.
type chanWaker struct {
	once sync.Once
	ch   chan struct{}
}

func newChanWaker() *chanWaker {
	return &chanWaker{ch: make(chan struct{})}
}

func (w *chanWaker) signal() error {
	w.once.Do(func() { close(w.ch) })
	return nil
}

func (w *chanWaker) wait(d time.Duration) (bool, error) {
	if d <= 0 {
		select {
		case <-w.ch:
			return true, nil
		default:
			return false, nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-w.ch:
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (w *chanWaker) close() error { return nil }
