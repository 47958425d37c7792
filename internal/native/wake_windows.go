//go:build windows

package native

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// eventWaker is a manual-reset event object. It is never reset, so it stays
// signalled after the first wake.
type eventWaker struct {
	mu     sync.RWMutex
	closed bool
	h      windows.Handle
}

func newWakeDescriptor() (waker, error) {
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	return &eventWaker{h: h}, nil
}

func (w *eventWaker) signal() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	if err := windows.SetEvent(w.h); err != nil {
		return fmt.Errorf("signal wake event: %w", err)
	}
	return nil
}

func (w *eventWaker) wait(d time.Duration) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false, nil
	}
	deadline := time.Now().Add(d)
	for {
		ms := uint32(waitMillis(time.Until(deadline), maxEventMillis))
		event, err := windows.WaitForSingleObject(w.h, ms)
		if err != nil {
			return false, fmt.Errorf("wait on wake event: %w", err)
		}
		if event == windows.WAIT_OBJECT_0 {
			return true, nil
		}
		if time.Until(deadline) <= 0 {
			return false, nil
		}
	}
}

func (w *eventWaker) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return windows.CloseHandle(w.h)
}
