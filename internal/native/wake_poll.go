//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package native

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// fdWaker is a wake descriptor backed by a readable file descriptor. The
// descriptor is never drained, so it stays readable after the first signal.
type fdWaker struct {
	mu      sync.RWMutex
	closed  bool
	readFd  int
	writeFd int
	payload []byte
}

func (w *fdWaker) signal() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	if _, err := unix.Write(w.writeFd, w.payload); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("signal wake descriptor: %w", err)
	}
	return nil
}

func (w *fdWaker) wait(d time.Duration) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false, nil
	}
	return pollReadable(w.readFd, d)
}

func (w *fdWaker) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := unix.Close(w.readFd)
	if w.writeFd != w.readFd {
		err = errors.Join(err, unix.Close(w.writeFd))
	}
	return err
}

func pollReadable(fd int, d time.Duration) (bool, error) {
	deadline := time.Now().Add(d)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		timeout := int(waitMillis(time.Until(deadline), maxPollMillis))
		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			// The runtime preempts locked threads with signals too.
			if time.Until(deadline) <= 0 {
				return false, nil
			}
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll wake descriptor: %w", err)
		}
		if n > 0 {
			return true, nil
		}
		if time.Until(deadline) <= 0 {
			return false, nil
		}
	}
}
