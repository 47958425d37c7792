//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package native

import (
	"golang.org/x/sys/unix"
)

// newWakeDescriptor creates a non-blocking, close-on-exec self-pipe.
func newWakeDescriptor() (waker, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, err
	}
	cleanup := func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	}

	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return nil, err
	}

	return &fdWaker{readFd: fds[0], writeFd: fds[1], payload: []byte{1}}, nil
}
