//go:build linux

package native

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// newWakeDescriptor creates an eventfd used as both read and write end.
func newWakeDescriptor() (waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 8)
	binary.NativeEndian.PutUint64(payload, 1)
	return &fdWaker{readFd: fd, writeFd: fd, payload: payload}, nil
}
