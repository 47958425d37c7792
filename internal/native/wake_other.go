//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package native

func newWakeDescriptor() (waker, error) {
	return newChanWaker(), nil
}
