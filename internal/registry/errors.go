package registry

import "errors"

var (
	// ErrNotFound indicates an operation on an id that is not registered.
	ErrNotFound = errors.New("thread not registered")

	// ErrAlreadyRegistered indicates Register or Adopt on an id that is
	// already present.
	ErrAlreadyRegistered = errors.New("thread already registered")

	// ErrClosed indicates the registry has been torn down.
	ErrClosed = errors.New("registry closed")

	// ErrNilController indicates Register or Adopt without a controller.
	ErrNilController = errors.New("nil controller")
)
