package thread

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawnFailure matches every *SpawnError.
	ErrSpawnFailure = errors.New("spawn failure")

	// ErrNotStarted indicates an operation that needs a spawned thread was
	// attempted before Start.
	ErrNotStarted = errors.New("thread not started")

	// ErrDestroyedWhileRunning indicates Close was attempted while the
	// controller still held a live thread.
	ErrDestroyedWhileRunning = errors.New("controller destroyed while running")

	// ErrInterrupted is returned by Thread.Checkpoint and Thread.Sleep once the
	// controller has been interrupted.
	ErrInterrupted = errors.New("thread interrupted")

	// ErrClosed indicates the controller was closed or transferred away.
	ErrClosed = errors.New("controller closed")

	// ErrNilWorker indicates New was called without a worker.
	ErrNilWorker = errors.New("nil worker")
)

// SpawnError reports that the backend could not create the native thread.
type SpawnError struct {
	Backend string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s thread: %v", e.Backend, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is reports ErrSpawnFailure as a match.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailure
}

// PanicError captures a panic recovered from a worker hook.
type PanicError struct {
	Hook  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %s panicked: %v", e.Hook, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
