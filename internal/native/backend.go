package native

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by Lookup for names that were never registered.
var ErrUnknownBackend = errors.New("unknown backend")

// ErrNilThread is returned when a backend operation receives no thread.
var ErrNilThread = errors.New("nil native thread")

// Backend spawns and controls native threads.
type Backend interface {
	// Name identifies the backend, e.g. "signal".
	Name() string

	// ForcedWake reports whether Wake is guaranteed to unblock a pending
	// Thread.Wait.
	ForcedWake() bool

	// Spawn starts body on a dedicated OS thread. The returned thread's ID is
	// valid once Spawn returns.
	Spawn(body func(*Thread)) (*Thread, error)

	// Wake issues the backend's best-effort wake action.
	Wake(*Thread) error

	// Suspend and Resume close and open the thread's suspension gate.
	Suspend(*Thread) error
	Resume(*Thread) error

	// Join blocks until the body has returned.
	Join(*Thread)

	// Release frees per-thread resources. It must only be called after Join
	// and is safe to call more than once.
	Release(*Thread) error
}

// Factory constructs a backend instance.
type Factory func() Backend

type factoryEntry struct {
	name    string
	factory Factory
}

var (
	registryMu sync.RWMutex
	factories  []factoryEntry
)

// Register associates the provided factory with the backend name. When
// multiple factories register the same name the most recent registration wins.
func Register(name string, factory Factory) {
	if name == "" {
		panic("native.Register: name must not be empty")
	}
	if factory == nil {
		panic("native.Register: factory must not be nil")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	for i, entry := range factories {
		if entry.name == name {
			factories[i].factory = factory
			return
		}
	}

	factories = append(factories, factoryEntry{name: name, factory: factory})
}

// Lookup constructs the backend registered under name. An empty name selects
// the platform default.
func Lookup(name string) (Backend, error) {
	if name == "" {
		name = defaultBackendName
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, entry := range factories {
		if entry.name == name {
			return entry.factory(), nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, name)
}

// Names lists the registered backend names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for _, entry := range factories {
		names = append(names, entry.name)
	}
	sort.Strings(names)
	return names
}

// Default returns the backend selected for the current platform: suspend on
// Windows and signal everywhere else.
func Default() Backend {
	b, err := Lookup(defaultBackendName)
	if err != nil {
		// Both built-in backends register themselves in init.
		panic(err)
	}
	return b
}
