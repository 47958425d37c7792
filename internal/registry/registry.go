// Package registry maps caller-assigned ids to thread controllers so that
// unrelated code can control a thread it did not create.
//
// Every per-id operation is linearizable with Register and Unregister of the
// same id: it either runs against a live controller or fails with
// ErrNotFound.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dolthub/swiss"
	"github.com/sirupsen/logrus"

	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/metrics"
	"github.com/Paintersrp/intthread/internal/thread"
)

// ID addresses a registered controller. It is chosen by the caller and is
// unrelated to the native thread id.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// Info describes one registered controller.
type Info struct {
	ID    ID
	Owned bool
	thread.Info
}

// Option configures a registry.
type Option func(*Registry)

// WithLogger sets the registry's log entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(r *Registry) {
		if entry != nil {
			r.log = entry
		}
	}
}

type entry struct {
	ctrl  *thread.Controller
	owned bool
}

// Registry is an id to controller table. The zero value is not usable; call
// New.
type Registry struct {
	log *logrus.Entry

	mu      sync.RWMutex
	entries *swiss.Map[ID, *entry]
	closed  bool
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: swiss.NewMap[ID, *entry](16),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Component(logrus.StandardLogger(), "registry")
	}
	return r
}

// Register stores a reference to c under id. The caller keeps ownership and
// remains responsible for joining and closing c.
func (r *Registry) Register(id ID, c *thread.Controller) error {
	return r.insert(id, c, false)
}

// Adopt transfers ownership of c to the registry. On success c is left
// closed and the registry holds the moved controller; it is closed on
// Unregister or Close. On failure c is untouched.
func (r *Registry) Adopt(id ID, c *thread.Controller) error {
	return r.insert(id, c, true)
}

func (r *Registry) insert(id ID, c *thread.Controller, owned bool) error {
	if c == nil {
		return ErrNilController
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.entries.Has(id) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	ctrl := c
	if owned {
		moved, err := c.Transfer()
		if err != nil {
			return fmt.Errorf("adopt %s: %w", id, err)
		}
		ctrl = moved
	}

	r.entries.Put(id, &entry{ctrl: ctrl, owned: owned})
	metrics.RegistryEntryAdded()
	r.log.WithFields(logrus.Fields{"id": uint64(id), "thread": ctrl.Name(), "owned": owned}).Debug("registered")
	return nil
}

// Unregister removes id. An owned controller that still holds a thread is
// kept and ErrDestroyedWhileRunning is returned; otherwise owned controllers
// are closed. Observed controllers are left to their owner.
func (r *Registry) Unregister(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	if e.owned {
		if err := e.ctrl.Close(); err != nil {
			return fmt.Errorf("unregister %s: %w", id, err)
		}
	}
	r.entries.Delete(id)
	metrics.RegistryEntryRemoved()
	r.log.WithField("id", uint64(id)).Debug("unregistered")
	return nil
}

// Start spawns the thread registered under id.
func (r *Registry) Start(id ID) error {
	return r.apply(id, (*thread.Controller).Start)
}

// Interrupt requests cancellation of the thread registered under id.
func (r *Registry) Interrupt(id ID) error {
	return r.apply(id, (*thread.Controller).Interrupt)
}

// Suspend parks the thread registered under id.
func (r *Registry) Suspend(id ID) error {
	return r.apply(id, (*thread.Controller).Suspend)
}

// Resume releases the thread registered under id.
func (r *Registry) Resume(id ID) error {
	return r.apply(id, (*thread.Controller).Resume)
}

// Join blocks until the thread registered under id has exited. The registry
// lock is not held while waiting, and there is no timeout.
func (r *Registry) Join(id ID) error {
	c, err := r.Lookup(id)
	if err != nil {
		return err
	}
	// The entry may be unregistered and its controller closed between the
	// lookup and the join.
	if err := c.Join(); err != nil {
		if errors.Is(err, thread.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Lookup returns the controller registered under id.
func (r *Registry) Lookup(id ID) (*thread.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return e.ctrl, nil
}

// Info returns a snapshot of the controller registered under id.
func (r *Registry) Info(id ID) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupLocked(id)
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Owned: e.owned, Info: e.ctrl.Info()}, nil
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, r.entries.Count())
	r.entries.Iter(func(id ID, _ *entry) bool {
		ids = append(ids, id)
		return false
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered controllers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Count()
}

// Snapshot returns Info for every entry ordered by id.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, r.entries.Count())
	r.entries.Iter(func(id ID, e *entry) bool {
		infos = append(infos, Info{ID: id, Owned: e.owned, Info: e.ctrl.Info()})
		return false
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close tears the registry down. Owned controllers are interrupted, joined
// and closed; observed controllers are only dropped. Close blocks until every
// owned thread has exited. Later calls fail with ErrClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	var owned []*thread.Controller
	r.entries.Iter(func(_ ID, e *entry) bool {
		if e.owned {
			owned = append(owned, e.ctrl)
		}
		metrics.RegistryEntryRemoved()
		return false
	})
	r.entries.Clear()
	r.mu.Unlock()

	var errs []error
	for _, c := range owned {
		if err := shutdown(c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	r.log.WithField("owned", len(owned)).Debug("registry closed")
	return errors.Join(errs...)
}

func shutdown(c *thread.Controller) error {
	if err := c.Interrupt(); err != nil && !errors.Is(err, thread.ErrNotStarted) {
		return err
	}
	if err := c.Join(); err != nil && !errors.Is(err, thread.ErrNotStarted) {
		return err
	}
	return c.Close()
}

func (r *Registry) apply(id ID, op func(*thread.Controller) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookupLocked(id)
	if err != nil {
		return err
	}
	return op(e.ctrl)
}

func (r *Registry) lookupLocked(id ID) (*entry, error) {
	if r.closed {
		return nil, ErrClosed
	}
	e, ok := r.entries.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}
