package native

import "fmt"

const (
	// SignalName identifies the wake-descriptor backend.
	SignalName = "signal"
	// SuspendName identifies the gate-only backend.
	SuspendName = "suspend"
)

func init() {
	Register(SignalName, func() Backend { return NewSignal() })
	Register(SuspendName, func() Backend { return NewSuspend() })
}

// gateOps implements the suspension and join mechanics shared by both
// backends.
type gateOps struct{}

func (gateOps) Suspend(t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	t.gate.close()
	return nil
}

func (gateOps) Resume(t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	t.gate.open()
	return nil
}

func (gateOps) Join(t *Thread) {
	if t == nil {
		return
	}
	<-t.done
}

type signalBackend struct {
	gateOps
	newWaker func() (waker, error)
}

// NewSignal returns the backend that owns a wake descriptor per thread and
// guarantees that Wake unblocks a pending Thread.Wait.
func NewSignal() Backend {
	return &signalBackend{newWaker: newWakeDescriptor}
}

func (b *signalBackend) Name() string { return SignalName }

func (b *signalBackend) ForcedWake() bool { return true }

func (b *signalBackend) Spawn(body func(*Thread)) (*Thread, error) {
	w, err := b.newWaker()
	if err != nil {
		return nil, fmt.Errorf("create wake descriptor: %w", err)
	}
	return spawn(w, body), nil
}

func (b *signalBackend) Wake(t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	return t.waker.signal()
}

func (b *signalBackend) Release(t *Thread) error {
	if t == nil {
		return nil
	}
	return t.waker.close()
}
