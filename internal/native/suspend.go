package native

type suspendBackend struct {
	gateOps
}

// NewSuspend returns the backend without a wake descriptor. Wake never
// pauses the thread; it leaves the gate open so the body can reach its next
// cancellation check, and a pending Thread.Wait runs to completion.
func NewSuspend() Backend {
	return &suspendBackend{}
}

func (b *suspendBackend) Name() string { return SuspendName }

func (b *suspendBackend) ForcedWake() bool { return false }

func (b *suspendBackend) Spawn(body func(*Thread)) (*Thread, error) {
	return spawn(sleepWaker{}, body), nil
}

func (b *suspendBackend) Wake(t *Thread) error {
	if t == nil {
		return ErrNilThread
	}
	t.gate.open()
	return nil
}

func (b *suspendBackend) Release(*Thread) error { return nil }
