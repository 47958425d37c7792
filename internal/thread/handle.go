package thread

import "github.com/Paintersrp/intthread/internal/native"

// handle holds at most one live native thread. The zero value is empty.
// Ownership leaves a handle only through take, which empties it.
type handle struct {
	t *native.Thread
}

func (h *handle) peek() *native.Thread {
	return h.t
}

func (h *handle) empty() bool {
	return h.t == nil
}

func (h *handle) set(t *native.Thread) {
	h.t = t
}

func (h *handle) take() *native.Thread {
	t := h.t
	h.t = nil
	return t
}
