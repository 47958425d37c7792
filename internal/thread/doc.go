// Package thread implements the controller that owns one native worker
// thread: start, cooperative interrupt, suspend, resume, join and the
// post-interrupt cleanup hook.
//
// Interruption is a cooperative cancellation request. Interrupt sets a
// monotonic flag, releases a suspended thread and asks the backend for a
// forced wake. A Worker is expected to poll Thread.Interrupted, or call
// Thread.Checkpoint / Thread.Sleep, and return promptly. Forced wake is
// best-effort: the signal backend unblocks a pending Thread.Sleep, the
// suspend backend does not, so a Worker must never rely on it alone.
//
// OnInterrupt is not a signal handler. It runs on the worker thread after
// Run returns, once, and only if the flag is set at that moment.
//
// Join has no timeout and blocks until Run (and OnInterrupt) return. Callers
// that must bound a wait can select on Done alongside their own context;
// the thread itself is never abandoned.
//
// A controller must be interrupted and joined before Close; closing a
// controller that still holds a live thread fails with
// ErrDestroyedWhileRunning instead of cancelling the thread.
package thread
