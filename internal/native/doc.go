// Package native provides the platform adapters that spawn and control the
// dedicated OS threads behind a thread controller.
//
// Every spawned body runs on a goroutine locked to its own OS thread. The
// lock is never released, so the runtime tears the OS thread down once the
// body returns and a thread id is never shared with unrelated goroutines.
//
// Two backends are provided and differ only in how they wake a thread:
//
//   - signal owns a wake descriptor per thread (an eventfd on Linux, a
//     self-pipe on the BSDs and macOS, a manual-reset event object on
//     Windows). Wake makes any pending Thread.Wait return immediately, so a
//     body blocked in Wait is guaranteed to be unblocked.
//   - suspend owns no descriptor. Wake only releases the suspension gate and
//     a pending Thread.Wait runs to completion. Only visibility of the
//     caller's cancellation flag is guaranteed.
//
// Go cannot stop an OS thread that the runtime may need for garbage
// collection, so suspension is cooperative on both backends: Suspend closes
// a gate and the body parks at its next Pause call.
package native
