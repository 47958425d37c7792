//go:build !linux && !windows

package native

import "sync/atomic"

// There is no portable gettid outside Linux and Windows; hand out
// process-unique ids instead.
var threadSeq atomic.Int64

func currentThreadID() int64 {
	return threadSeq.Add(1)
}
