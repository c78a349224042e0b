// Package cancel provides the process-level cancellation token checked at
// file boundaries in scan/parse/detect and at BFS level boundaries.
package cancel

import "sync/atomic"

// Token is a shared atomic cancellation flag. The zero value is ready to
// use and not cancelled.
type Token struct {
	flag atomic.Bool
}

// Cancel sets the flag. Workers drain to a consistent boundary and return
// partial results tagged as cancelled.
func (t *Token) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	if t == nil {
		return false
	}
	return t.flag.Load()
}

// Reset clears the flag between scans.
func (t *Token) Reset() {
	t.flag.Store(false)
}
