package engine

import (
	"sync/atomic"
	"time"
)

// procGuard serializes one processor for one world: a compare-and-swap busy
// flag plus a real-time throttle. Acquisition fails while a previous pass is
// still running, or before the throttle interval since the last acquired
// pass has elapsed, so at most one pass per (world, processor) runs at once.
type procGuard struct {
	busy   atomic.Bool
	nextAt atomic.Int64 // unix nanos of the next eligible pass
}

func (g *procGuard) tryAcquire(now time.Time, throttle time.Duration) bool {
	if now.UnixNano() < g.nextAt.Load() {
		return false
	}
	if !g.busy.CompareAndSwap(false, true) {
		return false
	}
	g.nextAt.Store(now.Add(throttle).UnixNano())
	return true
}

func (g *procGuard) release() {
	g.busy.Store(false)
}
