package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/types"
)

const refreshMaxAttempts = 3

// Error fragments that indicate a transient connectivity problem worth
// retrying; anything else fails fast for that one aircraft.
var transientErrPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"too many connections",
	"the database system is starting up",
}

// processRefresh re-plans auto-scheduled maintenance slots once per virtual
// calendar week. Aircraft are handled sequentially with an inter-item delay
// to bound load on the persistence layer.
func (e *Engine) processRefresh(ctx context.Context, lp *worldLoop, _, now time.Time) error {
	week := weekIndex(now)

	lp.mu.Lock()
	if lp.lastRefreshWeek == week {
		lp.mu.Unlock()
		return nil
	}
	// Claim the week up front: at most one pass per world per virtual week,
	// even if individual aircraft fail.
	lp.lastRefreshWeek = week
	worldID := lp.world.ID
	lp.mu.Unlock()

	if e.refresh == nil {
		return nil
	}

	aircraft, err := e.store.AutoScheduleAircraft(ctx, worldID)
	if err != nil {
		return fmt.Errorf("loading auto-schedule aircraft: %w", err)
	}

	for i, ac := range aircraft {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.RefreshItemDelay):
			}
		}
		e.refreshOne(ctx, ac.ID, worldID, now)
	}

	e.bumpStats(func(s *types.EngineStats) { s.RefreshPasses++ })
	e.debugf("world %d: maintenance refresh pass for week %d covered %d aircraft", worldID, week, len(aircraft))
	return nil
}

// refreshOne retries transient failures a bounded number of times with a
// fixed delay; any other error skips this aircraft only.
func (e *Engine) refreshOne(ctx context.Context, aircraftID, worldID int64, now time.Time) {
	for attempt := 1; attempt <= refreshMaxAttempts; attempt++ {
		err := e.refresh(ctx, aircraftID, worldID, now)
		if err == nil {
			return
		}
		if !isTransientErr(err) {
			log.Printf("world %d: refresh for aircraft %d failed, skipping: %v", worldID, aircraftID, err)
			return
		}
		if attempt == refreshMaxAttempts {
			log.Printf("world %d: refresh for aircraft %d giving up after %d attempts: %v",
				worldID, aircraftID, attempt, err)
			return
		}
		log.Printf("world %d: refresh for aircraft %d attempt %d: %v (retrying)",
			worldID, aircraftID, attempt, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.RefreshRetryDelay):
		}
	}
}

func isTransientErr(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range transientErrPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// weekIndex maps a virtual instant to an integer calendar-week index.
func weekIndex(t time.Time) int64 {
	return t.UTC().Unix() / (7 * 24 * 3600)
}
