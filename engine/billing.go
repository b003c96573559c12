package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/events"
	"github.com/fcooper94/airline-manager-live-ops/types"
)

const (
	// billingWindow is the slice of virtual time after the weekly boundary
	// in which the deduction pass triggers.
	billingWindow = 10 * time.Minute

	// adminCreditThreshold: balances below this after a deduction raise a
	// credit alert for the administration collaborator.
	adminCreditThreshold = 0
)

// processBilling deducts one credit per active membership per elapsed
// virtual calendar week. The pass triggers inside a narrow window after the
// week boundary, or when the boundary was jumped since the last evaluated
// pass. Crossing is measured against the loop's own billing reference, not
// the triggering tick's previous time: under throttling whole ticks fall
// between passes, and at coarse acceleration one of those could carry the
// boundary. Idempotence is keyed by calendar date: a membership already
// charged at or after the current week's start is never charged again that
// week.
func (e *Engine) processBilling(ctx context.Context, lp *worldLoop, prev, now time.Time) error {
	lp.mu.Lock()
	ref := lp.lastBillingAt
	if ref.IsZero() {
		ref = prev
	}
	lp.lastBillingAt = now
	worldID := lp.world.ID
	lp.mu.Unlock()

	weekStart := billingWeekStart(now)
	inWindow := !now.Before(weekStart) && now.Sub(weekStart) < billingWindow
	crossed := ref.Before(weekStart) && !now.Before(weekStart)
	if !inWindow && !crossed {
		return nil
	}

	members, err := e.store.ActiveMemberships(ctx, worldID)
	if err != nil {
		return fmt.Errorf("loading memberships: %w", err)
	}

	for _, m := range members {
		if m.LastCreditDeduction != nil && !m.LastCreditDeduction.Before(weekStart) {
			continue
		}
		remaining, err := e.store.DeductCredit(ctx, m.ID, now)
		if err != nil {
			log.Printf("world %d: deducting credit for membership %d: %v", worldID, m.ID, err)
			continue
		}
		e.bumpStats(func(s *types.EngineStats) { s.CreditsDeducted++ })

		if remaining < adminCreditThreshold {
			log.Printf("world %d: membership %d (%s) below credit threshold: %d",
				worldID, m.ID, m.AirlineName, remaining)
			e.pub.Publish(events.Event{
				Type:    events.EventCreditAlert,
				WorldID: worldID,
				Data: events.CreditAlertData{
					WorldID:      worldID,
					MembershipID: m.ID,
					AirlineName:  m.AirlineName,
					Credits:      remaining,
				},
			})
		}
	}
	return nil
}

// billingWeekStart returns Monday 00:00 UTC of the virtual week containing t.
func billingWeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) - int(time.Monday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}
