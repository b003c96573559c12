package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
	"github.com/fcooper94/airline-manager-live-ops/types"
)

// Fixed shop time per tier once an aircraft is grounded for a check.
const (
	cCheckDurationDays = 14
	dCheckDurationDays = 60
	aCheckDurationDays = 3
)

// groundingHorizon is how close to C/D expiry an active aircraft is pulled
// out of service, rather than waiting for literal expiry.
const groundingHorizon = 24 * time.Hour

func checkDuration(ct models.CheckType) time.Duration {
	switch ct {
	case models.CheckD:
		return dCheckDurationDays * 24 * time.Hour
	case models.CheckC:
		return cCheckDurationDays * 24 * time.Hour
	case models.CheckA:
		return aCheckDurationDays * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// processMaintenance records completed maintenance slots with the cascade
// rule (a heavier check satisfies every lighter tier at the same instant),
// grounds active aircraft approaching C/D expiry, and returns grounded
// aircraft to service once their shop time has elapsed.
func (e *Engine) processMaintenance(ctx context.Context, lp *worldLoop, _, now time.Time) error {
	worldID := lp.id()

	aircraft, err := e.store.AircraftByWorld(ctx, worldID)
	if err != nil {
		return fmt.Errorf("loading aircraft: %w", err)
	}
	byID := make(map[int64]*models.Aircraft, len(aircraft))
	for i := range aircraft {
		byID[aircraft[i].ID] = &aircraft[i]
	}

	patterns, err := e.store.ActivePatterns(ctx, worldID)
	if err != nil {
		return fmt.Errorf("loading maintenance patterns: %w", err)
	}

	for _, p := range patterns {
		if !p.CheckType.Valid() {
			e.debugf("world %d: pattern %d has unknown check type %q, skipped", worldID, p.ID, p.CheckType)
			continue
		}
		ac := byID[p.AircraftID]
		if ac == nil {
			continue
		}
		end, done := p.SlotEnd(now)
		if !done {
			continue
		}
		// Already recorded for this occurrence: the tier's clock is at or
		// past the slot end. Keeps re-runs within the same day idempotent.
		if !ac.LastCheck(p.CheckType).Before(end) {
			continue
		}

		checks := p.CheckType.Cascade()
		if err := e.store.StampChecks(ctx, ac.ID, checks, end); err != nil {
			log.Printf("world %d: stamping %s check for aircraft %d: %v", worldID, p.CheckType, ac.ID, err)
			continue
		}
		for _, ct := range checks {
			if end.After(ac.LastCheck(ct)) {
				ac.SetLastCheck(ct, end)
			}
		}
		e.bumpStats(func(s *types.EngineStats) { s.ChecksRecorded += int64(len(checks)) })

		// One-off heavy checks must not match again on a later pass.
		if p.IsOneOff() && (p.CheckType == models.CheckC || p.CheckType == models.CheckD) {
			if err := e.store.CompletePattern(ctx, p.ID); err != nil {
				log.Printf("world %d: completing pattern %d: %v", worldID, p.ID, err)
			}
		}
	}

	for i := range aircraft {
		ac := &aircraft[i]
		switch ac.Status {
		case models.AircraftActive:
			e.groundIfExpiring(ctx, worldID, ac, now)
		case models.AircraftMaintenance:
			e.returnIfDone(ctx, worldID, ac, now)
		}
	}
	return nil
}

// groundIfExpiring pre-emptively moves an active aircraft to maintenance
// when a C or D check expires within the grounding horizon. The heavier
// tier is evaluated first so one grounding covers both.
func (e *Engine) groundIfExpiring(ctx context.Context, worldID int64, ac *models.Aircraft, now time.Time) {
	for _, ct := range []models.CheckType{models.CheckD, models.CheckC} {
		interval := ac.CheckIntervalDays(ct)
		if interval <= 0 {
			continue
		}
		expiry := ac.LastCheck(ct).AddDate(0, 0, interval)
		if expiry.Sub(now) > groundingHorizon {
			continue
		}
		if err := e.store.GroundAircraft(ctx, ac.ID, ct, now); err != nil {
			log.Printf("world %d: grounding aircraft %d for %s check: %v", worldID, ac.ID, ct, err)
			return
		}
		log.Printf("world %d: aircraft %d grounded for %s check (expiry %s)",
			worldID, ac.ID, ct, expiry.Format(time.RFC3339))
		return
	}
}

// returnIfDone puts a grounded aircraft back in service once its shop time
// has elapsed, advancing the tier's clock to the completion instant so the
// next interval starts there.
func (e *Engine) returnIfDone(ctx context.Context, worldID int64, ac *models.Aircraft, now time.Time) {
	if ac.GroundedFor == nil || ac.MaintenanceStartedAt == nil {
		return
	}
	completion := ac.MaintenanceStartedAt.Add(checkDuration(*ac.GroundedFor))
	if now.Before(completion) {
		return
	}
	if err := e.store.ReturnAircraftToService(ctx, ac.ID, *ac.GroundedFor, completion); err != nil {
		log.Printf("world %d: returning aircraft %d to service: %v", worldID, ac.ID, err)
		return
	}
	e.bumpStats(func(s *types.EngineStats) { s.ChecksRecorded += int64(len(ac.GroundedFor.Cascade())) })
	log.Printf("world %d: aircraft %d returned to service after %s check", worldID, ac.ID, *ac.GroundedFor)
}
