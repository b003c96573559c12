package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/flightcalc"
	"github.com/fcooper94/airline-manager-live-ops/models"
	"github.com/fcooper94/airline-manager-live-ops/types"
)

// processFlights walks the world's due flights and advances each through
// scheduled -> in_progress -> completed. A scheduled flight whose date has
// fully passed is completed directly: a flight that never started cannot be
// in progress. Completing a flight also stamps the aircraft's transit check,
// since flying an in-service round trip satisfies a transit inspection.
func (e *Engine) processFlights(ctx context.Context, lp *worldLoop, _, now time.Time) error {
	worldID := lp.id()
	ops, err := e.store.DueFlights(ctx, worldID, now)
	if err != nil {
		return fmt.Errorf("loading due flights: %w", err)
	}

	today := dateOf(now)
	for _, op := range ops {
		f := op.Flight
		switch f.Status {
		case models.FlightScheduled:
			flightDate := dateOf(f.ScheduledDate)
			if flightDate.Before(today) {
				// Missed entirely while the world was ahead of it; it never
				// flew, so no transit check is earned.
				if err := e.store.CompleteFlight(ctx, f.ID, f.AircraftID, now, false); err != nil {
					log.Printf("world %d: completing missed flight %d: %v", worldID, f.ID, err)
					continue
				}
				e.bumpStats(func(s *types.EngineStats) { s.FlightsCompleted++ })
				e.debugf("world %d: flight %d missed its date, completed directly", worldID, f.ID)
			} else if flightDate.Equal(today) && !now.Before(f.DepartureAt()) {
				if err := e.store.StartFlight(ctx, f.ID); err != nil {
					log.Printf("world %d: starting flight %d: %v", worldID, f.ID, err)
					continue
				}
				e.bumpStats(func(s *types.EngineStats) { s.FlightsStarted++ })
			}

		case models.FlightInProgress:
			dep := f.DepartureAt()
			expected := dep.Add(e.roundTripFor(op))
			if now.Before(expected) {
				continue
			}
			if err := e.store.CompleteFlight(ctx, f.ID, f.AircraftID, expected, true); err != nil {
				log.Printf("world %d: completing flight %d: %v", worldID, f.ID, err)
				continue
			}
			e.bumpStats(func(s *types.EngineStats) { s.FlightsCompleted++ })
		}
	}
	return nil
}

// roundTripFor builds the calculator input from a joined flight row.
func (e *Engine) roundTripFor(op models.FlightOp) time.Duration {
	p := flightcalc.RoundTripParams{
		DistanceNM:    op.Route.DistanceNM,
		CruiseKts:     op.CruiseSpeedKts,
		TurnaroundMin: op.Route.TurnaroundMin,
		WindKts:       e.cfg.WindKts,
		Origin:        flightcalc.Point{Lat: op.Origin.Latitude, Lon: op.Origin.Longitude},
		Destination:   flightcalc.Point{Lat: op.Destination.Latitude, Lon: op.Destination.Longitude},
	}
	if op.Route.ReturnDistanceNM != nil {
		p.ReturnDistanceNM = *op.Route.ReturnDistanceNM
	}
	if op.TechStop != nil {
		p.TechStop = &flightcalc.Point{Lat: op.TechStop.Latitude, Lon: op.TechStop.Longitude}
	}
	return flightcalc.RoundTrip(p)
}

// dateOf truncates a virtual instant to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
