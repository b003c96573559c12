package engine

import (
	"context"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

// Store is the persistence surface the engine needs. db.Store implements it;
// tests use an in-memory fake.
type Store interface {
	// World clock state.
	WorldByID(ctx context.Context, id int64) (*models.World, error)
	SaveWorldClock(ctx context.Context, w *models.World) error

	// Flight lifecycle. DueFlights returns scheduled and in-progress flights
	// whose date is at or before the given virtual time's date, joined with
	// their route, endpoints and aircraft cruise speed. stampTransit records
	// the aircraft's transit check at the completion instant; a flight that
	// never flew completes without one.
	DueFlights(ctx context.Context, worldID int64, at time.Time) ([]models.FlightOp, error)
	StartFlight(ctx context.Context, flightID int64) error
	CompleteFlight(ctx context.Context, flightID, aircraftID int64, at time.Time, stampTransit bool) error

	// Maintenance.
	AircraftByWorld(ctx context.Context, worldID int64) ([]models.Aircraft, error)
	ActivePatterns(ctx context.Context, worldID int64) ([]models.MaintenancePattern, error)
	StampChecks(ctx context.Context, aircraftID int64, checks []models.CheckType, at time.Time) error
	CompletePattern(ctx context.Context, patternID int64) error
	GroundAircraft(ctx context.Context, aircraftID int64, check models.CheckType, at time.Time) error
	ReturnAircraftToService(ctx context.Context, aircraftID int64, check models.CheckType, at time.Time) error

	// Billing.
	ActiveMemberships(ctx context.Context, worldID int64) ([]models.Membership, error)
	DeductCredit(ctx context.Context, membershipID int64, at time.Time) (int, error)

	// Refresh scheduling.
	AutoScheduleAircraft(ctx context.Context, worldID int64) ([]models.Aircraft, error)
}
