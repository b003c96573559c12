package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

// DueFlights returns scheduled and in-progress flights dated at or before
// the given virtual time, joined with route, endpoints and cruise speed.
func (s *Store) DueFlights(ctx context.Context, worldID int64, at time.Time) ([]models.FlightOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.world_id, f.membership_id, f.route_id, f.aircraft_id,
		       f.status, f.scheduled_date, f.departure_time,
		       r.id, r.world_id, r.origin_id, r.destination_id, r.distance_nm,
		       r.turnaround_min, r.tech_stop_airport_id, r.return_distance_nm,
		       o.id, o.icao, o.name, o.latitude, o.longitude,
		       d.id, d.icao, d.name, d.latitude, d.longitude,
		       t.id, t.icao, t.name, t.latitude, t.longitude,
		       a.cruise_speed_kts
		FROM scheduled_flights f
		JOIN routes r ON r.id = f.route_id
		JOIN airports o ON o.id = r.origin_id
		JOIN airports d ON d.id = r.destination_id
		LEFT JOIN airports t ON t.id = r.tech_stop_airport_id
		JOIN aircraft a ON a.id = f.aircraft_id
		WHERE f.world_id = $1
		  AND f.status IN ('scheduled', 'in_progress')
		  AND f.scheduled_date <= $2
		ORDER BY f.scheduled_date, f.departure_time
	`, worldID, at.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []models.FlightOp
	for rows.Next() {
		var op models.FlightOp
		var techStopID sql.NullInt64
		var returnDist sql.NullFloat64
		var tID sql.NullInt64
		var tICAO, tName sql.NullString
		var tLat, tLon sql.NullFloat64

		err := rows.Scan(
			&op.Flight.ID, &op.Flight.WorldID, &op.Flight.MembershipID,
			&op.Flight.RouteID, &op.Flight.AircraftID,
			&op.Flight.Status, &op.Flight.ScheduledDate, &op.Flight.DepartureTime,
			&op.Route.ID, &op.Route.WorldID, &op.Route.OriginID, &op.Route.DestinationID,
			&op.Route.DistanceNM, &op.Route.TurnaroundMin, &techStopID, &returnDist,
			&op.Origin.ID, &op.Origin.ICAO, &op.Origin.Name, &op.Origin.Latitude, &op.Origin.Longitude,
			&op.Destination.ID, &op.Destination.ICAO, &op.Destination.Name,
			&op.Destination.Latitude, &op.Destination.Longitude,
			&tID, &tICAO, &tName, &tLat, &tLon,
			&op.CruiseSpeedKts,
		)
		if err != nil {
			return nil, err
		}
		if techStopID.Valid {
			id := techStopID.Int64
			op.Route.TechStopAirportID = &id
		}
		if returnDist.Valid {
			d := returnDist.Float64
			op.Route.ReturnDistanceNM = &d
		}
		if tID.Valid {
			op.TechStop = &models.Airport{
				ID:        tID.Int64,
				ICAO:      tICAO.String,
				Name:      tName.String,
				Latitude:  tLat.Float64,
				Longitude: tLon.Float64,
			}
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// StartFlight moves a flight to in_progress. The status predicate makes the
// transition one-way: a completed flight can never regress.
func (s *Store) StartFlight(ctx context.Context, flightID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_flights SET status = 'in_progress'
		WHERE id = $1 AND status = 'scheduled'
	`, flightID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("flight %d is not in scheduled state", flightID)
	}
	return nil
}

// CompleteFlight marks a flight completed and, when stampTransit is set,
// records the aircraft's transit check at the completion instant, in one
// transaction. A missed flight that never flew passes false: only an
// actually-flown round trip counts as a transit inspection.
func (s *Store) CompleteFlight(ctx context.Context, flightID, aircraftID int64, at time.Time, stampTransit bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE scheduled_flights SET status = 'completed'
		WHERE id = $1 AND status IN ('scheduled', 'in_progress')
	`, flightID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already completed or cancelled; nothing to stamp.
		return nil
	}

	if stampTransit {
		_, err = tx.ExecContext(ctx, `
			UPDATE aircraft SET last_transit_check = GREATEST(last_transit_check, $2)
			WHERE id = $1
		`, aircraftID, at.UTC())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
