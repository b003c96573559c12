package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

// ActivePatterns returns the world's maintenance patterns still eligible for
// completion detection.
func (s *Store) ActivePatterns(ctx context.Context, worldID int64) ([]models.MaintenancePattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, aircraft_id, check_type, status, day_of_week,
		       start_time, duration_min, scheduled_date
		FROM maintenance_patterns
		WHERE world_id = $1 AND status = 'active'
		ORDER BY id
	`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []models.MaintenancePattern
	for rows.Next() {
		var p models.MaintenancePattern
		var dow sql.NullInt64
		var date sql.NullTime
		err := rows.Scan(&p.ID, &p.WorldID, &p.AircraftID, &p.CheckType, &p.Status,
			&dow, &p.StartTime, &p.DurationMin, &date)
		if err != nil {
			return nil, err
		}
		if dow.Valid {
			d := int(dow.Int64)
			p.DayOfWeek = &d
		}
		if date.Valid {
			t := date.Time
			p.ScheduledDate = &t
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// CompletePattern retires a one-off pattern so it cannot match again.
func (s *Store) CompletePattern(ctx context.Context, patternID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_patterns SET status = 'completed'
		WHERE id = $1 AND status = 'active'
	`, patternID)
	return err
}

// Horizon and slot defaults for auto re-planning.
const (
	replanHorizonDays = 90
	heavyLeadDays     = 7 // schedule a heavy check this many days before expiry
)

var recurringSlots = map[models.CheckType]int{ // duration minutes
	models.CheckDaily:  60,
	models.CheckWeekly: 4 * 60,
	models.CheckA:      10 * 60,
}

var heavyDurations = map[models.CheckType]int{ // duration minutes
	models.CheckC: 14 * 24 * 60,
	models.CheckD: 60 * 24 * 60,
}

// ReplanAutoSchedule is the refresh collaborator: for one aircraft it makes
// sure every auto-flagged tier has future coverage. Recurring tiers get a
// weekly slot if none is active; heavy tiers get a one-off slot placed just
// before their projected expiry when that falls inside the horizon.
func (s *Store) ReplanAutoSchedule(ctx context.Context, aircraftID, worldID int64, now time.Time) error {
	var a *models.Aircraft
	aircraft, err := s.queryAircraft(ctx, `
		SELECT `+aircraftColumns+` FROM aircraft WHERE id = $1
	`, aircraftID)
	if err != nil {
		return fmt.Errorf("loading aircraft %d: %w", aircraftID, err)
	}
	if len(aircraft) == 0 {
		return fmt.Errorf("aircraft %d not found", aircraftID)
	}
	a = &aircraft[0]

	for ct, duration := range recurringSlots {
		if !a.AutoSchedule(ct) {
			continue
		}
		var n int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM maintenance_patterns
			WHERE aircraft_id = $1 AND check_type = $2 AND status = 'active'
			  AND scheduled_date IS NULL
		`, aircraftID, string(ct)).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		// Spread slots across the week by airframe so a fleet doesn't pile
		// into the same night.
		dow := int(aircraftID % 7)
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO maintenance_patterns
				(world_id, aircraft_id, check_type, status, day_of_week, start_time, duration_min)
			VALUES ($1, $2, $3, 'active', $4, '02:00', $5)
		`, worldID, aircraftID, string(ct), dow, duration)
		if err != nil {
			return err
		}
	}

	for ct, duration := range heavyDurations {
		if !a.AutoSchedule(ct) {
			continue
		}
		interval := a.CheckIntervalDays(ct)
		if interval <= 0 {
			continue
		}
		expiry := a.LastCheck(ct).AddDate(0, 0, interval)
		if expiry.After(now.AddDate(0, 0, replanHorizonDays)) {
			continue
		}
		var n int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM maintenance_patterns
			WHERE aircraft_id = $1 AND check_type = $2 AND status = 'active'
			  AND scheduled_date IS NOT NULL
		`, aircraftID, string(ct)).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		slotDate := expiry.AddDate(0, 0, -heavyLeadDays)
		if slotDate.Before(now) {
			slotDate = now
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO maintenance_patterns
				(world_id, aircraft_id, check_type, status, start_time, duration_min, scheduled_date)
			VALUES ($1, $2, $3, 'active', '06:00', $4, $5)
		`, worldID, aircraftID, string(ct), duration, slotDate.UTC())
		if err != nil {
			return err
		}
	}
	return nil
}
