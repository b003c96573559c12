package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

const aircraftColumns = `
	id, world_id, membership_id, registration, status, cruise_speed_kts,
	last_daily_check, last_weekly_check, last_a_check, last_c_check, last_d_check,
	a_check_interval_days, c_check_interval_days, d_check_interval_days,
	auto_schedule_daily, auto_schedule_weekly, auto_schedule_a, auto_schedule_c, auto_schedule_d,
	grounded_for, maintenance_started_at, last_transit_check`

func scanAircraft(rows *sql.Rows) (models.Aircraft, error) {
	var a models.Aircraft
	var groundedFor sql.NullString
	var startedAt sql.NullTime
	err := rows.Scan(
		&a.ID, &a.WorldID, &a.MembershipID, &a.Registration, &a.Status, &a.CruiseSpeedKts,
		&a.LastDailyCheck, &a.LastWeeklyCheck, &a.LastACheck, &a.LastCCheck, &a.LastDCheck,
		&a.ACheckIntervalDays, &a.CCheckIntervalDays, &a.DCheckIntervalDays,
		&a.AutoScheduleDaily, &a.AutoScheduleWeekly, &a.AutoScheduleA, &a.AutoScheduleC, &a.AutoScheduleD,
		&groundedFor, &startedAt, &a.LastTransitCheck,
	)
	if err != nil {
		return a, err
	}
	if groundedFor.Valid {
		ct := models.CheckType(groundedFor.String)
		a.GroundedFor = &ct
	}
	if startedAt.Valid {
		t := startedAt.Time
		a.MaintenanceStartedAt = &t
	}
	return a, nil
}

func (s *Store) queryAircraft(ctx context.Context, query string, args ...interface{}) ([]models.Aircraft, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aircraft []models.Aircraft
	for rows.Next() {
		a, err := scanAircraft(rows)
		if err != nil {
			return nil, err
		}
		aircraft = append(aircraft, a)
	}
	return aircraft, rows.Err()
}

// AircraftByWorld returns every airframe in a world that is still part of
// the operation (sold aircraft are gone for good).
func (s *Store) AircraftByWorld(ctx context.Context, worldID int64) ([]models.Aircraft, error) {
	return s.queryAircraft(ctx, `
		SELECT `+aircraftColumns+`
		FROM aircraft WHERE world_id = $1 AND status != 'sold'
		ORDER BY id
	`, worldID)
}

// AutoScheduleAircraft returns the world's aircraft with at least one
// auto-schedule flag set, for the weekly refresh pass.
func (s *Store) AutoScheduleAircraft(ctx context.Context, worldID int64) ([]models.Aircraft, error) {
	return s.queryAircraft(ctx, `
		SELECT `+aircraftColumns+`
		FROM aircraft
		WHERE world_id = $1 AND status != 'sold'
		  AND (auto_schedule_daily OR auto_schedule_weekly OR auto_schedule_a
		       OR auto_schedule_c OR auto_schedule_d)
		ORDER BY id
	`, worldID)
}

var checkColumns = map[models.CheckType]string{
	models.CheckDaily:  "last_daily_check",
	models.CheckWeekly: "last_weekly_check",
	models.CheckA:      "last_a_check",
	models.CheckC:      "last_c_check",
	models.CheckD:      "last_d_check",
}

// StampChecks advances the given check clocks to at. GREATEST keeps every
// clock monotonic, so re-stamping an older instant is a no-op.
func (s *Store) StampChecks(ctx context.Context, aircraftID int64, checks []models.CheckType, at time.Time) error {
	if len(checks) == 0 {
		return nil
	}
	query := "UPDATE aircraft SET "
	for i, ct := range checks {
		col, ok := checkColumns[ct]
		if !ok {
			return fmt.Errorf("unknown check type %q", ct)
		}
		if i > 0 {
			query += ", "
		}
		query += col + " = GREATEST(" + col + ", $2)"
	}
	query += " WHERE id = $1"

	_, err := s.db.ExecContext(ctx, query, aircraftID, at.UTC())
	return err
}

// GroundAircraft takes an active airframe out of service for a check. The
// status predicate makes repeated grounding attempts no-ops.
func (s *Store) GroundAircraft(ctx context.Context, aircraftID int64, check models.CheckType, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE aircraft
		SET status = 'maintenance', grounded_for = $2, maintenance_started_at = $3
		WHERE id = $1 AND status = 'active'
	`, aircraftID, string(check), at.UTC())
	return err
}

// ReturnAircraftToService reactivates a grounded airframe and stamps the
// completed check (with its cascade) at the completion instant.
func (s *Store) ReturnAircraftToService(ctx context.Context, aircraftID int64, check models.CheckType, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE aircraft
		SET status = 'active', grounded_for = NULL, maintenance_started_at = NULL
		WHERE id = $1 AND status = 'maintenance'
	`, aircraftID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already back in service.
		return nil
	}

	query := "UPDATE aircraft SET "
	for i, ct := range check.Cascade() {
		col := checkColumns[ct]
		if i > 0 {
			query += ", "
		}
		query += col + " = GREATEST(" + col + ", $2)"
	}
	query += " WHERE id = $1"
	if _, err := tx.ExecContext(ctx, query, aircraftID, at.UTC()); err != nil {
		return err
	}
	return tx.Commit()
}
