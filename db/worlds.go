package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

// ErrNotFound marks a lookup for a row that does not exist.
var ErrNotFound = errors.New("not found")

// WorldByID loads one world row.
func (s *Store) WorldByID(ctx context.Context, id int64) (*models.World, error) {
	var w models.World
	var lastTick sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, game_time, start_date, time_acceleration, is_paused, status, last_tick_at
		FROM worlds WHERE id = $1
	`, id).Scan(&w.ID, &w.Name, &w.CurrentTime, &w.StartDate, &w.TimeAcceleration,
		&w.IsPaused, &w.Status, &lastTick)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("world %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if lastTick.Valid {
		t := lastTick.Time
		w.LastTickAt = &t
	}
	return &w, nil
}

// SaveWorldClock writes the clock-owned fields of a world: game time, last
// tick, acceleration, pause flag and status.
func (s *Store) SaveWorldClock(ctx context.Context, w *models.World) error {
	var lastTick sql.NullTime
	if w.LastTickAt != nil {
		lastTick = sql.NullTime{Time: *w.LastTickAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE worlds
		SET game_time = $2, last_tick_at = $3, time_acceleration = $4, is_paused = $5, status = $6
		WHERE id = $1
	`, w.ID, w.CurrentTime, lastTick, w.TimeAcceleration, w.IsPaused, w.Status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("world %d not found", w.ID)
	}
	return nil
}

// ActiveWorldIDs returns the worlds that should be running, used to resume
// their clocks after a process restart.
func (s *Store) ActiveWorldIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM worlds WHERE status IN ('active', 'paused') ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
