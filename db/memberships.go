package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/models"
)

// ActiveMemberships returns the billable tenants of a world.
func (s *Store) ActiveMemberships(ctx context.Context, worldID int64) ([]models.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, world_id, airline_name, credits, last_credit_deduction, is_active
		FROM memberships
		WHERE world_id = $1 AND is_active
		ORDER BY id
	`, worldID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		var last sql.NullTime
		if err := rows.Scan(&m.ID, &m.WorldID, &m.AirlineName, &m.Credits, &last, &m.IsActive); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			m.LastCreditDeduction = &t
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// DeductCredit takes one credit from a membership, records the virtual
// deduction time and returns the remaining balance.
func (s *Store) DeductCredit(ctx context.Context, membershipID int64, at time.Time) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		UPDATE memberships
		SET credits = credits - 1, last_credit_deduction = $2
		WHERE id = $1 AND is_active
		RETURNING credits
	`, membershipID, at.UTC()).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("membership %d is not active", membershipID)
	}
	return remaining, err
}
