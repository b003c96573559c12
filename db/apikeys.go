package db

import (
	"context"
	"database/sql"
	"time"
)

// APIKey is one access credential for the control API.
type APIKey struct {
	ID          int       `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at,omitempty"`
	IsActive    bool      `json:"is_active"`
}

// CreateAPIKey stores a freshly generated key.
func (s *Store) CreateAPIKey(ctx context.Context, key, description string) (*APIKey, error) {
	var k APIKey
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (key, description)
		VALUES ($1, $2)
		RETURNING id, key, description, created_at, is_active
	`, key, description).Scan(&k.ID, &k.Key, &k.Description, &k.CreatedAt, &k.IsActive)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAPIKeys returns every key, active or not.
func (s *Store) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, description, created_at, last_used_at, is_active
		FROM api_keys ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Key, &k.Description, &k.CreatedAt, &lastUsed, &k.IsActive); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeactivateAPIKey disables a key without deleting its audit trail.
func (s *Store) DeactivateAPIKey(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET is_active = false WHERE id = $1
	`, id)
	return err
}

// ValidateAPIKey checks a presented key and records its use.
func (s *Store) ValidateAPIKey(ctx context.Context, key string) bool {
	var id int
	err := s.db.QueryRowContext(ctx, `
		UPDATE api_keys SET last_used_at = NOW()
		WHERE key = $1 AND is_active
		RETURNING id
	`, key).Scan(&id)
	return err == nil
}
