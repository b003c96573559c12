package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection and owns the schema.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection and creates the schema.
func Open(host, port, user, password, name string) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}
	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	s := &Store{db: conn}
	if err = s.createTables(); err != nil {
		return nil, fmt.Errorf("error creating tables: %v", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		// Core tables
		`CREATE TABLE IF NOT EXISTS api_keys (
			id SERIAL PRIMARY KEY,
			key VARCHAR(64) NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_used_at TIMESTAMP WITH TIME ZONE,
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS worlds (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			game_time TIMESTAMP WITH TIME ZONE NOT NULL,
			start_date TIMESTAMP WITH TIME ZONE NOT NULL,
			time_acceleration DOUBLE PRECISION NOT NULL DEFAULT 60,
			is_paused BOOLEAN NOT NULL DEFAULT false,
			status VARCHAR(20) NOT NULL DEFAULT 'setup',
			last_tick_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE TABLE IF NOT EXISTS memberships (
			id BIGSERIAL PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id),
			airline_name VARCHAR(255) NOT NULL,
			credits INTEGER NOT NULL DEFAULT 0,
			last_credit_deduction TIMESTAMP WITH TIME ZONE,
			is_active BOOLEAN NOT NULL DEFAULT true
		)`,
		`CREATE TABLE IF NOT EXISTS airports (
			id BIGSERIAL PRIMARY KEY,
			icao VARCHAR(4) NOT NULL,
			name VARCHAR(255) NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routes (
			id BIGSERIAL PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id),
			origin_id BIGINT NOT NULL REFERENCES airports(id),
			destination_id BIGINT NOT NULL REFERENCES airports(id),
			distance_nm DOUBLE PRECISION NOT NULL,
			turnaround_min INTEGER NOT NULL DEFAULT 45,
			tech_stop_airport_id BIGINT REFERENCES airports(id),
			return_distance_nm DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS aircraft (
			id BIGSERIAL PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id),
			membership_id BIGINT NOT NULL REFERENCES memberships(id),
			registration VARCHAR(16) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			cruise_speed_kts DOUBLE PRECISION NOT NULL DEFAULT 450,
			last_daily_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_weekly_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_a_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_c_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			last_d_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			a_check_interval_days INTEGER NOT NULL DEFAULT 90,
			c_check_interval_days INTEGER NOT NULL DEFAULT 730,
			d_check_interval_days INTEGER NOT NULL DEFAULT 2920,
			auto_schedule_daily BOOLEAN NOT NULL DEFAULT false,
			auto_schedule_weekly BOOLEAN NOT NULL DEFAULT false,
			auto_schedule_a BOOLEAN NOT NULL DEFAULT false,
			auto_schedule_c BOOLEAN NOT NULL DEFAULT false,
			auto_schedule_d BOOLEAN NOT NULL DEFAULT false,
			grounded_for VARCHAR(10),
			maintenance_started_at TIMESTAMP WITH TIME ZONE,
			last_transit_check TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_flights (
			id BIGSERIAL PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id),
			membership_id BIGINT NOT NULL REFERENCES memberships(id),
			route_id BIGINT NOT NULL REFERENCES routes(id),
			aircraft_id BIGINT NOT NULL REFERENCES aircraft(id),
			status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
			scheduled_date DATE NOT NULL,
			departure_time VARCHAR(5) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS maintenance_patterns (
			id BIGSERIAL PRIMARY KEY,
			world_id BIGINT NOT NULL REFERENCES worlds(id),
			aircraft_id BIGINT NOT NULL REFERENCES aircraft(id),
			check_type VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			day_of_week INTEGER,
			start_time VARCHAR(5) NOT NULL DEFAULT '02:00',
			duration_min INTEGER NOT NULL,
			scheduled_date DATE
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_worlds_status ON worlds(status)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_world ON memberships(world_id)`,
		`CREATE INDEX IF NOT EXISTS idx_aircraft_world ON aircraft(world_id)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_world_status ON scheduled_flights(world_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_date ON scheduled_flights(scheduled_date)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_world_status ON maintenance_patterns(world_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_aircraft ON maintenance_patterns(aircraft_id)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
