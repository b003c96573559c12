package models

import "time"

// WorldStatus is the lifecycle state of a game world.
type WorldStatus string

const (
	WorldSetup     WorldStatus = "setup"
	WorldActive    WorldStatus = "active"
	WorldPaused    WorldStatus = "paused"
	WorldCompleted WorldStatus = "completed"
)

// World is one independent game instance with its own virtual clock.
// While a world is running, the engine's in-memory copy of CurrentTime is
// authoritative; the persisted row may lag by up to the persist interval.
type World struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	CurrentTime      time.Time   `json:"current_time"`
	StartDate        time.Time   `json:"start_date"`
	TimeAcceleration float64     `json:"time_acceleration"`
	IsPaused         bool        `json:"is_paused"`
	Status           WorldStatus `json:"status"`
	LastTickAt       *time.Time  `json:"last_tick_at,omitempty"`
}
