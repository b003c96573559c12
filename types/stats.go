package types

import "time"

// EngineStats is a running summary of the time engine, served over the
// control API.
type EngineStats struct {
	StartTime        time.Time `json:"start_time"`
	LastTick         time.Time `json:"last_tick"`
	ActiveWorlds     int       `json:"active_worlds"`
	TotalTicks       int64     `json:"total_ticks"`
	FlightsStarted   int64     `json:"flights_started"`
	FlightsCompleted int64     `json:"flights_completed"`
	ChecksRecorded   int64     `json:"checks_recorded"`
	CreditsDeducted  int64     `json:"credits_deducted"`
	RefreshPasses    int64     `json:"refresh_passes"`
}
