package models

import "time"

// PatternStatus is the lifecycle state of a maintenance pattern.
type PatternStatus string

const (
	PatternActive    PatternStatus = "active"
	PatternCompleted PatternStatus = "completed"
	PatternInactive  PatternStatus = "inactive"
)

// MaintenancePattern is either a weekly-recurring slot (DayOfWeek+StartTime)
// or a one-off dated slot (ScheduledDate). DurationMin may span several
// calendar days for the heavy tiers.
type MaintenancePattern struct {
	ID            int64         `json:"id"`
	WorldID       int64         `json:"world_id"`
	AircraftID    int64         `json:"aircraft_id"`
	CheckType     CheckType     `json:"check_type"`
	Status        PatternStatus `json:"status"`
	DayOfWeek     *int          `json:"day_of_week,omitempty"` // 0=Sunday .. 6=Saturday
	StartTime     string        `json:"start_time"`            // "15:04"
	DurationMin   int           `json:"duration_min"`
	ScheduledDate *time.Time    `json:"scheduled_date,omitempty"`
}

// IsOneOff reports whether the pattern is a dated slot rather than a
// weekly-recurring one.
func (p MaintenancePattern) IsOneOff() bool {
	return p.ScheduledDate != nil
}

// SlotEnd returns the end instant of the most recent slot occurrence at or
// before now, and false if no occurrence has finished yet.
func (p MaintenancePattern) SlotEnd(now time.Time) (time.Time, bool) {
	start, ok := p.slotStart(now)
	if !ok {
		return time.Time{}, false
	}
	end := start.Add(time.Duration(p.DurationMin) * time.Minute)
	if end.After(now) {
		return time.Time{}, false
	}
	return end, true
}

func (p MaintenancePattern) slotStart(now time.Time) (time.Time, bool) {
	t, err := time.Parse("15:04", p.StartTime)
	if err != nil {
		t = time.Time{}
	}
	if p.ScheduledDate != nil {
		d := *p.ScheduledDate
		return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), true
	}
	if p.DayOfWeek == nil {
		return time.Time{}, false
	}
	// Walk back from today to the most recent occurrence of the weekday.
	day := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	offset := (int(day.Weekday()) - *p.DayOfWeek + 7) % 7
	start := day.AddDate(0, 0, -offset)
	if start.After(now) {
		start = start.AddDate(0, 0, -7)
	}
	return start, true
}
