package models

import "time"

// AircraftStatus is the service state of an airframe.
type AircraftStatus string

const (
	AircraftActive      AircraftStatus = "active"
	AircraftMaintenance AircraftStatus = "maintenance"
	AircraftStorage     AircraftStatus = "storage"
	AircraftSold        AircraftStatus = "sold"
	AircraftListedSale  AircraftStatus = "listed_sale"
	AircraftListedLease AircraftStatus = "listed_lease"
	AircraftLeasedOut   AircraftStatus = "leased_out"
)

// CheckType is a maintenance inspection tier, lightest to heaviest.
type CheckType string

const (
	CheckDaily  CheckType = "daily"
	CheckWeekly CheckType = "weekly"
	CheckA      CheckType = "A"
	CheckC      CheckType = "C"
	CheckD      CheckType = "D"
)

// Valid reports whether ct names a known inspection tier.
func (ct CheckType) Valid() bool {
	switch ct {
	case CheckDaily, CheckWeekly, CheckA, CheckC, CheckD:
		return true
	}
	return false
}

// Cascade returns ct plus every lighter tier it implicitly satisfies.
// A heavier inspection subsumes all lighter ones performed at the same
// instant: D covers C, A, weekly and daily; weekly covers daily only.
func (ct CheckType) Cascade() []CheckType {
	switch ct {
	case CheckD:
		return []CheckType{CheckD, CheckC, CheckA, CheckWeekly, CheckDaily}
	case CheckC:
		return []CheckType{CheckC, CheckA, CheckWeekly, CheckDaily}
	case CheckA:
		return []CheckType{CheckA, CheckWeekly, CheckDaily}
	case CheckWeekly:
		return []CheckType{CheckWeekly, CheckDaily}
	case CheckDaily:
		return []CheckType{CheckDaily}
	}
	return nil
}

// Aircraft carries five independent check clocks plus the interval data for
// the heavy tiers. GroundedFor/MaintenanceStartedAt are set while the
// airframe sits in maintenance status and cleared on return to service.
type Aircraft struct {
	ID             int64          `json:"id"`
	WorldID        int64          `json:"world_id"`
	MembershipID   int64          `json:"membership_id"`
	Registration   string         `json:"registration"`
	Status         AircraftStatus `json:"status"`
	CruiseSpeedKts float64        `json:"cruise_speed_kts"`

	LastDailyCheck  time.Time `json:"last_daily_check"`
	LastWeeklyCheck time.Time `json:"last_weekly_check"`
	LastACheck      time.Time `json:"last_a_check"`
	LastCCheck      time.Time `json:"last_c_check"`
	LastDCheck      time.Time `json:"last_d_check"`

	ACheckIntervalDays int `json:"a_check_interval_days"`
	CCheckIntervalDays int `json:"c_check_interval_days"`
	DCheckIntervalDays int `json:"d_check_interval_days"`

	AutoScheduleDaily  bool `json:"auto_schedule_daily"`
	AutoScheduleWeekly bool `json:"auto_schedule_weekly"`
	AutoScheduleA      bool `json:"auto_schedule_a"`
	AutoScheduleC      bool `json:"auto_schedule_c"`
	AutoScheduleD      bool `json:"auto_schedule_d"`

	GroundedFor          *CheckType `json:"grounded_for,omitempty"`
	MaintenanceStartedAt *time.Time `json:"maintenance_started_at,omitempty"`
	LastTransitCheck     time.Time  `json:"last_transit_check"`
}

// LastCheck returns the last-performed timestamp for the given tier.
func (a *Aircraft) LastCheck(ct CheckType) time.Time {
	switch ct {
	case CheckDaily:
		return a.LastDailyCheck
	case CheckWeekly:
		return a.LastWeeklyCheck
	case CheckA:
		return a.LastACheck
	case CheckC:
		return a.LastCCheck
	case CheckD:
		return a.LastDCheck
	}
	return time.Time{}
}

// SetLastCheck updates the last-performed timestamp for the given tier.
func (a *Aircraft) SetLastCheck(ct CheckType, t time.Time) {
	switch ct {
	case CheckDaily:
		a.LastDailyCheck = t
	case CheckWeekly:
		a.LastWeeklyCheck = t
	case CheckA:
		a.LastACheck = t
	case CheckC:
		a.LastCCheck = t
	case CheckD:
		a.LastDCheck = t
	}
}

// CheckIntervalDays returns the configured interval for the interval-driven
// tiers (A, C, D). Daily and weekly tiers have fixed calendar periods.
func (a *Aircraft) CheckIntervalDays(ct CheckType) int {
	switch ct {
	case CheckA:
		return a.ACheckIntervalDays
	case CheckC:
		return a.CCheckIntervalDays
	case CheckD:
		return a.DCheckIntervalDays
	}
	return 0
}

// AutoSchedule reports whether the given tier is flagged for automatic
// re-planning by the refresh scheduler.
func (a *Aircraft) AutoSchedule(ct CheckType) bool {
	switch ct {
	case CheckDaily:
		return a.AutoScheduleDaily
	case CheckWeekly:
		return a.AutoScheduleWeekly
	case CheckA:
		return a.AutoScheduleA
	case CheckC:
		return a.AutoScheduleC
	case CheckD:
		return a.AutoScheduleD
	}
	return false
}

// HasAutoSchedule reports whether any tier is flagged for auto re-planning.
func (a *Aircraft) HasAutoSchedule() bool {
	return a.AutoScheduleDaily || a.AutoScheduleWeekly || a.AutoScheduleA ||
		a.AutoScheduleC || a.AutoScheduleD
}
