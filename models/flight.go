package models

import "time"

// FlightStatus is the lifecycle state of a scheduled flight. Transitions only
// ever move forward; cancelled is terminal and set outside the engine.
type FlightStatus string

const (
	FlightScheduled  FlightStatus = "scheduled"
	FlightInProgress FlightStatus = "in_progress"
	FlightCompleted  FlightStatus = "completed"
	FlightCancelled  FlightStatus = "cancelled"
)

// Airport holds the coordinate data the duration calculator needs.
type Airport struct {
	ID        int64   `json:"id"`
	ICAO      string  `json:"icao"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route connects two airports, optionally through a technical stop.
// ReturnDistanceNM is nil when the return leg was never measured; the
// calculator falls back to a configured split of DistanceNM.
type Route struct {
	ID                int64    `json:"id"`
	WorldID           int64    `json:"world_id"`
	OriginID          int64    `json:"origin_id"`
	DestinationID     int64    `json:"destination_id"`
	DistanceNM        float64  `json:"distance_nm"`
	TurnaroundMin     int      `json:"turnaround_min"`
	TechStopAirportID *int64   `json:"tech_stop_airport_id,omitempty"`
	ReturnDistanceNM  *float64 `json:"return_distance_nm,omitempty"`
}

// ScheduledFlight is one dated round trip on a route. DepartureTime is the
// local time of day in "15:04" form; ScheduledDate carries the virtual date.
type ScheduledFlight struct {
	ID            int64        `json:"id"`
	WorldID       int64        `json:"world_id"`
	MembershipID  int64        `json:"membership_id"`
	RouteID       int64        `json:"route_id"`
	AircraftID    int64        `json:"aircraft_id"`
	Status        FlightStatus `json:"status"`
	ScheduledDate time.Time    `json:"scheduled_date"`
	DepartureTime string       `json:"departure_time"`
}

// DepartureAt combines the flight's date and time of day into one instant.
func (f ScheduledFlight) DepartureAt() time.Time {
	t, err := time.Parse("15:04", f.DepartureTime)
	if err != nil {
		return f.ScheduledDate
	}
	d := f.ScheduledDate
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
}

// FlightOp is the joined view the lifecycle processor works on: the flight
// plus everything needed to compute its round-trip duration.
type FlightOp struct {
	Flight         ScheduledFlight `json:"flight"`
	Route          Route           `json:"route"`
	Origin         Airport         `json:"origin"`
	Destination    Airport         `json:"destination"`
	TechStop       *Airport        `json:"tech_stop,omitempty"`
	CruiseSpeedKts float64         `json:"cruise_speed_kts"`
}
