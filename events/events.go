// Package events carries the engine's outbound notifications: one tick event
// per cadence firing of every running world, plus billing alerts. The Hub
// fans events out to subscribers without ever blocking the clock.
package events

import "time"

// EventType identifies the category of event.
type EventType string

const (
	EventTick        EventType = "world.tick"
	EventCreditAlert EventType = "billing.credit_alert"
)

// Event is the message passed through the hub.
type Event struct {
	Type      EventType   `json:"type"`
	WorldID   int64       `json:"world_id"`
	Timestamp time.Time   `json:"timestamp"` // wall time of emission
	Data      interface{} `json:"data"`
}

// TickData is the payload for EventTick. GameTime is ISO-8601.
type TickData struct {
	WorldID            int64   `json:"worldId"`
	GameTime           string  `json:"gameTime"`
	AdvancementSeconds float64 `json:"advancementSeconds"`
	TimeAcceleration   float64 `json:"timeAcceleration"`
}

// CreditAlertData is the payload for EventCreditAlert, published when a
// membership's balance falls below the administration threshold.
type CreditAlertData struct {
	WorldID      int64  `json:"world_id"`
	MembershipID int64  `json:"membership_id"`
	AirlineName  string `json:"airline_name"`
	Credits      int    `json:"credits"`
}

// Publisher is the capability handed to the engine at construction; the
// engine never looks up a transport globally.
type Publisher interface {
	Publish(e Event)
}

// NopPublisher discards all events. Useful in tests and tools.
type NopPublisher struct{}

// Publish drops the event.
func (NopPublisher) Publish(Event) {}
