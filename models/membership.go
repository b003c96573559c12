package models

import "time"

// Membership is one tenant airline participating in a world. Credits are
// deducted once per elapsed virtual calendar week by the billing processor.
type Membership struct {
	ID                  int64      `json:"id"`
	WorldID             int64      `json:"world_id"`
	AirlineName         string     `json:"airline_name"`
	Credits             int        `json:"credits"`
	LastCreditDeduction *time.Time `json:"last_credit_deduction,omitempty"`
	IsActive            bool       `json:"is_active"`
}
