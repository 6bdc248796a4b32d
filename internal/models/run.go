package models

import "time"

// LabelRun is the journal entry of one label invocation.
type LabelRun struct {
	ID              string    `json:"id"`
	ShipmentID      ID        `json:"shipmentId"`
	EventID         ID        `json:"eventId"`
	Outcome         string    `json:"outcome"`
	ConsignmentID   string    `json:"consignmentId,omitempty"`
	TrackingNumbers []string  `json:"trackingNumbers,omitempty"`
	Error           *string   `json:"error,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}
