package messages

import (
	"time"

	"github.com/BearBump/LabelBox/internal/models"
)

const (
	OutcomeLabeled          = "LABELED"
	OutcomeRejected         = "REJECTED"
	OutcomeParcelMismatch   = "PARCEL_MISMATCH"
	OutcomeMappingFailed    = "MAPPING_FAILED"
	OutcomeTransportFailure = "TRANSPORT_FAILURE"
)

// LabelOutcome is published after every invocation.
type LabelOutcome struct {
	ShipmentID models.ID `json:"shipment_id"`
	EventID    models.ID `json:"event_id"`
	Outcome    string    `json:"outcome"`
	FinishedAt time.Time `json:"finished_at"`

	ConsignmentID   string   `json:"consignment_id,omitempty"`
	TrackingNumbers []string `json:"tracking_numbers,omitempty"`

	Error *string `json:"error,omitempty"`
}
