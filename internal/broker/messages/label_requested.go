package messages

import "github.com/BearBump/LabelBox/internal/models"

// LabelRequested is the trigger: "this shipment needs a label".
type LabelRequested struct {
	ShipmentID models.ID `json:"shipmentId"`
	EventID    models.ID `json:"eventId"`
	ContextID  models.ID `json:"contextId"`
}
