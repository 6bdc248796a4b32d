package models

const (
	MessageTypeInfo  = "INFO"
	MessageTypeError = "ERROR"
)

// EventMessage is appended to the OMS message log of an event.
type EventMessage struct {
	Time        int64  `json:"time"` // unix millis
	Source      string `json:"source"`
	MessageType string `json:"messageType"`
	MessageText string `json:"messageText"`
}

// ShippingLabel is the attachment posted to a shipment.
type ShippingLabel struct {
	FileName             string `json:"fileName"`
	Base64EncodedContent string `json:"base64EncodedContent"`
}
