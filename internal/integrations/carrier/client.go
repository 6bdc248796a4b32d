package carrier

import (
	"context"
	"fmt"
)

// ShipmentRequest is the GLS CreateShipment body.
type ShipmentRequest struct {
	UserName     string    `json:"userName"`
	Password     string    `json:"password"`
	CustomerID   string    `json:"customerId"`
	ContactID    string    `json:"contactid"`
	ShipmentDate string    `json:"shipmentDate"` // YYYYMMDD
	Reference    string    `json:"reference"`
	Parcels      []Parcel  `json:"parcels"`
	Addresses    Addresses `json:"addresses"`
	Services     Services  `json:"services"`
}

type Parcel struct {
	Reference string  `json:"reference"`
	Weight    float64 `json:"weight"`
}

type Addresses struct {
	Delivery           Address `json:"delivery"`
	AlternativeShipper Address `json:"alternativeShipper"`
}

type Address struct {
	Name1      string `json:"name1"`
	Street1    string `json:"street1"`
	ZipCode    string `json:"zipCode"`
	City       string `json:"city"`
	CountryNum int    `json:"countryNum"`

	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

const flagOn = "Y"

// Services holds the optional GLS services. Empty fields are not sent.
type Services struct {
	ShopDelivery      string `json:"shopDelivery,omitempty"`
	NotificationEmail string `json:"notificationEmail,omitempty"`
	Deposit           string `json:"deposit,omitempty"`
	FlexDelivery      string `json:"flexDelivery,omitempty"`
	DirectShop        string `json:"directShop,omitempty"`
	PrivateDelivery   string `json:"privateDelivery,omitempty"`
}

func (s *Services) SetFlexDelivery()    { s.FlexDelivery = flagOn }
func (s *Services) SetDirectShop()      { s.DirectShop = flagOn }
func (s *Services) SetPrivateDelivery() { s.PrivateDelivery = flagOn }

type ResultKind string

const (
	Success           ResultKind = "SUCCESS"
	ValidationFailure ResultKind = "VALIDATION_FAILURE"
)

// Result is a classified carrier answer. Transport failures are never a
// Result; they are returned as *TransportError.
type Result struct {
	Kind ResultKind

	// Success
	ConsignmentID string
	LabelPDF      string // base64
	Parcels       []ParcelResult

	// ValidationFailure: field name -> descriptions
	FieldErrors map[string][]string
}

type ParcelResult struct {
	ParcelNumber string `json:"parcelNumber"`
}

type Client interface {
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*Result, error)
}

// TransportError is any carrier failure other than a validation rejection:
// network errors, unexpected statuses, undecodable bodies, an open breaker.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("carrier transport failure (http %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("carrier transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
