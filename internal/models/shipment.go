package models

import (
	"bytes"
	"encoding/json"
)

// ID is an OMS identifier. The OMS sends numeric ids, but string ids are
// accepted too so fixtures and other sources can use readable values.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Address struct {
	Addressee           string `json:"addressee"`
	StreetNameAndNumber string `json:"streetNameAndNumber"`
	PostalCode          string `json:"postalCode"`
	CityTownOrVillage   string `json:"cityTownOrVillage"`
	CountryCode         string `json:"countryCode"`
}

type ContactPerson struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobileNumber"`
	PhoneNumber  string `json:"phoneNumber"`
}

type ShippingContainer struct {
	ID          ID      `json:"id"`
	GrossWeight float64 `json:"grossWeight"`
}

type Shipment struct {
	ID                 ID                  `json:"id"`
	ShipmentNumber     string              `json:"shipmentNumber"`
	DeliveryAddress    Address             `json:"deliveryAddress"`
	ContactPerson      *ContactPerson      `json:"contactPerson,omitempty"`
	SellerID           *ID                 `json:"sellerId,omitempty"`
	ShippingContainers []ShippingContainer `json:"shippingContainers"`
	NotesOnDelivery    *string             `json:"notesOnDelivery,omitempty"`
	PickUpPointID      *string             `json:"pickUpPointId,omitempty"`
}

// Party is an address with an optional contact: a seller, an OMS context or
// the configured default sender.
type Party struct {
	Address       Address        `json:"address"`
	ContactPerson *ContactPerson `json:"contactPerson,omitempty"`
}

// Carrier is an entry of the OMS carrier registry. DataDocument holds the
// carrier setup as a JSON string.
type Carrier struct {
	ID           ID     `json:"id,omitempty"`
	CarrierName  string `json:"carrierName"`
	DataDocument string `json:"dataDocument"`
}

// CarrierSetup is the typed form of a carrier's dataDocument.
type CarrierSetup struct {
	UserName   string `json:"userName"`
	Password   string `json:"password"`
	CustomerID string `json:"customerId"`
	ContactID  string `json:"contactId"`
}
