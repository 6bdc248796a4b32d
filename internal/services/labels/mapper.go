package labels

import (
	"fmt"
	"time"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
)

const shipmentDateLayout = "20060102"

type Mapper struct {
	now func() time.Time
}

func NewMapper(now func() time.Time) *Mapper {
	if now == nil {
		now = time.Now
	}
	return &Mapper{now: now}
}

// BuildRequest builds the CreateShipment body. Any unmappable address fails
// the whole request.
func (m *Mapper) BuildRequest(sh *models.Shipment, sender models.Party, setup models.CarrierSetup) (*carrier.ShipmentRequest, error) {
	if sh == nil {
		return nil, errors.New("shipment is nil")
	}

	delivery, err := MapAddress(sh.DeliveryAddress, sh.ContactPerson)
	if err != nil {
		return nil, errors.Wrap(err, "delivery address")
	}
	shipper, err := MapAddress(sender.Address, sender.ContactPerson)
	if err != nil {
		return nil, errors.Wrap(err, "sender address")
	}

	parcels := make([]carrier.Parcel, 0, len(sh.ShippingContainers))
	for i, c := range sh.ShippingContainers {
		parcels = append(parcels, carrier.Parcel{
			Reference: fmt.Sprintf("%s #%d", sh.ShipmentNumber, i+1),
			Weight:    c.GrossWeight,
		})
	}

	services := ParseNotes(sh.NotesOnDelivery)
	if sh.PickUpPointID != nil {
		services.ShopDelivery = *sh.PickUpPointID
	}
	if sh.ContactPerson != nil {
		services.NotificationEmail = sh.ContactPerson.Email
	}

	return &carrier.ShipmentRequest{
		UserName:     setup.UserName,
		Password:     setup.Password,
		CustomerID:   setup.CustomerID,
		ContactID:    setup.ContactID,
		ShipmentDate: m.now().Format(shipmentDateLayout),
		Reference:    sh.ShipmentNumber,
		Parcels:      parcels,
		Addresses: carrier.Addresses{
			Delivery:           delivery,
			AlternativeShipper: shipper,
		},
		Services: services,
	}, nil
}
