package labels

import (
	"fmt"

	"github.com/BearBump/LabelBox/internal/integrations/oms"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
)

var ErrInvalidTrigger = errors.New("invalid label request")

type UnknownCountryError struct {
	Code string
}

func (e *UnknownCountryError) Error() string {
	return fmt.Sprintf("unknown country code %q", e.Code)
}

type CarrierNotFoundError struct {
	Name string
}

func (e *CarrierNotFoundError) Error() string {
	return "no carrier by the name " + e.Name
}

// InvalidCarrierSetupError means the carrier exists but its setup document is unusable.
type InvalidCarrierSetupError struct {
	Name string
	Err  error
}

func (e *InvalidCarrierSetupError) Error() string {
	return fmt.Sprintf("invalid setup for carrier %s: %v", e.Name, e.Err)
}

func (e *InvalidCarrierSetupError) Unwrap() error { return e.Err }

type SellerNotFoundError struct {
	SellerID models.ID
}

func (e *SellerNotFoundError) Error() string {
	return fmt.Sprintf("seller %s not found", e.SellerID)
}

type ShipmentNotFoundError struct {
	ShipmentID models.ID
}

func (e *ShipmentNotFoundError) Error() string {
	return fmt.Sprintf("shipment %s not found", e.ShipmentID)
}

// NotificationFailure is a failed write of an event message. It never replaces
// the outcome of the run it was reporting.
type NotificationFailure struct {
	EventID models.ID
	Err     error
}

func (e *NotificationFailure) Error() string {
	return fmt.Sprintf("post message to event %s: %v", e.EventID, e.Err)
}

func (e *NotificationFailure) Unwrap() error { return e.Err }

// IsMappingError reports errors that stop a run before the carrier is called
// and that a redelivery of the same event cannot fix.
func IsMappingError(err error) bool {
	var (
		uc *UnknownCountryError
		cn *CarrierNotFoundError
		cs *InvalidCarrierSetupError
		sn *SellerNotFoundError
		sh *ShipmentNotFoundError
	)
	return errors.As(err, &uc) || errors.As(err, &cn) || errors.As(err, &cs) ||
		errors.As(err, &sn) || errors.As(err, &sh) || errors.Is(err, ErrInvalidTrigger)
}

// IsRetryable reports failures that belong to the trigger infrastructure's
// retry policy: carrier transport failures and OMS I/O errors.
func IsRetryable(err error) bool {
	return err != nil && !IsMappingError(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, oms.ErrNotFound)
}
