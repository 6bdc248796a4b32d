package labels

import (
	"context"
	"encoding/json"

	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
)

// SetupKey is the dataDocument section holding the GLS setup.
const SetupKey = "GLSTransport"

type ConfigResolver interface {
	Resolve(ctx context.Context, carrierName string) (models.CarrierSetup, error)
}

// DocumentSource looks up the raw dataDocument of a carrier.
type DocumentSource interface {
	DataDocument(ctx context.Context, carrierName string) (doc string, found bool, err error)
}

// DocumentResolver parses the setup out of whatever document a source holds.
type DocumentResolver struct {
	src DocumentSource
}

func NewDocumentResolver(src DocumentSource) *DocumentResolver {
	return &DocumentResolver{src: src}
}

func (r *DocumentResolver) Resolve(ctx context.Context, carrierName string) (models.CarrierSetup, error) {
	doc, found, err := r.src.DataDocument(ctx, carrierName)
	if err != nil {
		return models.CarrierSetup{}, err
	}
	if !found {
		return models.CarrierSetup{}, &CarrierNotFoundError{Name: carrierName}
	}
	setup, err := ParseDataDocument(doc)
	if err != nil {
		return models.CarrierSetup{}, &InvalidCarrierSetupError{Name: carrierName, Err: err}
	}
	return setup, nil
}

type CarrierRegistry interface {
	Carriers(ctx context.Context) ([]models.Carrier, error)
}

// RegistrySource reads dataDocuments from the OMS carrier registry.
type RegistrySource struct {
	registry CarrierRegistry
}

func NewRegistryResolver(registry CarrierRegistry) *DocumentResolver {
	return NewDocumentResolver(&RegistrySource{registry: registry})
}

func (s *RegistrySource) DataDocument(ctx context.Context, carrierName string) (string, bool, error) {
	list, err := s.registry.Carriers(ctx)
	if err != nil {
		return "", false, errors.Wrap(err, "list carriers")
	}
	for _, c := range list {
		if c.CarrierName == carrierName {
			return c.DataDocument, true, nil
		}
	}
	return "", false, nil
}

// InlineResolver serves a setup taken from the service configuration.
type InlineResolver struct {
	name  string
	setup models.CarrierSetup
}

func NewInlineResolver(carrierName string, setup models.CarrierSetup) *InlineResolver {
	return &InlineResolver{name: carrierName, setup: setup}
}

func (r *InlineResolver) Resolve(_ context.Context, carrierName string) (models.CarrierSetup, error) {
	if carrierName != r.name {
		return models.CarrierSetup{}, &CarrierNotFoundError{Name: carrierName}
	}
	return r.setup, nil
}

// setupDocument accepts numeric and string account values.
type setupDocument struct {
	UserName       models.ID `json:"userName"`
	Password       string    `json:"password"`
	CustomerID     models.ID `json:"customerId"`
	CustomerNumber models.ID `json:"customerNumber"`
	ContactID      models.ID `json:"contactId"`
}

// ParseDataDocument extracts the GLS setup from a carrier dataDocument.
func ParseDataDocument(doc string) (models.CarrierSetup, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &sections); err != nil {
		return models.CarrierSetup{}, errors.Wrap(err, "decode dataDocument")
	}
	raw, ok := sections[SetupKey]
	if !ok || string(raw) == "null" {
		return models.CarrierSetup{}, errors.Errorf("dataDocument has no %s section", SetupKey)
	}

	var d setupDocument
	if err := json.Unmarshal(raw, &d); err != nil {
		return models.CarrierSetup{}, errors.Wrapf(err, "decode %s", SetupKey)
	}
	if d.CustomerID == "" {
		d.CustomerID = d.CustomerNumber
	}
	return models.CarrierSetup{
		UserName:   d.UserName.String(),
		Password:   d.Password,
		CustomerID: d.CustomerID.String(),
		ContactID:  d.ContactID.String(),
	}, nil
}
