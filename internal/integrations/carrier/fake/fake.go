package fake

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
)

// FakeClient is an in-process stand-in for the GLS webservice. Results are
// deterministic per reference; a reference starting with "INVALID" is rejected.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &carrier.TransportError{Err: err}
	}

	if len(req.Reference) >= 7 && req.Reference[:7] == "INVALID" {
		return &carrier.Result{
			Kind:        carrier.ValidationFailure,
			FieldErrors: map[string][]string{"reference": {"fake carrier rejects reference " + req.Reference}},
		}, nil
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.CustomerID))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(req.Reference))
	base := h.Sum32()

	parcels := make([]carrier.ParcelResult, len(req.Parcels))
	for i := range req.Parcels {
		parcels[i] = carrier.ParcelResult{ParcelNumber: fmt.Sprintf("%010d%02d", base, i+1)}
	}

	return &carrier.Result{
		Kind:          carrier.Success,
		ConsignmentID: fmt.Sprintf("FAKE%d", base),
		LabelPDF:      base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake label " + req.Reference)),
		Parcels:       parcels,
	}, nil
}
