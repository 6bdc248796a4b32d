package labels

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BearBump/LabelBox/internal/broker/messages"
	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	LabelsReadyText       = "Labels are ready"
	labelFileTemplate     = "SHIPPING_LABEL_%s.pdf"
	defaultTrackingWrites = 4
)

type ShipmentWriter interface {
	AttachLabel(ctx context.Context, shipmentID models.ID, label models.ShippingLabel) error
	SetConsignmentID(ctx context.Context, shipmentID models.ID, consignmentID string) error
	SetTrackingNumber(ctx context.Context, containerID models.ID, trackingNumber string) error
}

// Outcome describes how an invocation ended.
type Outcome struct {
	Result          string   `json:"result"`
	Kind            string   `json:"kind"`
	ConsignmentID   string   `json:"consignmentId,omitempty"`
	TrackingNumbers []string `json:"trackingNumbers,omitempty"`
	Message         string   `json:"message,omitempty"`
	Skipped         bool     `json:"skipped,omitempty"`

	// NotifyErr is set when the terminal message could not be written.
	NotifyErr error `json:"-"`
}

const ResultDone = "done"

type Reconciler struct {
	oms            ShipmentWriter
	notifier       *Notifier
	trackingWrites int
}

func NewReconciler(oms ShipmentWriter, notifier *Notifier) *Reconciler {
	return &Reconciler{oms: oms, notifier: notifier, trackingWrites: defaultTrackingWrites}
}

// WithTrackingConcurrency bounds the parallel tracking number writes.
func (r *Reconciler) WithTrackingConcurrency(n int) *Reconciler {
	if n > 0 {
		r.trackingWrites = n
	}
	return r
}

// Reconcile writes a carrier result back to the OMS and emits the terminal
// message. The returned error is an OMS write failure; the message failure is
// reported through Outcome.NotifyErr.
func (r *Reconciler) Reconcile(ctx context.Context, eventID models.ID, sh *models.Shipment, res *carrier.Result) (Outcome, error) {
	switch res.Kind {
	case carrier.Success:
		return r.success(ctx, eventID, sh, res)
	case carrier.ValidationFailure:
		text := ValidationText(res.FieldErrors)
		return r.terminal(ctx, eventID, messages.OutcomeRejected, models.MessageTypeError, text), nil
	default:
		return Outcome{}, errors.Errorf("unexpected carrier result kind %q", res.Kind)
	}
}

func (r *Reconciler) success(ctx context.Context, eventID models.ID, sh *models.Shipment, res *carrier.Result) (Outcome, error) {
	if len(res.Parcels) != len(sh.ShippingContainers) {
		text := fmt.Sprintf("Carrier returned %d parcels for %d shipping containers; labels were not stored",
			len(res.Parcels), len(sh.ShippingContainers))
		out := r.terminal(ctx, eventID, messages.OutcomeParcelMismatch, models.MessageTypeError, text)
		out.ConsignmentID = res.ConsignmentID
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		label := models.ShippingLabel{
			FileName:             fmt.Sprintf(labelFileTemplate, sh.ID),
			Base64EncodedContent: res.LabelPDF,
		}
		return errors.Wrap(r.oms.AttachLabel(gctx, sh.ID, label), "attach label")
	})
	g.Go(func() error {
		return errors.Wrap(r.oms.SetConsignmentID(gctx, sh.ID, res.ConsignmentID), "set consignment id")
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	numbers := make([]string, len(res.Parcels))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.trackingWrites)
	for i, c := range sh.ShippingContainers {
		numbers[i] = res.Parcels[i].ParcelNumber
		g.Go(func() error {
			err := r.oms.SetTrackingNumber(gctx, c.ID, numbers[i])
			return errors.Wrapf(err, "set tracking number of container %s", c.ID)
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	out := r.terminal(ctx, eventID, messages.OutcomeLabeled, models.MessageTypeInfo, LabelsReadyText)
	out.ConsignmentID = res.ConsignmentID
	out.TrackingNumbers = numbers
	return out, nil
}

func (r *Reconciler) terminal(ctx context.Context, eventID models.ID, kind, severity, text string) Outcome {
	return Outcome{
		Result:    ResultDone,
		Kind:      kind,
		Message:   text,
		NotifyErr: r.notifier.Notify(ctx, eventID, severity, text),
	}
}

// ValidationText joins all field error descriptions, ordered by field name.
func ValidationText(fieldErrors map[string][]string) string {
	fields := make([]string, 0, len(fieldErrors))
	for f := range fieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var parts []string
	for _, f := range fields {
		for _, d := range fieldErrors[f] {
			if d = strings.TrimSpace(d); d != "" {
				parts = append(parts, d)
			}
		}
	}
	if len(parts) == 0 {
		return "The carrier rejected the shipment"
	}
	return strings.Join(parts, "; ")
}
