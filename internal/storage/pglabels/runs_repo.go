package pglabels

import (
	"context"

	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) RecordRun(ctx context.Context, run models.LabelRun) error {
	numbers := run.TrackingNumbers
	if numbers == nil {
		numbers = []string{}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO label_runs (
  id, shipment_id, event_id, outcome, consignment_id,
  tracking_numbers, error, started_at, finished_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, run.ID, run.ShipmentID.String(), run.EventID.String(), run.Outcome, run.ConsignmentID,
		numbers, run.Error, run.StartedAt, run.FinishedAt)
	return errors.Wrap(err, "insert label run")
}

// ListRuns returns the runs of a shipment, newest first.
func (s *Storage) ListRuns(ctx context.Context, shipmentID models.ID, limit, offset int) ([]*models.LabelRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  id, shipment_id, event_id, outcome, consignment_id,
  tracking_numbers, error, started_at, finished_at
FROM label_runs
WHERE shipment_id = $1
ORDER BY started_at DESC
LIMIT $2 OFFSET $3
`, shipmentID.String(), limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select label runs")
	}
	defer rows.Close()

	var out []*models.LabelRun
	for rows.Next() {
		var (
			r        models.LabelRun
			shipment string
			event    string
		)
		if err := rows.Scan(
			&r.ID, &shipment, &event, &r.Outcome, &r.ConsignmentID,
			&r.TrackingNumbers, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan label run")
		}
		r.ShipmentID = models.ID(shipment)
		r.EventID = models.ID(event)
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
