package pglabels

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS carrier_setups (
  carrier_name TEXT PRIMARY KEY,
  data_document TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS label_runs (
  id TEXT PRIMARY KEY,
  shipment_id TEXT NOT NULL,
  event_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  consignment_id TEXT NOT NULL DEFAULT '',
  tracking_numbers TEXT[] NOT NULL DEFAULT '{}',
  error TEXT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_label_runs_shipment_id_started_at ON label_runs(shipment_id, started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_label_runs_event_id ON label_runs(event_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
