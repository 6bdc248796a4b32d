package pglabels

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// DataDocument returns the stored setup document of a carrier.
func (s *Storage) DataDocument(ctx context.Context, carrierName string) (string, bool, error) {
	var doc string
	err := s.db.QueryRow(ctx, `SELECT data_document FROM carrier_setups WHERE carrier_name = $1`, carrierName).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "select carrier setup")
	}
	return doc, true, nil
}

func (s *Storage) UpsertCarrierSetup(ctx context.Context, carrierName, dataDocument string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO carrier_setups (carrier_name, data_document, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (carrier_name) DO UPDATE
SET data_document = EXCLUDED.data_document, updated_at = EXCLUDED.updated_at
`, carrierName, dataDocument, time.Now().UTC())
	return errors.Wrap(err, "upsert carrier setup")
}
