package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agentauth/agentauth-core/pkg/identity"
)

// StoreIdentity persists an identity record.
func (s *Store) StoreIdentity(ctx context.Context, rec *identity.Record) error {
	const q = `
		INSERT INTO identities (did, public_key, algorithm, created)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, rec.DID, rec.PublicKey, rec.Algorithm, rec.Created)
	return err
}

// GetIdentity returns the record for a DID, superseded or not.
func (s *Store) GetIdentity(ctx context.Context, didStr string) (*identity.Record, error) {
	const q = `
		SELECT did, public_key, algorithm, created, superseded, superseded_at, superseded_by
		FROM identities WHERE did = $1`

	var rec identity.Record
	var supersededBy *string
	err := s.pool.QueryRow(ctx, q, didStr).Scan(
		&rec.DID, &rec.PublicKey, &rec.Algorithm, &rec.Created,
		&rec.Superseded, &rec.SupersededAt, &supersededBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", identity.ErrNotFound, didStr)
	}
	if err != nil {
		return nil, err
	}
	if supersededBy != nil {
		rec.SupersededBy = *supersededBy
	}
	return &rec, nil
}

// MarkSuperseded records a rotation. The record is never deleted.
func (s *Store) MarkSuperseded(ctx context.Context, didStr, successorDID string, at time.Time) error {
	const q = `
		UPDATE identities
		SET superseded = TRUE, superseded_at = $2, superseded_by = $3
		WHERE did = $1 AND superseded = FALSE`

	tag, err := s.pool.Exec(ctx, q, didStr, at, successorDID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", identity.ErrNotFound, didStr)
	}
	return nil
}
