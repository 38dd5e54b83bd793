package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agentauth/agentauth-core/pkg/capability"
)

// StoreGrant persists a permission grant.
func (s *Store) StoreGrant(ctx context.Context, grant *capability.Grant) error {
	conditions, err := json.Marshal(grant.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}

	const q = `
		INSERT INTO permission_grants
			(id, grantor, grantee, scopes, resource, conditions, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, q,
		grant.ID, grant.Grantor, grant.Grantee, grant.Scopes,
		nullStr(grant.Resource), conditions, grant.CreatedAt, grant.ExpiresAt)
	return err
}

// GetGrant returns a grant by id, revoked or not.
func (s *Store) GetGrant(ctx context.Context, id string) (*capability.Grant, error) {
	const q = `
		SELECT id, grantor, grantee, scopes, resource, conditions, created_at, expires_at, revoked_at
		FROM permission_grants WHERE id = $1`

	grant, err := scanGrant(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotFound, id)
	}
	return grant, err
}

// GetActiveGrantsByGrantee returns grants that are not revoked and not
// expired at the given instant. The activity invariant lives in the WHERE
// clause so concurrent revocations are settled by row visibility.
func (s *Store) GetActiveGrantsByGrantee(ctx context.Context, grantee string, now time.Time) ([]*capability.Grant, error) {
	const q = `
		SELECT id, grantor, grantee, scopes, resource, conditions, created_at, expires_at, revoked_at
		FROM permission_grants
		WHERE grantee = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, grantee, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*capability.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, grant)
	}
	return out, rows.Err()
}

// RevokeGrant sets revoked_at once; a second revocation matches no rows and
// is a no-op.
func (s *Store) RevokeGrant(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE permission_grants
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	_, err := s.pool.Exec(ctx, q, id, at)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGrant(row rowScanner) (*capability.Grant, error) {
	var grant capability.Grant
	var resource *string
	var conditions []byte
	if err := row.Scan(
		&grant.ID, &grant.Grantor, &grant.Grantee, &grant.Scopes,
		&resource, &conditions, &grant.CreatedAt, &grant.ExpiresAt, &grant.RevokedAt,
	); err != nil {
		return nil, err
	}
	if resource != nil {
		grant.Resource = *resource
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &grant.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}
	return &grant, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
