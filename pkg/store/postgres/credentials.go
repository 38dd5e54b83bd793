package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agentauth/agentauth-core/pkg/credential"
)

// StoreCredential persists a credential. The table is append-only.
func (s *Store) StoreCredential(ctx context.Context, cred *credential.Credential) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	const q = `
		INSERT INTO credentials (id, issuer, subject, schema_name, body, issuance_date, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.pool.Exec(ctx, q,
		cred.ID, cred.Issuer, cred.Subject, cred.SchemaName(), body,
		cred.IssuanceDate, cred.ExpirationDate)
	return err
}

// GetCredential returns the stored credential object by id.
func (s *Store) GetCredential(ctx context.Context, id string) (*credential.Credential, error) {
	const q = `SELECT body FROM credentials WHERE id = $1`

	var body []byte
	err := s.pool.QueryRow(ctx, q, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential %s", credential.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var cred credential.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// StoreRevocation appends to the revocation side-table. ON CONFLICT keeps
// the first revocation record, which makes revocation idempotent.
func (s *Store) StoreRevocation(ctx context.Context, rev *credential.Revocation) error {
	const q = `
		INSERT INTO credential_revocations (credential_id, revoked_by, revoked_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (credential_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, rev.CredentialID, rev.RevokedBy, rev.RevokedAt, rev.Reason)
	return err
}

// IsRevoked reports whether a credential is in the revocation table.
func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM credential_revocations WHERE credential_id = $1)`

	var revoked bool
	err := s.pool.QueryRow(ctx, q, id).Scan(&revoked)
	return revoked, err
}

// StoreSchema registers a schema. Schemas are immutable once registered;
// an existing id or name is rejected.
func (s *Store) StoreSchema(ctx context.Context, schema *credential.Schema) error {
	props, err := json.Marshal(schema.Properties)
	if err != nil {
		return fmt.Errorf("failed to marshal schema properties: %w", err)
	}

	const q = `
		INSERT INTO credential_schemas (id, name, properties)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, schema.ID, schema.Name, props)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", credential.ErrSchemaExists, schema.Name)
	}
	return nil
}

// GetSchema looks a schema up by id or name.
func (s *Store) GetSchema(ctx context.Context, idOrName string) (*credential.Schema, error) {
	const q = `
		SELECT id, name, properties
		FROM credential_schemas
		WHERE id = $1 OR name = $1`

	var schema credential.Schema
	var props []byte
	err := s.pool.QueryRow(ctx, q, idOrName).Scan(&schema.ID, &schema.Name, &props)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: schema %s", credential.ErrNotFound, idOrName)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(props, &schema.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema properties: %w", err)
	}
	return &schema, nil
}

// ListSchemas returns all registered schemas.
func (s *Store) ListSchemas(ctx context.Context) ([]*credential.Schema, error) {
	const q = `SELECT id, name, properties FROM credential_schemas ORDER BY name`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*credential.Schema
	for rows.Next() {
		var schema credential.Schema
		var props []byte
		if err := rows.Scan(&schema.ID, &schema.Name, &props); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(props, &schema.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema properties: %w", err)
		}
		out = append(out, &schema)
	}
	return out, rows.Err()
}
