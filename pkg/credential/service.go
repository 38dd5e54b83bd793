package credential

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentauth/agentauth-core/internal/metrics"
	"github.com/agentauth/agentauth-core/pkg/canonical"
	"github.com/agentauth/agentauth-core/pkg/did"
	"github.com/agentauth/agentauth-core/pkg/identity"
)

// Store is the persistence contract the credential service needs.
// Credentials are append-only; revocation lives in a side-table.
type Store interface {
	StoreCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, id string) (*Credential, error)
	StoreRevocation(ctx context.Context, rev *Revocation) error
	IsRevoked(ctx context.Context, id string) (bool, error)

	StoreSchema(ctx context.Context, schema *Schema) error
	GetSchema(ctx context.Context, idOrName string) (*Schema, error)
	ListSchemas(ctx context.Context) ([]*Schema, error)
}

// Config holds service configuration.
type Config struct {
	// Algorithm used for proof signing and verification.
	// Defaults to Ed25519.
	Algorithm identity.Algorithm

	// KeyResolver maps an issuer DID to its verification key. Defaults to
	// extracting the key embedded in a did:key identifier. Hybrid
	// deployments, whose DIDs carry only the classical component, supply a
	// resolver that returns the full hybrid public key.
	KeyResolver func(issuerDID string) ([]byte, error)

	// Logger for structured logging. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Service issues, verifies, and revokes credentials, and manages the schema
// registry. Safe for concurrent use; all state lives in the Store.
type Service struct {
	store   Store
	alg     identity.Algorithm
	resolve func(issuerDID string) ([]byte, error)
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates a credential Service backed by the given store.
func NewService(store Store, cfg Config) *Service {
	alg := cfg.Algorithm
	if alg == nil {
		alg = identity.Ed25519{}
	}
	resolve := cfg.KeyResolver
	if resolve == nil {
		resolve = func(issuerDID string) ([]byte, error) {
			key, err := did.PublicKey(issuerDID)
			if err != nil {
				return nil, err
			}
			return key, nil
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, alg: alg, resolve: resolve, log: log, now: now}
}

// RegisterSchema registers a schema. An empty ID is assigned a fresh UUID.
// Schemas are immutable once registered: re-registering an existing id or
// name returns ErrSchemaExists.
func (s *Service) RegisterSchema(ctx context.Context, schema *Schema) (*Schema, error) {
	if schema.Name == "" {
		return nil, &SchemaValidationError{Property: "name", Reason: "is required but missing"}
	}
	if schema.ID == "" {
		schema.ID = uuid.NewString()
	}
	if err := s.store.StoreSchema(ctx, schema); err != nil {
		return nil, err
	}
	s.log.Info("schema registered",
		zap.String("schemaId", schema.ID),
		zap.String("name", schema.Name))
	return schema, nil
}

// GetSchema looks up a schema by id or name.
func (s *Service) GetSchema(ctx context.Context, idOrName string) (*Schema, error) {
	return s.store.GetSchema(ctx, idOrName)
}

// ListSchemas returns all registered schemas.
func (s *Service) ListSchemas(ctx context.Context) ([]*Schema, error) {
	return s.store.ListSchemas(ctx)
}

// IssueOptions are optional parameters for Issue.
type IssueOptions struct {
	// ExpirationDate bounds the credential's validity. Zero means no expiry.
	ExpirationDate time.Time

	// Challenge and Domain, when set, are recorded in the proof and folded
	// into the signed payload.
	Challenge string
	Domain    string
}

// Issue validates claims against the schema, builds the credential, signs
// its canonical proof-stripped form with issuerKey, persists it, and returns
// it. Returns a SchemaValidationError naming the offending property when the
// claims do not satisfy the schema.
func (s *Service) Issue(ctx context.Context, schemaID, subject string, claims map[string]any, issuerDID string, issuerKey []byte, opts IssueOptions) (*Credential, error) {
	schema, err := s.store.GetSchema(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	if err := validateClaims(schema, claims); err != nil {
		metrics.CredentialsIssued.WithLabelValues("schema_invalid").Inc()
		return nil, err
	}

	now := s.now().UTC()
	cred := &Credential{
		ID:           "urn:uuid:" + uuid.NewString(),
		Issuer:       issuerDID,
		Subject:      subject,
		Types:        []string{schema.Name, TypeVerifiableCredential},
		Claims:       claims,
		IssuanceDate: now,
	}
	if !opts.ExpirationDate.IsZero() {
		exp := opts.ExpirationDate.UTC()
		cred.ExpirationDate = &exp
	}

	payload, err := signingInput(cred, opts.Challenge, opts.Domain)
	if err != nil {
		return nil, err
	}
	sig, err := s.alg.Sign(payload, issuerKey)
	if err != nil {
		return nil, err
	}

	cred.Proof = &Proof{
		Type:               s.alg.Name() + "Signature",
		Created:            now,
		VerificationMethod: issuerDID + "#key-1",
		Challenge:          opts.Challenge,
		Domain:             opts.Domain,
		ProofValue:         hex.EncodeToString(sig),
	}

	if err := s.store.StoreCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	metrics.CredentialsIssued.WithLabelValues("ok").Inc()
	s.log.Info("credential issued",
		zap.String("credentialId", cred.ID),
		zap.String("schema", schema.Name),
		zap.String("subject", subject))
	return cred, nil
}

// VerifyOptions are optional parameters for Verify.
type VerifyOptions struct {
	// Now overrides the verification instant (for testing).
	Now time.Time

	// Challenge and Domain, when set, are the values the verifier expects
	// the proof to be bound to. The signature check is computed over them,
	// so a credential issued for a different challenge or domain fails.
	Challenge string
	Domain    string
}

// Verify runs the four independent checks: signature, expiration,
// revocation, and schema. Valid is true only when all four pass. A failing
// signature yields Checks.Signature=false, never an error, so batch
// verification can report partial results. Storage failures (not
// verification failures) are returned as errors.
func (s *Service) Verify(ctx context.Context, cred *Credential, opts VerifyOptions) (*VerifyResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = s.now()
	}

	checks := Checks{
		Signature:  s.checkSignature(cred, opts),
		Expiration: !cred.Expired(now),
	}

	revoked, err := s.store.IsRevoked(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	checks.Revocation = !revoked

	checks.Schema = s.checkSchema(ctx, cred)

	result := &VerifyResult{Valid: checks.All(), Checks: checks}
	outcome := "valid"
	if !result.Valid {
		outcome = "invalid"
	}
	metrics.CredentialsVerified.WithLabelValues(outcome).Inc()
	return result, nil
}

// checkSignature re-verifies the proof against the canonicalized,
// proof-stripped credential and the issuer's public key. Any malformed
// input yields false. The verifier's expected challenge and domain, when
// given, replace the proof's own values in the signed payload, so a
// mismatch fails here rather than needing a separate comparison.
func (s *Service) checkSignature(cred *Credential, opts VerifyOptions) bool {
	if cred.Proof == nil || cred.Proof.ProofValue == "" {
		return false
	}
	sig, err := hex.DecodeString(cred.Proof.ProofValue)
	if err != nil {
		return false
	}
	issuerKey, err := s.resolve(cred.Issuer)
	if err != nil {
		return false
	}
	challenge := opts.Challenge
	if challenge == "" {
		challenge = cred.Proof.Challenge
	}
	domain := opts.Domain
	if domain == "" {
		domain = cred.Proof.Domain
	}
	payload, err := signingInput(cred, challenge, domain)
	if err != nil {
		return false
	}
	return s.alg.Verify(payload, sig, issuerKey)
}

// signingInput builds the byte string a credential proof signs. Without a
// challenge or domain it is the canonical proof-stripped credential, which
// keeps previously issued proofs verifiable. With either present the
// credential is wrapped together with them and canonicalized as one record.
func signingInput(cred *Credential, challenge, domain string) ([]byte, error) {
	payload, err := canonical.MarshalWithout(cred, "proof")
	if err != nil {
		return nil, err
	}
	if challenge == "" && domain == "" {
		return payload, nil
	}
	return canonical.Marshal(map[string]any{
		"credential": json.RawMessage(payload),
		"challenge":  challenge,
		"domain":     domain,
	})
}

// checkSchema re-validates the claims against the schema named in the
// credential's type list.
func (s *Service) checkSchema(ctx context.Context, cred *Credential) bool {
	name := cred.SchemaName()
	if name == "" {
		return false
	}
	schema, err := s.store.GetSchema(ctx, name)
	if err != nil {
		return false
	}
	return validateClaims(schema, cred.Claims) == nil
}

// Revoke records a revocation for a credential. Only the original issuer may
// revoke; any other actor gets ErrUnauthorized. Revoking an already-revoked
// credential is a no-op.
func (s *Service) Revoke(ctx context.Context, credentialID, issuerDID, reason string) error {
	cred, err := s.store.GetCredential(ctx, credentialID)
	if err != nil {
		return err
	}
	if cred.Issuer != issuerDID {
		return &Error{
			Code:    ErrCodeUnauthorized,
			Message: fmt.Sprintf("only issuer %s may revoke credential %s", cred.Issuer, credentialID),
		}
	}

	revoked, err := s.store.IsRevoked(ctx, credentialID)
	if err != nil {
		return err
	}
	if revoked {
		return nil
	}

	rev := &Revocation{
		CredentialID: credentialID,
		RevokedBy:    issuerDID,
		RevokedAt:    s.now().UTC(),
		Reason:       reason,
	}
	if err := s.store.StoreRevocation(ctx, rev); err != nil {
		return fmt.Errorf("failed to store revocation: %w", err)
	}

	s.log.Info("credential revoked",
		zap.String("credentialId", credentialID),
		zap.String("revokedBy", issuerDID))
	return nil
}
