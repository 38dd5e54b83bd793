package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentauth/agentauth-core/internal/metrics"
	"github.com/agentauth/agentauth-core/pkg/policy"
)

// Store is the persistence contract the capability service needs.
type Store interface {
	StoreGrant(ctx context.Context, grant *Grant) error
	GetGrant(ctx context.Context, id string) (*Grant, error)

	// GetActiveGrantsByGrantee returns grants for the grantee that are not
	// revoked and not expired at the given instant.
	GetActiveGrantsByGrantee(ctx context.Context, grantee string, now time.Time) ([]*Grant, error)

	// RevokeGrant sets RevokedAt on the grant. Revoking an already-revoked
	// grant is a no-op at the storage layer.
	RevokeGrant(ctx context.Context, id string, at time.Time) error
}

// TrustGate is the optional trust-score check consulted before allowing an
// action. Implemented by the trust scoring service.
type TrustGate interface {
	HasSufficientTrust(ctx context.Context, agentDID, action string) (bool, error)
}

// Config holds service configuration. DefaultEffect is a named, explicit
// security-posture choice: the verdict applied when grants match but no
// policy rule fires. It ships fail-open (allow) and operators flip it to
// fail-closed (deny) per deployment.
type Config struct {
	// SigningKey is the service key capability tokens are minted with.
	// The service, not the grantor, vouches for the grant.
	SigningKey SigningKey

	// TokenIssuer is the iss claim for minted tokens.
	TokenIssuer string

	// TokenTTL bounds token life when the grant has no expiry.
	// Defaults to DefaultTokenTTL.
	TokenTTL time.Duration

	// DefaultEffect applies when no policy rule fires. Defaults to allow.
	DefaultEffect policy.Effect

	// RecheckGrant makes ValidateToken consult the grant store so revocation
	// is visible before token expiry, trading statelessness for freshness.
	// Off by default: tokens are short-lived bearer credentials and the
	// staleness window is bounded by TokenTTL.
	RecheckGrant bool

	// TrustGate, when set, is consulted after policy evaluation.
	TrustGate TrustGate

	// Logger for structured logging. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Service grants, checks, and revokes capabilities.
type Service struct {
	store  Store
	engine *policy.Engine
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

// NewService creates a capability Service backed by the given stores.
func NewService(store Store, engine *policy.Engine, cfg Config) *Service {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.DefaultEffect == "" {
		cfg.DefaultEffect = policy.EffectAllow
	}
	if cfg.TokenIssuer == "" {
		cfg.TokenIssuer = "agentauth"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, engine: engine, cfg: cfg, now: now, log: log}
}

// GrantOptions are optional parameters for Grant.
type GrantOptions struct {
	Resource   string
	Conditions map[string]any

	// ExpiresAt bounds the grant. Zero means the grant itself never expires;
	// the minted token still gets the default TTL.
	ExpiresAt time.Time
}

// Grant persists a permission grant and mints a capability token for it.
func (s *Service) Grant(ctx context.Context, grantor, grantee string, scopes []string, opts GrantOptions) (*GrantResult, error) {
	now := s.now().UTC()

	grant := &Grant{
		ID:         uuid.NewString(),
		Grantor:    grantor,
		Grantee:    grantee,
		Scopes:     scopes,
		Resource:   opts.Resource,
		Conditions: opts.Conditions,
		CreatedAt:  now,
	}
	if !opts.ExpiresAt.IsZero() {
		exp := opts.ExpiresAt.UTC()
		grant.ExpiresAt = &exp
	}

	if err := s.store.StoreGrant(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to store grant: %w", err)
	}

	tokenExpiry := now.Add(s.cfg.TokenTTL)
	if grant.ExpiresAt != nil && grant.ExpiresAt.Before(tokenExpiry) {
		tokenExpiry = *grant.ExpiresAt
	}
	token, err := mintToken(s.cfg.SigningKey, s.cfg.TokenIssuer, grant, tokenExpiry, now)
	if err != nil {
		return nil, err
	}

	s.log.Info("permission granted",
		zap.String("grantId", grant.ID),
		zap.String("grantor", grantor),
		zap.String("grantee", grantee),
		zap.Strings("scopes", scopes))

	return &GrantResult{GrantID: grant.ID, Token: token, ExpiresAt: tokenExpiry}, nil
}

// Check decides whether subject may perform action on resource. The verdict
// is a value, never an error: storage failures are errors, denials are not.
//
// Algorithm: active grants for the subject → scope match (exact, admin
// override, or namespace wildcard) → resource-exact filter → policy
// evaluation (first firing rule wins, configured default effect otherwise)
// → optional trust gate. The first grant that authorizes short-circuits.
func (s *Service) Check(ctx context.Context, subject, action, resource string, checkCtx map[string]any) (*Decision, error) {
	now := s.now().UTC()

	grants, err := s.store.GetActiveGrantsByGrantee(ctx, subject, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants: %w", err)
	}

	for _, grant := range grants {
		if !grant.Active(now) {
			continue
		}
		if !grant.HasScope(action) {
			continue
		}
		// Resource-scoped grants are resource-exact.
		if grant.Resource != "" && resource != "" && grant.Resource != resource {
			continue
		}

		verdict, err := s.engine.Evaluate(ctx, policyInput(subject, action, resource, grant, checkCtx, now))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy: %w", err)
		}

		effect := s.cfg.DefaultEffect
		ruleID := ""
		if verdict.Fired != nil {
			effect = verdict.Effect
			ruleID = verdict.Fired.ID
		}
		if effect != policy.EffectAllow {
			// A deny on this grant does not end the search; another grant
			// may still authorize under a different rule match.
			continue
		}

		if s.cfg.TrustGate != nil {
			ok, err := s.cfg.TrustGate.HasSufficientTrust(ctx, subject, action)
			if err != nil {
				return nil, fmt.Errorf("failed to check trust level: %w", err)
			}
			if !ok {
				metrics.AuthzDecisions.WithLabelValues("deny", "insufficient_trust").Inc()
				return &Decision{Allowed: false, Reason: "Insufficient trust level for action"}, nil
			}
		}

		metrics.AuthzDecisions.WithLabelValues("allow", "granted").Inc()
		return &Decision{Allowed: true, Reason: "Permission granted", GrantID: grant.ID, RuleID: ruleID}, nil
	}

	metrics.AuthzDecisions.WithLabelValues("deny", "no_match").Inc()
	return &Decision{Allowed: false, Reason: ReasonNoMatch}, nil
}

// policyInput builds the read-only evaluation context for policy rules.
func policyInput(subject, action, resource string, grant *Grant, checkCtx map[string]any, now time.Time) policy.Input {
	grantView := map[string]any{
		"id":       grant.ID,
		"grantor":  grant.Grantor,
		"grantee":  grant.Grantee,
		"resource": grant.Resource,
	}
	scopes := make([]any, len(grant.Scopes))
	for i, sc := range grant.Scopes {
		scopes[i] = sc
	}
	grantView["scopes"] = scopes

	ctxView := map[string]any{}
	for k, v := range checkCtx {
		ctxView[k] = v
	}

	return policy.Input{
		"subject":  subject,
		"action":   action,
		"resource": resource,
		"grant":    grantView,
		"context":  ctxView,
		"now":      now.Unix(),
	}
}

// ValidateToken decodes and verifies a capability token: signature plus the
// iat/nbf/exp temporal claims. By default the originating grant is NOT
// re-checked (bearer semantics); with Config.RecheckGrant the grant store is
// consulted and a revoked or expired grant invalidates the token early.
func (s *Service) ValidateToken(ctx context.Context, token string) (*TokenValidation, error) {
	claims, err := parseToken(s.cfg.SigningKey, token, s.now)
	if err != nil {
		metrics.TokensValidated.WithLabelValues("invalid").Inc()
		return &TokenValidation{Valid: false, Error: err.Error()}, nil
	}

	if s.cfg.RecheckGrant && claims.GrantID != "" {
		grant, err := s.store.GetGrant(ctx, claims.GrantID)
		if err != nil {
			return nil, fmt.Errorf("failed to load grant: %w", err)
		}
		if !grant.Active(s.now().UTC()) {
			metrics.TokensValidated.WithLabelValues("grant_revoked").Inc()
			return &TokenValidation{Valid: false, Error: ErrTokenRevoked.Error()}, nil
		}
	}

	metrics.TokensValidated.WithLabelValues("valid").Inc()
	return &TokenValidation{Valid: true, Claims: claims}, nil
}

// Revoke sets RevokedAt on a grant. Only the grantor or the grantee may
// revoke. Revoking twice is a no-op at the storage layer, but the actor
// check still applies on every call.
func (s *Service) Revoke(ctx context.Context, grantID, revoker string) error {
	grant, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		return err
	}
	if revoker != grant.Grantor && revoker != grant.Grantee {
		return fmt.Errorf("%w: %s may not revoke grant %s", ErrUnauthorized, revoker, grantID)
	}
	if grant.RevokedAt != nil {
		return nil
	}
	if err := s.store.RevokeGrant(ctx, grantID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	s.log.Info("permission revoked",
		zap.String("grantId", grantID),
		zap.String("revoker", revoker))
	return nil
}
