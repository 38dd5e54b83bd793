package trust

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/agentauth/agentauth-core/internal/metrics"
)

// FactorSource reads the aggregates a score is computed from. The reads are
// independent, not transactional; the resulting snapshot may be slightly
// inconsistent and the score is eventual, not causal.
type FactorSource interface {
	ReadIdentityFactors(ctx context.Context, agentDID string) (verified bool, accountAge time.Duration, activeHours float64, err error)
	ReadCredentialTypes(ctx context.Context, agentDID string) ([]string, error)
	ReadInteractionCounts(ctx context.Context, agentDID string) (successful, failed int, last *time.Time, err error)
	ReadReputationCounts(ctx context.Context, agentDID string) (endorsements, violations int, err error)
}

// ScoreStore persists the latest computed score per agent.
type ScoreStore interface {
	UpsertScore(ctx context.Context, score *Score) error
	GetScore(ctx context.Context, agentDID string) (*Score, error)
}

// DefaultCacheTTL bounds how long a computed score is served from cache.
const DefaultCacheTTL = 1 * time.Minute

// Config holds service configuration.
type Config struct {
	// RequiredLevels maps logical action names to their minimum trust
	// level. Merged over DefaultRequiredLevels; unknown actions require
	// VERIFIED.
	RequiredLevels map[string]Level

	// CacheTTL bounds the score read-through cache. Defaults to
	// DefaultCacheTTL; negative disables caching.
	CacheTTL time.Duration

	// Logger for structured logging. Defaults to zap.NewNop().
	Logger *zap.Logger

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// DefaultRequiredLevels is the static action → minimum level map.
var DefaultRequiredLevels = map[string]Level{
	"read":             LevelBasic,
	"write":            LevelVerified,
	"delete":           LevelTrusted,
	"grant":            LevelTrusted,
	"revoke":           LevelTrusted,
	"issue_credential": LevelTrusted,
	"admin":            LevelPrivileged,
}

// Service computes, caches, and persists trust scores.
type Service struct {
	source FactorSource
	store  ScoreStore
	levels map[string]Level
	cache  *gocache.Cache
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a trust scoring Service.
func NewService(source FactorSource, store ScoreStore, cfg Config) *Service {
	levels := make(map[string]Level, len(DefaultRequiredLevels)+len(cfg.RequiredLevels))
	for k, v := range DefaultRequiredLevels {
		levels[k] = v
	}
	for k, v := range cfg.RequiredLevels {
		levels[k] = v
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	var cache *gocache.Cache
	if ttl > 0 {
		cache = gocache.New(ttl, 2*ttl)
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{source: source, store: store, levels: levels, cache: cache, log: log, now: now}
}

// ComputeScore gathers factors, computes the score, persists it (upsert,
// overwriting the previous value), and returns it. The cached value, when
// fresh, is returned without recomputation.
func (s *Service) ComputeScore(ctx context.Context, agentDID string) (*Score, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(agentDID); ok {
			return cached.(*Score), nil
		}
	}

	factors, err := s.collectFactors(ctx, agentDID)
	if err != nil {
		return nil, err
	}

	value := Compute(*factors)
	score := &Score{
		AgentDID:        agentDID,
		Score:           value,
		Level:           DetermineLevel(value),
		Factors:         *factors,
		CalculatedAt:    s.now().UTC(),
		Recommendations: Recommendations(*factors, value),
	}

	if err := s.store.UpsertScore(ctx, score); err != nil {
		return nil, fmt.Errorf("failed to upsert score: %w", err)
	}
	if s.cache != nil {
		s.cache.SetDefault(agentDID, score)
	}

	metrics.TrustScores.Observe(value)
	s.log.Debug("trust score computed",
		zap.String("agentDid", agentDID),
		zap.Float64("score", value),
		zap.String("level", string(score.Level)))
	return score, nil
}

// Invalidate drops the cached score for an agent, forcing the next
// ComputeScore to read fresh factors.
func (s *Service) Invalidate(agentDID string) {
	if s.cache != nil {
		s.cache.Delete(agentDID)
	}
}

// RequiredLevel returns the minimum trust level for a logical action.
// Unknown actions default to VERIFIED.
func (s *Service) RequiredLevel(action string) Level {
	if lvl, ok := s.levels[action]; ok {
		return lvl
	}
	return LevelVerified
}

// HasSufficientTrust recomputes the agent's score and compares its level
// against the action's required level.
func (s *Service) HasSufficientTrust(ctx context.Context, agentDID, action string) (bool, error) {
	score, err := s.ComputeScore(ctx, agentDID)
	if err != nil {
		return false, err
	}
	return score.Level.AtLeast(s.RequiredLevel(action)), nil
}

// collectFactors reads the independent aggregates behind a score.
func (s *Service) collectFactors(ctx context.Context, agentDID string) (*Factors, error) {
	verified, age, activeHours, err := s.source.ReadIdentityFactors(ctx, agentDID)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity factors: %w", err)
	}
	credTypes, err := s.source.ReadCredentialTypes(ctx, agentDID)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential types: %w", err)
	}
	successful, failed, last, err := s.source.ReadInteractionCounts(ctx, agentDID)
	if err != nil {
		return nil, fmt.Errorf("failed to read interaction counts: %w", err)
	}
	endorsements, violations, err := s.source.ReadReputationCounts(ctx, agentDID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation counts: %w", err)
	}

	return &Factors{
		IdentityVerified:     verified,
		CredentialsValidated: credTypes,
		Interactions: InteractionHistory{
			Successful:      successful,
			Failed:          failed,
			LastInteraction: last,
		},
		Reputation: Reputation{Endorsements: endorsements, Violations: violations},
		Time: TimeFactors{
			AccountAgeDays: age.Hours() / 24,
			ActiveHours:    activeHours,
		},
	}, nil
}
