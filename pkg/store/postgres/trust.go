package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agentauth/agentauth-core/pkg/trust"
)

// UpsertScore overwrites the agent's trust score record.
func (s *Store) UpsertScore(ctx context.Context, score *trust.Score) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	recs, err := json.Marshal(score.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	const q = `
		INSERT INTO trust_scores (agent_did, score, level, factors, calculated_at, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (agent_did) DO UPDATE SET
			score = EXCLUDED.score,
			level = EXCLUDED.level,
			factors = EXCLUDED.factors,
			calculated_at = EXCLUDED.calculated_at,
			recommendations = EXCLUDED.recommendations`

	_, err = s.pool.Exec(ctx, q,
		score.AgentDID, score.Score, string(score.Level), factors,
		score.CalculatedAt, recs)
	return err
}

// GetScore returns the last computed score for an agent.
func (s *Store) GetScore(ctx context.Context, agentDID string) (*trust.Score, error) {
	const q = `
		SELECT agent_did, score, level, factors, calculated_at, recommendations
		FROM trust_scores WHERE agent_did = $1`

	var score trust.Score
	var level string
	var factors, recs []byte
	err := s.pool.QueryRow(ctx, q, agentDID).Scan(
		&score.AgentDID, &score.Score, &level, &factors, &score.CalculatedAt, &recs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("no score for %s", agentDID)
	}
	if err != nil {
		return nil, err
	}
	score.Level = trust.Level(level)
	if err := json.Unmarshal(factors, &score.Factors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
	}
	if err := json.Unmarshal(recs, &score.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	return &score, nil
}

// ReadIdentityFactors reports identity verification and longevity. The
// reads below are independent single-row aggregates, not one transaction;
// scores tolerate a slightly inconsistent snapshot.
func (s *Store) ReadIdentityFactors(ctx context.Context, agentDID string) (bool, time.Duration, float64, error) {
	const q = `
		SELECT superseded, created, COALESCE(active_hours, 0)
		FROM identities
		LEFT JOIN agent_activity ON agent_activity.agent_did = identities.did
		WHERE did = $1`

	var superseded bool
	var created time.Time
	var activeHours float64
	err := s.pool.QueryRow(ctx, q, agentDID).Scan(&superseded, &created, &activeHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, 0, nil
	}
	if err != nil {
		return false, 0, 0, err
	}
	return !superseded, time.Since(created), activeHours, nil
}

// ReadCredentialTypes returns the distinct schema names of non-revoked
// credentials held by the agent.
func (s *Store) ReadCredentialTypes(ctx context.Context, agentDID string) ([]string, error) {
	const q = `
		SELECT DISTINCT schema_name
		FROM credentials
		WHERE subject = $1
		  AND id NOT IN (SELECT credential_id FROM credential_revocations)`

	rows, err := s.pool.Query(ctx, q, agentDID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ReadInteractionCounts returns the agent's interaction tallies.
func (s *Store) ReadInteractionCounts(ctx context.Context, agentDID string) (int, int, *time.Time, error) {
	const q = `
		SELECT successful, failed, last_interaction
		FROM agent_interactions WHERE agent_did = $1`

	var successful, failed int
	var last *time.Time
	err := s.pool.QueryRow(ctx, q, agentDID).Scan(&successful, &failed, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil, nil
	}
	if err != nil {
		return 0, 0, nil, err
	}
	return successful, failed, last, nil
}

// ReadReputationCounts returns the agent's reputation tallies.
func (s *Store) ReadReputationCounts(ctx context.Context, agentDID string) (int, int, error) {
	const q = `
		SELECT endorsements, violations
		FROM agent_reputation WHERE agent_did = $1`

	var endorsements, violations int
	err := s.pool.QueryRow(ctx, q, agentDID).Scan(&endorsements, &violations)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return endorsements, violations, nil
}
