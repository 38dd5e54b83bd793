package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agentauth/agentauth-core/pkg/policy"
)

// StoreRule persists a policy rule. A zero sequence is assigned from the
// database sequence, so the tiebreak order survives process restarts and
// concurrent writers; the assigned value is written back to the rule.
func (s *Store) StoreRule(ctx context.Context, rule *policy.Rule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to marshal condition: %w", err)
	}

	const q = `
		INSERT INTO policy_rules (id, name, condition, effect, priority, active, sequence, created)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE(NULLIF($7::BIGINT, 0), nextval('policy_rule_seq')), $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			condition = EXCLUDED.condition,
			effect = EXCLUDED.effect,
			priority = EXCLUDED.priority,
			active = EXCLUDED.active
		RETURNING sequence`

	return s.pool.QueryRow(ctx, q,
		rule.ID, rule.Name, condition, string(rule.Effect),
		rule.Priority, rule.Active, rule.Sequence, rule.Created).Scan(&rule.Sequence)
}

// RemoveRule deletes a rule by id.
func (s *Store) RemoveRule(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM policy_rules WHERE id = $1`, id)
	return err
}

// ListRules returns rules ordered by priority descending, sequence ascending.
func (s *Store) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	const q = `
		SELECT id, name, condition, effect, priority, active, sequence, created
		FROM policy_rules
		ORDER BY priority DESC, sequence ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*policy.Rule
	for rows.Next() {
		var rule policy.Rule
		var condition []byte
		var effect string
		if err := rows.Scan(&rule.ID, &rule.Name, &condition, &effect,
			&rule.Priority, &rule.Active, &rule.Sequence, &rule.Created); err != nil {
			return nil, err
		}
		rule.Effect = policy.Effect(effect)
		if err := json.Unmarshal(condition, &rule.Condition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal condition: %w", err)
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}
