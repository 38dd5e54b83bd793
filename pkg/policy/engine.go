package policy

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Verdict is the result of evaluating the rule set against one input.
type Verdict struct {
	// Fired is the rule that produced the effect, or nil when no rule fired.
	Fired *Rule

	// Effect is the fired rule's effect; meaningless when Fired is nil.
	Effect Effect

	// Skipped records rules whose conditions failed to evaluate.
	Skipped []string
}

// Engine manages the rule set and evaluates it.
type Engine struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// NewEngine creates a policy Engine backed by the given rule store.
func NewEngine(store Store, cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, log: log, now: now}
}

// AddRule persists a rule. An empty ID is assigned a fresh UUID. The store
// assigns the insertion sequence number, which fixes the tiebreak order for
// equal priorities across processes and restarts. Rules are added active;
// deactivation goes through the store.
func (e *Engine) AddRule(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.Created = e.now().UTC()
	rule.Active = true
	if rule.Effect == "" {
		rule.Effect = EffectAllow
	}
	if err := e.store.StoreRule(ctx, rule); err != nil {
		return nil, err
	}
	e.log.Info("policy rule added",
		zap.String("ruleId", rule.ID),
		zap.String("name", rule.Name),
		zap.Int("priority", rule.Priority))
	return rule, nil
}

// RemoveRule deletes a rule by id.
func (e *Engine) RemoveRule(ctx context.Context, id string) error {
	return e.store.RemoveRule(ctx, id)
}

// ListRules returns the rule set ordered by priority descending, sequence
// ascending.
func (e *Engine) ListRules(ctx context.Context) ([]*Rule, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	SortRules(rules)
	return rules, nil
}

// Evaluate runs active rules in order until one produces a definite boolean.
// That rule's effect is the verdict. Rules whose conditions fail to evaluate
// are skipped, never abort the check. When no rule fires, Verdict.Fired is
// nil and the caller applies its configured default effect.
func (e *Engine) Evaluate(ctx context.Context, in Input) (*Verdict, error) {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	SortRules(rules)

	verdict := &Verdict{}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		ok, err := rule.Condition.Evaluate(in)
		if err != nil {
			// Per the fail-soft contract the rule simply does not fire.
			verdict.Skipped = append(verdict.Skipped, rule.ID)
			e.log.Warn("policy rule condition failed to evaluate",
				zap.String("ruleId", rule.ID),
				zap.Error(err))
			continue
		}
		if ok {
			verdict.Fired = rule
			verdict.Effect = rule.Effect
			return verdict, nil
		}
	}
	return verdict, nil
}

// SortRules orders rules by priority descending, then sequence ascending.
// The sequence tiebreak makes evaluation order deterministic for rules that
// share a priority.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Sequence < rules[j].Sequence
	})
}
