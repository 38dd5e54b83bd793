// Package policy evaluates prioritized allow/deny rules against permission
// checks. Rule conditions are structured expressions over a fixed grammar
// (field comparisons, boolean combinators, set membership) evaluated on a
// read-only context, never executable code, so rules from operators cannot
// become an injection surface.
package policy

import (
	"context"
	"time"
)

// Effect is a rule's verdict when its condition fires.
type Effect string

// Rule effects.
const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Rule is a prioritized condition/effect pair. Rules are evaluated in
// priority-descending order; ties are broken by Sequence ascending, the
// order rules were added.
type Rule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Condition *Condition `json:"condition"`
	Effect    Effect     `json:"effect"`
	Priority  int        `json:"priority"`
	Active    bool       `json:"active"`

	// Sequence is assigned at insertion and makes the rule order total.
	Sequence int64     `json:"sequence"`
	Created  time.Time `json:"created"`
}

// Condition is a node in the expression tree. Exactly one of the leaf
// fields (Field+Op) or the combinators (All/Any/Not) must be populated.
type Condition struct {
	// Leaf: compare the value at Field against Value using Op.
	// Field is a dotted path into the evaluation context,
	// e.g. "action", "grant.resource", "context.region".
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	// Combinators.
	All []*Condition `json:"all,omitempty"`
	Any []*Condition `json:"any,omitempty"`
	Not *Condition   `json:"not,omitempty"`
}

// Op is a leaf comparison operator.
type Op string

// Comparison operators.
const (
	OpEq Op = "eq"
	OpNe Op = "ne"
	OpLt Op = "lt"
	OpLe Op = "le"
	OpGt Op = "gt"
	OpGe Op = "ge"

	// OpIn tests membership of the field value in a list Value.
	OpIn Op = "in"
)

// Store is the persistence contract for rules.
type Store interface {
	// StoreRule persists a rule. A zero Sequence is assigned by the store,
	// monotonically over the stored rule set, and written back to the rule.
	// Per-store assignment keeps the tiebreak order stable across engine
	// instances and restarts.
	StoreRule(ctx context.Context, rule *Rule) error
	RemoveRule(ctx context.Context, id string) error

	// ListRules returns rules ordered by priority descending, then by
	// sequence ascending.
	ListRules(ctx context.Context) ([]*Rule, error)
}
