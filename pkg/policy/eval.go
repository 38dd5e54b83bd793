package policy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEvaluation wraps condition evaluation failures: unknown fields,
// type mismatches, malformed expressions. A rule whose condition fails to
// evaluate does not fire; evaluation continues with the next rule.
var ErrEvaluation = errors.New("policy evaluation failed")

// Input is the read-only context a condition is evaluated against. Fields
// are addressed by dotted path: "subject", "action", "resource",
// "grant.<field>", "context.<key>", "now" (Unix seconds).
type Input map[string]any

// Evaluate walks the expression tree and returns the boolean result.
func (c *Condition) Evaluate(in Input) (bool, error) {
	switch {
	case c == nil:
		return false, fmt.Errorf("%w: nil condition", ErrEvaluation)

	case len(c.All) > 0:
		for _, sub := range c.All {
			ok, err := sub.Evaluate(in)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case len(c.Any) > 0:
		for _, sub := range c.Any {
			ok, err := sub.Evaluate(in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case c.Not != nil:
		ok, err := c.Not.Evaluate(in)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case c.Field != "":
		return evalLeaf(c, in)

	default:
		return false, fmt.Errorf("%w: empty condition", ErrEvaluation)
	}
}

func evalLeaf(c *Condition, in Input) (bool, error) {
	value, ok := lookup(in, c.Field)
	if !ok {
		return false, fmt.Errorf("%w: unknown field %q", ErrEvaluation, c.Field)
	}

	switch c.Op {
	case OpEq:
		return equal(value, c.Value), nil
	case OpNe:
		return !equal(value, c.Value), nil
	case OpLt, OpLe, OpGt, OpGe:
		return compareOrdered(c.Op, value, c.Value)
	case OpIn:
		return member(value, c.Value)
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrEvaluation, c.Op)
	}
}

// lookup resolves a dotted path through nested maps.
func lookup(in Input, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = map[string]any(in)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// equal compares scalars; numbers compare by value across numeric types.
func equal(a, b any) bool {
	if fa, oka := toFloat(a); oka {
		if fb, okb := toFloat(b); okb {
			return fa == fb
		}
		return false
	}
	return a == b
}

func compareOrdered(op Op, a, b any) (bool, error) {
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	if oka && okb {
		switch op {
		case OpLt:
			return fa < fb, nil
		case OpLe:
			return fa <= fb, nil
		case OpGt:
			return fa > fb, nil
		case OpGe:
			return fa >= fb, nil
		}
	}

	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		switch op {
		case OpLt:
			return sa < sb, nil
		case OpLe:
			return sa <= sb, nil
		case OpGt:
			return sa > sb, nil
		case OpGe:
			return sa >= sb, nil
		}
	}

	return false, fmt.Errorf("%w: %q requires two numbers or two strings", ErrEvaluation, op)
}

// member reports whether value appears in list.
func member(value, list any) (bool, error) {
	items, ok := toSlice(list)
	if !ok {
		return false, fmt.Errorf("%w: %q requires a list value", ErrEvaluation, OpIn)
	}
	for _, item := range items {
		if equal(value, item) {
			return true, nil
		}
	}
	return false, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}
