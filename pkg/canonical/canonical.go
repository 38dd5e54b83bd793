// Package canonical produces deterministic byte representations of structured
// records for signing and verification. Two records with the same keys and
// values canonicalize identically regardless of field insertion order, which
// is what makes signatures portable between implementations.
package canonical

import (
	"encoding/json"
	"fmt"
)

// Marshal returns the canonical JSON encoding of v. Object keys are sorted
// lexicographically at every nesting level.
//
// The record is first marshalled through its json tags, then re-marshalled
// from a generic map: encoding/json emits map keys in sorted order, which
// yields the canonical form at every level of nesting.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return canonicalizeRaw(data)
}

// MarshalWithout returns the canonical JSON encoding of v with the named
// top-level fields removed. Used to build signing payloads: a credential is
// signed over its canonical form with the proof field stripped.
func MarshalWithout(v any, fields ...string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	for _, f := range fields {
		delete(raw, f)
	}

	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}
	return out, nil
}

// canonicalizeRaw round-trips raw JSON through a generic value so that maps
// are re-emitted with sorted keys.
func canonicalizeRaw(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into generic value: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}
	return out, nil
}
