// Package capability implements capability-based authorization between agent
// identities: scoped permission grants, compact signed capability tokens, and
// the permission check that combines grant state, scope matching, policy
// evaluation, and an optional trust gate.
package capability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScopeAdmin is the universal override scope: a grant carrying it authorizes
// every action.
const ScopeAdmin = "admin"

// Common errors returned by this package.
var (
	ErrNotFound     = errors.New("grant not found")
	ErrUnauthorized = errors.New("actor is not authorized")
)

// Grant is a scoped permission from grantor to grantee. Grants are never
// physically deleted; revocation sets RevokedAt so the audit trail survives.
type Grant struct {
	ID       string   `json:"id"`
	Grantor  string   `json:"grantor"`
	Grantee  string   `json:"grantee"`
	Scopes   []string `json:"scopes"`
	Resource string   `json:"resource,omitempty"`

	Conditions map[string]any `json:"conditions,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the grant is usable at the given instant: not
// revoked, and either unexpired or without expiry. A grant whose ExpiresAt
// equals now is already expired.
func (g *Grant) Active(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// HasScope reports whether the grant's scopes authorize action:
// exact containment, the admin override, or a namespace wildcard
// ("ns:*" matches "ns:anything").
func (g *Grant) HasScope(action string) bool {
	for _, s := range g.Scopes {
		if s == action || s == ScopeAdmin {
			return true
		}
	}
	if ns, _, ok := strings.Cut(action, ":"); ok {
		wildcard := ns + ":*"
		for _, s := range g.Scopes {
			if s == wildcard {
				return true
			}
		}
	}
	return false
}

// GrantResult is returned by Grant issuance: the persisted grant id plus a
// capability token minted for it.
type GrantResult struct {
	GrantID   string    `json:"grantId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Decision is an authorization verdict. Denials are values, not errors, so
// callers branch on the verdict without exception handling.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`

	// GrantID identifies the grant that authorized the action, when allowed.
	GrantID string `json:"grantId,omitempty"`

	// RuleID identifies the policy rule that produced the verdict, if any.
	RuleID string `json:"ruleId,omitempty"`
}

// ReasonNoMatch is the reason attached to a denial when no grant authorizes
// the requested action.
const ReasonNoMatch = "No matching permission found"

// String renders the decision for logs.
func (d Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf("allowed (grant %s)", d.GrantID)
	}
	return "denied: " + d.Reason
}
