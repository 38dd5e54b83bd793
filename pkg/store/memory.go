// Package store provides storage backends for the authorization core.
// Memory is the reference implementation used by tests and the CLI;
// the postgres and redis subpackages back production deployments.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentauth/agentauth-core/pkg/capability"
	"github.com/agentauth/agentauth-core/pkg/credential"
	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/agentauth/agentauth-core/pkg/policy"
	"github.com/agentauth/agentauth-core/pkg/trust"
)

// ErrNotFound is returned for unknown rule and score ids.
var ErrNotFound = errors.New("not found")

// Memory is an in-process store implementing every persistence contract the
// core defines. Safe for concurrent use; per-entry mutations are atomic
// under the single mutex, which gives read-committed visibility: a revocation
// that returns is visible to every later read.
type Memory struct {
	mu sync.RWMutex

	identities  map[string]*identity.Record
	credentials map[string]*credential.Credential
	revocations map[string]*credential.Revocation
	schemasByID map[string]*credential.Schema
	schemaNames map[string]string // name → id
	grants      map[string]*capability.Grant
	rules       map[string]*policy.Rule
	ruleSeq     int64
	scores      map[string]*trust.Score

	interactions map[string]*interactionCounts
	reputation   map[string]*reputationCounts
	activeHours  map[string]float64
}

type interactionCounts struct {
	successful, failed int
	last               *time.Time
}

type reputationCounts struct {
	endorsements, violations int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		identities:   make(map[string]*identity.Record),
		credentials:  make(map[string]*credential.Credential),
		revocations:  make(map[string]*credential.Revocation),
		schemasByID:  make(map[string]*credential.Schema),
		schemaNames:  make(map[string]string),
		grants:       make(map[string]*capability.Grant),
		rules:        make(map[string]*policy.Rule),
		scores:       make(map[string]*trust.Score),
		interactions: make(map[string]*interactionCounts),
		reputation:   make(map[string]*reputationCounts),
		activeHours:  make(map[string]float64),
	}
}

// --- identity.Store ---

// StoreIdentity persists an identity record.
func (m *Memory) StoreIdentity(_ context.Context, rec *identity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.identities[rec.DID] = &cp
	return nil
}

// GetIdentity returns the record for a DID.
func (m *Memory) GetIdentity(_ context.Context, didStr string) (*identity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.identities[didStr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrNotFound, didStr)
	}
	cp := *rec
	return &cp, nil
}

// MarkSuperseded records a rotation: the old record stays resolvable.
func (m *Memory) MarkSuperseded(_ context.Context, didStr, successorDID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.identities[didStr]
	if !ok {
		return fmt.Errorf("%w: %s", identity.ErrNotFound, didStr)
	}
	rec.Superseded = true
	rec.SupersededAt = &at
	rec.SupersededBy = successorDID
	return nil
}

// --- credential.Store ---

// StoreCredential persists a credential. Credentials are append-only.
func (m *Memory) StoreCredential(_ context.Context, cred *credential.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cred
	m.credentials[cred.ID] = &cp
	return nil
}

// GetCredential returns a credential by id.
func (m *Memory) GetCredential(_ context.Context, id string) (*credential.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.credentials[id]
	if !ok {
		return nil, fmt.Errorf("%w: credential %s", credential.ErrNotFound, id)
	}
	cp := *cred
	return &cp, nil
}

// StoreRevocation appends to the revocation side-table. Idempotent.
func (m *Memory) StoreRevocation(_ context.Context, rev *credential.Revocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revocations[rev.CredentialID]; !ok {
		m.revocations[rev.CredentialID] = rev
	}
	return nil
}

// IsRevoked reports whether a credential id is in the revocation table.
func (m *Memory) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, revoked := m.revocations[id]
	return revoked, nil
}

// StoreSchema registers a schema. Schemas are immutable once registered:
// an existing id or name is rejected.
func (m *Memory) StoreSchema(_ context.Context, schema *credential.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemasByID[schema.ID]; ok {
		return fmt.Errorf("%w: id %s", credential.ErrSchemaExists, schema.ID)
	}
	if _, ok := m.schemaNames[schema.Name]; ok {
		return fmt.Errorf("%w: name %s", credential.ErrSchemaExists, schema.Name)
	}
	cp := *schema
	m.schemasByID[schema.ID] = &cp
	m.schemaNames[schema.Name] = schema.ID
	return nil
}

// GetSchema looks a schema up by id or name.
func (m *Memory) GetSchema(_ context.Context, idOrName string) (*credential.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if schema, ok := m.schemasByID[idOrName]; ok {
		cp := *schema
		return &cp, nil
	}
	if id, ok := m.schemaNames[idOrName]; ok {
		cp := *m.schemasByID[id]
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: schema %s", credential.ErrNotFound, idOrName)
}

// ListSchemas returns all registered schemas.
func (m *Memory) ListSchemas(_ context.Context) ([]*credential.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*credential.Schema, 0, len(m.schemasByID))
	for _, s := range m.schemasByID {
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

// --- capability.Store ---

// StoreGrant persists a grant.
func (m *Memory) StoreGrant(_ context.Context, grant *capability.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *grant
	m.grants[grant.ID] = &cp
	return nil
}

// GetGrant returns a grant by id.
func (m *Memory) GetGrant(_ context.Context, id string) (*capability.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grant, ok := m.grants[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotFound, id)
	}
	cp := *grant
	return &cp, nil
}

// GetActiveGrantsByGrantee returns the grantee's grants that are active at
// the given instant.
func (m *Memory) GetActiveGrantsByGrantee(_ context.Context, grantee string, now time.Time) ([]*capability.Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*capability.Grant
	for _, grant := range m.grants {
		if grant.Grantee == grantee && grant.Active(now) {
			cp := *grant
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RevokeGrant sets RevokedAt. A second revocation is a no-op.
func (m *Memory) RevokeGrant(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grant, ok := m.grants[id]
	if !ok {
		return fmt.Errorf("%w: %s", capability.ErrNotFound, id)
	}
	if grant.RevokedAt == nil {
		grant.RevokedAt = &at
	}
	return nil
}

// --- policy.Store ---

// StoreRule persists a policy rule, assigning the insertion sequence when
// the rule carries none. The counter tracks the highest stored sequence, so
// explicitly sequenced rules never collide with later assignments.
func (m *Memory) StoreRule(_ context.Context, rule *policy.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.Sequence == 0 {
		m.ruleSeq++
		rule.Sequence = m.ruleSeq
	} else if rule.Sequence > m.ruleSeq {
		m.ruleSeq = rule.Sequence
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

// RemoveRule deletes a rule by id.
func (m *Memory) RemoveRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return fmt.Errorf("%w: rule %s", ErrNotFound, id)
	}
	delete(m.rules, id)
	return nil
}

// ListRules returns all rules ordered by priority descending, sequence
// ascending.
func (m *Memory) ListRules(_ context.Context) ([]*policy.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*policy.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	policy.SortRules(out)
	return out, nil
}

// --- trust.ScoreStore ---

// UpsertScore overwrites the agent's score record.
func (m *Memory) UpsertScore(_ context.Context, score *trust.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.AgentDID] = score
	return nil
}

// GetScore returns the last computed score for an agent.
func (m *Memory) GetScore(_ context.Context, agentDID string) (*trust.Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.scores[agentDID]
	if !ok {
		return nil, fmt.Errorf("%w: score for %s", ErrNotFound, agentDID)
	}
	return score, nil
}

// --- trust.FactorSource ---

// ReadIdentityFactors reports identity verification and longevity for an
// agent. An agent with a stored, non-superseded identity counts as verified.
func (m *Memory) ReadIdentityFactors(_ context.Context, agentDID string) (bool, time.Duration, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.identities[agentDID]
	if !ok {
		return false, 0, 0, nil
	}
	return !rec.Superseded, time.Since(rec.Created), m.activeHours[agentDID], nil
}

// ReadCredentialTypes returns the schema types of non-revoked credentials
// held by the agent.
func (m *Memory) ReadCredentialTypes(_ context.Context, agentDID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, cred := range m.credentials {
		if cred.Subject != agentDID {
			continue
		}
		if _, revoked := m.revocations[cred.ID]; revoked {
			continue
		}
		name := cred.SchemaName()
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// ReadInteractionCounts returns the agent's interaction tallies.
func (m *Memory) ReadInteractionCounts(_ context.Context, agentDID string) (int, int, *time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.interactions[agentDID]
	if !ok {
		return 0, 0, nil, nil
	}
	return c.successful, c.failed, c.last, nil
}

// ReadReputationCounts returns the agent's reputation tallies.
func (m *Memory) ReadReputationCounts(_ context.Context, agentDID string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reputation[agentDID]
	if !ok {
		return 0, 0, nil
	}
	return r.endorsements, r.violations, nil
}

// --- factor feeds (interaction-history collaborator) ---

// RecordInteraction tallies one interaction outcome for an agent.
func (m *Memory) RecordInteraction(agentDID string, success bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.interactions[agentDID]
	if !ok {
		c = &interactionCounts{}
		m.interactions[agentDID] = c
	}
	if success {
		c.successful++
	} else {
		c.failed++
	}
	c.last = &at
}

// RecordEndorsement adds a reputation endorsement.
func (m *Memory) RecordEndorsement(agentDID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rep(agentDID).endorsements++
}

// RecordViolation adds a reputation violation.
func (m *Memory) RecordViolation(agentDID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rep(agentDID).violations++
}

// SetActiveHours records an agent's cumulative active hours.
func (m *Memory) SetActiveHours(agentDID string, hours float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeHours[agentDID] = hours
}

func (m *Memory) rep(agentDID string) *reputationCounts {
	r, ok := m.reputation[agentDID]
	if !ok {
		r = &reputationCounts{}
		m.reputation[agentDID] = r
	}
	return r
}
