package integration

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/capability"
	"github.com/agentauth/agentauth-core/pkg/credential"
	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/agentauth/agentauth-core/pkg/policy"
	"github.com/agentauth/agentauth-core/pkg/pop"
	"github.com/agentauth/agentauth-core/pkg/store"
	"github.com/agentauth/agentauth-core/pkg/trust"
)

// world wires the full service graph against one in-memory store, the way
// the CLI does.
type world struct {
	store       *store.Memory
	identities  *identity.Manager
	credentials *credential.Service
	policies    *policy.Engine
	caps        *capability.Service
	scores      *trust.Service
}

func newWorld(t *testing.T) *world {
	t.Helper()
	mem := store.NewMemory()
	engine := policy.NewEngine(mem, policy.EngineConfig{})
	scores := trust.NewService(mem, mem, trust.Config{CacheTTL: -1})
	return &world{
		store:       mem,
		identities:  identity.NewManager(mem, identity.Config{}),
		credentials: credential.NewService(mem, credential.Config{}),
		policies:    engine,
		caps: capability.NewService(mem, engine, capability.Config{
			SigningKey: capability.SigningKey{Secret: []byte("integration-secret")},
		}),
		scores: scores,
	}
}

// TestDelegationLifecycle walks the full flow: two agents come into
// existence, one grants the other a capability, the grant is exercised,
// then revoked, and the revocation takes effect.
func TestDelegationLifecycle(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	alice, err := w.identities.Create(ctx)
	require.NoError(t, err)
	bob, err := w.identities.Create(ctx)
	require.NoError(t, err)

	result, err := w.caps.Grant(ctx, alice.DID, bob.DID, []string{"read"},
		capability.GrantOptions{Resource: "doc:1"})
	require.NoError(t, err)

	validation, err := w.caps.ValidateToken(ctx, result.Token)
	require.NoError(t, err)
	assert.True(t, validation.Valid)

	decision, err := w.caps.Check(ctx, bob.DID, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = w.caps.Check(ctx, bob.DID, "write", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	require.NoError(t, w.caps.Revoke(ctx, result.GrantID, alice.DID))

	decision, err = w.caps.Check(ctx, bob.DID, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// TestCredentialFeedTrust issues credentials to an agent and checks they
// raise its trust score until capability checks behind a trust gate pass.
func TestCredentialFeedTrust(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	issuer, err := w.identities.Create(ctx)
	require.NoError(t, err)
	agent, err := w.identities.Create(ctx)
	require.NoError(t, err)

	_, err = w.credentials.RegisterSchema(ctx, &credential.Schema{
		Name: "Certification",
		Properties: map[string]credential.Property{
			"level": {Type: "string", Required: true},
		},
	})
	require.NoError(t, err)

	before, err := w.scores.ComputeScore(ctx, agent.DID)
	require.NoError(t, err)

	cred, err := w.credentials.Issue(ctx, "Certification", agent.DID,
		map[string]any{"level": "gold"}, issuer.DID, issuer.PrivateKey, credential.IssueOptions{})
	require.NoError(t, err)

	verification, err := w.credentials.Verify(ctx, cred, credential.VerifyOptions{})
	require.NoError(t, err)
	require.True(t, verification.Valid)

	after, err := w.scores.ComputeScore(ctx, agent.DID)
	require.NoError(t, err)
	assert.Greater(t, after.Score, before.Score)
	assert.Contains(t, after.Factors.CredentialsValidated, "Certification")

	// Revoking the credential pulls the factor back out.
	require.NoError(t, w.credentials.Revoke(ctx, cred.ID, issuer.DID, "testing"))
	final, err := w.scores.ComputeScore(ctx, agent.DID)
	require.NoError(t, err)
	assert.NotContains(t, final.Factors.CredentialsValidated, "Certification")
}

// TestTrustGatedAuthorization drives Check through the real trust service.
func TestTrustGatedAuthorization(t *testing.T) {
	mem := store.NewMemory()
	engine := policy.NewEngine(mem, policy.EngineConfig{})
	scores := trust.NewService(mem, mem, trust.Config{CacheTTL: -1})
	caps := capability.NewService(mem, engine, capability.Config{
		SigningKey: capability.SigningKey{Secret: []byte("integration-secret")},
		TrustGate:  scores,
	})
	identities := identity.NewManager(mem, identity.Config{})
	ctx := context.Background()

	alice, err := identities.Create(ctx)
	require.NoError(t, err)
	bob, err := identities.Create(ctx)
	require.NoError(t, err)

	_, err = caps.Grant(ctx, alice.DID, bob.DID, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	// A verified identity alone clears the BASIC bar for reads.
	decision, err := caps.Check(ctx, bob.DID, "read", "", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// An agent with no identity record scores 0.0 and fails the gate even
	// with an explicit grant.
	ghost := "did:key:zGhost"
	_, err = caps.Grant(ctx, alice.DID, ghost, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	decision, err = caps.Check(ctx, ghost, "read", "", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Insufficient trust level for action", decision.Reason)
}

// TestPolicyShapesDecisions layers deny rules over otherwise valid grants.
func TestPolicyShapesDecisions(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	alice, err := w.identities.Create(ctx)
	require.NoError(t, err)
	bob, err := w.identities.Create(ctx)
	require.NoError(t, err)

	_, err = w.policies.AddRule(ctx, &policy.Rule{
		Name:     "deny-outside-business-hours",
		Effect:   policy.EffectDeny,
		Priority: 100,
		Condition: &policy.Condition{
			Any: []*policy.Condition{
				{Field: "context.hour", Op: policy.OpLt, Value: 8},
				{Field: "context.hour", Op: policy.OpGe, Value: 18},
			},
		},
	})
	require.NoError(t, err)

	_, err = w.caps.Grant(ctx, alice.DID, bob.DID, []string{"deploy"}, capability.GrantOptions{})
	require.NoError(t, err)

	decision, err := w.caps.Check(ctx, bob.DID, "deploy", "", map[string]any{"hour": 14})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = w.caps.Check(ctx, bob.DID, "deploy", "", map[string]any{"hour": 22})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// TestRotationKeepsOldDIDResolvable rotates an identity and confirms both
// halves of the contract: the successor signs, the predecessor resolves.
func TestRotationKeepsOldDIDResolvable(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()

	agent, err := w.identities.Create(ctx)
	require.NoError(t, err)

	successor, err := w.identities.Rotate(ctx, agent.DID)
	require.NoError(t, err)

	old, err := w.identities.Resolve(ctx, agent.DID)
	require.NoError(t, err)
	assert.True(t, old.Superseded)
	assert.Equal(t, successor.DID, old.SupersededBy)

	// The successor key proves possession of the new DID.
	challenge, err := pop.NewChallenge(successor.DID, time.Minute)
	require.NoError(t, err)
	response, err := pop.Respond(challenge, ed25519.PrivateKey(successor.PrivateKey))
	require.NoError(t, err)
	assert.NoError(t, pop.VerifyResponse(challenge, response, time.Now()))

	// The old key cannot answer for the new DID.
	forged, err := pop.Respond(challenge, ed25519.PrivateKey(agent.PrivateKey))
	require.NoError(t, err)
	assert.ErrorIs(t, pop.VerifyResponse(challenge, forged, time.Now()), pop.ErrSignatureInvalid)
}
