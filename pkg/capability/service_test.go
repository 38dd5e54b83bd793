package capability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/capability"
	"github.com/agentauth/agentauth-core/pkg/policy"
	"github.com/agentauth/agentauth-core/pkg/store"
)

const (
	agentA = "did:key:z6MkAgentA"
	agentB = "did:key:z6MkAgentB"
)

func newService(t *testing.T, cfg capability.Config) (*capability.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	engine := policy.NewEngine(mem, policy.EngineConfig{})
	if len(cfg.SigningKey.Secret) == 0 && len(cfg.SigningKey.Private) == 0 {
		cfg.SigningKey = capability.SigningKey{Secret: []byte("test-secret")}
	}
	return capability.NewService(mem, engine, cfg), mem
}

func TestGrantAndCheck(t *testing.T) {
	svc, _ := newService(t, capability.Config{})
	ctx := context.Background()

	result, err := svc.Grant(ctx, agentA, agentB, []string{"read"},
		capability.GrantOptions{Resource: "doc:1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.GrantID)
	assert.NotEmpty(t, result.Token)

	decision, err := svc.Check(ctx, agentB, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, result.GrantID, decision.GrantID)

	// Ungranted action on the same resource is denied.
	decision, err = svc.Check(ctx, agentB, "write", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, capability.ReasonNoMatch, decision.Reason)

	// A different subject has no grants at all.
	decision, err = svc.Check(ctx, agentA, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckScopeMatching(t *testing.T) {
	tests := []struct {
		name    string
		scopes  []string
		action  string
		allowed bool
	}{
		{"exact", []string{"read"}, "read", true},
		{"exact mismatch", []string{"read"}, "write", false},
		{"admin override", []string{"admin"}, "anything:at:all", true},
		{"namespace wildcard", []string{"files:*"}, "files:read", true},
		{"wildcard wrong namespace", []string{"files:*"}, "db:read", false},
		{"wildcard is not a prefix match", []string{"files:*"}, "filesystem:read", false},
		{"plain action ignores wildcards", []string{"files:*"}, "files", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, capability.Config{})
			ctx := context.Background()

			_, err := svc.Grant(ctx, agentA, agentB, tt.scopes, capability.GrantOptions{})
			require.NoError(t, err)

			decision, err := svc.Check(ctx, agentB, tt.action, "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
		})
	}
}

func TestCheckResourceExact(t *testing.T) {
	svc, _ := newService(t, capability.Config{})
	ctx := context.Background()

	_, err := svc.Grant(ctx, agentA, agentB, []string{"read"},
		capability.GrantOptions{Resource: "doc:1"})
	require.NoError(t, err)

	decision, err := svc.Check(ctx, agentB, "read", "doc:2", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "resource-scoped grants must not match other resources")

	// A grant without a resource applies to any resource.
	_, err = svc.Grant(ctx, agentA, agentB, []string{"list"}, capability.GrantOptions{})
	require.NoError(t, err)

	decision, err = svc.Check(ctx, agentB, "list", "doc:2", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckAfterRevoke(t *testing.T) {
	svc, _ := newService(t, capability.Config{})
	ctx := context.Background()

	result, err := svc.Grant(ctx, agentA, agentB, []string{"read"},
		capability.GrantOptions{Resource: "doc:1"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, result.GrantID, agentA))

	decision, err := svc.Check(ctx, agentB, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Revoking again is a no-op.
	assert.NoError(t, svc.Revoke(ctx, result.GrantID, agentA))
}

func TestRevokeActorCheck(t *testing.T) {
	svc, _ := newService(t, capability.Config{})
	ctx := context.Background()

	result, err := svc.Grant(ctx, agentA, agentB, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	err = svc.Revoke(ctx, result.GrantID, "did:key:zBystander")
	assert.ErrorIs(t, err, capability.ErrUnauthorized)

	// The grantee may renounce its own grant.
	assert.NoError(t, svc.Revoke(ctx, result.GrantID, agentB))
}

func TestGrantExpiryBoundary(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	svc, _ := newService(t, capability.Config{Now: func() time.Time { return clock }})
	ctx := context.Background()

	exp := now.Add(time.Hour)
	_, err := svc.Grant(ctx, agentA, agentB, []string{"read"},
		capability.GrantOptions{ExpiresAt: exp})
	require.NoError(t, err)

	decision, err := svc.Check(ctx, agentB, "read", "", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// A grant expiring exactly now is already inactive.
	clock = exp
	decision, err = svc.Check(ctx, agentB, "read", "", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckPolicyDeny(t *testing.T) {
	mem := store.NewMemory()
	engine := policy.NewEngine(mem, policy.EngineConfig{})
	svc := capability.NewService(mem, engine, capability.Config{
		SigningKey: capability.SigningKey{Secret: []byte("test-secret")},
	})
	ctx := context.Background()

	_, err := engine.AddRule(ctx, &policy.Rule{
		Name:   "deny-doc-1",
		Effect: policy.EffectDeny,
		Condition: &policy.Condition{
			Field: "resource", Op: policy.OpEq, Value: "doc:1",
		},
	})
	require.NoError(t, err)

	_, err = svc.Grant(ctx, agentA, agentB, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	decision, err := svc.Check(ctx, agentB, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// The deny rule is resource-specific; other resources fall through to
	// the default effect.
	decision, err = svc.Check(ctx, agentB, "read", "doc:2", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCheckDefaultEffectDeny(t *testing.T) {
	svc, _ := newService(t, capability.Config{DefaultEffect: policy.EffectDeny})
	ctx := context.Background()

	_, err := svc.Grant(ctx, agentA, agentB, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	// Fail-closed: without a firing allow rule the grant alone is not enough.
	decision, err := svc.Check(ctx, agentB, "read", "", nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckDenyOnOneGrantContinues(t *testing.T) {
	mem := store.NewMemory()
	engine := policy.NewEngine(mem, policy.EngineConfig{})
	svc := capability.NewService(mem, engine, capability.Config{
		SigningKey: capability.SigningKey{Secret: []byte("test-secret")},
	})
	ctx := context.Background()

	// Deny everything grounded in the resource-scoped grant, allow the rest.
	_, err := engine.AddRule(ctx, &policy.Rule{
		Name:     "deny-scoped",
		Effect:   policy.EffectDeny,
		Priority: 10,
		Condition: &policy.Condition{
			Field: "grant.resource", Op: policy.OpEq, Value: "doc:1",
		},
	})
	require.NoError(t, err)

	_, err = svc.Grant(ctx, agentA, agentB, []string{"read"},
		capability.GrantOptions{Resource: "doc:1"})
	require.NoError(t, err)
	open, err := svc.Grant(ctx, agentA, agentB, []string{"read"}, capability.GrantOptions{})
	require.NoError(t, err)

	decision, err := svc.Check(ctx, agentB, "read", "doc:1", nil)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "the unscoped grant should still authorize")
	assert.Equal(t, open.GrantID, decision.GrantID)
}

type staticGate struct{ ok bool }

func (g staticGate) HasSufficientTrust(context.Context, string, string) (bool, error) {
	return g.ok, nil
}

func TestCheckTrustGate(t *testing.T) {
	for _, sufficient := range []bool{true, false} {
		svc, _ := newService(t, capability.Config{TrustGate: staticGate{ok: sufficient}})
		ctx := context.Background()

		_, err := svc.Grant(ctx, agentA, agentB, []string{"read"}, capability.GrantOptions{})
		require.NoError(t, err)

		decision, err := svc.Check(ctx, agentB, "read", "", nil)
		require.NoError(t, err)
		assert.Equal(t, sufficient, decision.Allowed)
	}
}
