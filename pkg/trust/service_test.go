package trust_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/agentauth/agentauth-core/pkg/store"
	"github.com/agentauth/agentauth-core/pkg/trust"
)

const agentDID = "did:key:z6MkScored"

func seedIdentity(t *testing.T, mem *store.Memory, did string) {
	t.Helper()
	require.NoError(t, mem.StoreIdentity(context.Background(), &identity.Record{
		DID:       did,
		Algorithm: "Ed25519",
		Created:   time.Now().Add(-100 * 24 * time.Hour),
	}))
}

func TestComputeScoreFromStore(t *testing.T) {
	mem := store.NewMemory()
	svc := trust.NewService(mem, mem, trust.Config{})
	ctx := context.Background()

	seedIdentity(t, mem, agentDID)
	for i := 0; i < 9; i++ {
		mem.RecordInteraction(agentDID, true, time.Now())
	}
	mem.RecordInteraction(agentDID, false, time.Now())
	mem.RecordEndorsement(agentDID)
	mem.RecordEndorsement(agentDID)
	mem.SetActiveHours(agentDID, 500)

	score, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)

	assert.Equal(t, agentDID, score.AgentDID)
	assert.True(t, score.Factors.IdentityVerified)
	assert.Equal(t, 9, score.Factors.Interactions.Successful)
	assert.Equal(t, 1, score.Factors.Interactions.Failed)
	assert.Equal(t, 2, score.Factors.Reputation.Endorsements)
	assert.InDelta(t, 500, score.Factors.Time.ActiveHours, 0.01)
	assert.Greater(t, score.Score, 0.0)
	assert.LessOrEqual(t, score.Score, 1.0)
	assert.Equal(t, trust.DetermineLevel(score.Score), score.Level)

	// The score is persisted for later reads.
	stored, err := mem.GetScore(context.Background(), agentDID)
	require.NoError(t, err)
	assert.Equal(t, score.Score, stored.Score)
}

func TestComputeScoreUnknownAgent(t *testing.T) {
	mem := store.NewMemory()
	svc := trust.NewService(mem, mem, trust.Config{})

	score, err := svc.ComputeScore(context.Background(), "did:key:zNobody")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
	assert.Equal(t, trust.LevelUnknown, score.Level)
	assert.False(t, score.Factors.IdentityVerified)
}

func TestComputeScoreCaching(t *testing.T) {
	mem := store.NewMemory()
	svc := trust.NewService(mem, mem, trust.Config{})
	ctx := context.Background()

	first, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)

	// New factors are invisible while the cached score is fresh.
	seedIdentity(t, mem, agentDID)
	cached, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)
	assert.Equal(t, first.Score, cached.Score)

	svc.Invalidate(agentDID)
	fresh, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)
	assert.Greater(t, fresh.Score, first.Score)
}

func TestComputeScoreCachingDisabled(t *testing.T) {
	mem := store.NewMemory()
	svc := trust.NewService(mem, mem, trust.Config{CacheTTL: -1})
	ctx := context.Background()

	first, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)

	seedIdentity(t, mem, agentDID)
	fresh, err := svc.ComputeScore(ctx, agentDID)
	require.NoError(t, err)
	assert.Greater(t, fresh.Score, first.Score)
}

func TestRequiredLevel(t *testing.T) {
	svc := trust.NewService(store.NewMemory(), store.NewMemory(), trust.Config{
		RequiredLevels: map[string]trust.Level{"deploy": trust.LevelPrivileged},
	})

	assert.Equal(t, trust.LevelBasic, svc.RequiredLevel("read"))
	assert.Equal(t, trust.LevelVerified, svc.RequiredLevel("write"))
	assert.Equal(t, trust.LevelTrusted, svc.RequiredLevel("delete"))
	assert.Equal(t, trust.LevelPrivileged, svc.RequiredLevel("admin"))
	assert.Equal(t, trust.LevelPrivileged, svc.RequiredLevel("deploy"), "config overrides merge in")
	assert.Equal(t, trust.LevelVerified, svc.RequiredLevel("never-heard-of-it"), "unknown actions default to VERIFIED")
}

func TestHasSufficientTrust(t *testing.T) {
	mem := store.NewMemory()
	svc := trust.NewService(mem, mem, trust.Config{CacheTTL: -1})
	ctx := context.Background()

	// A blank agent scores 0.0: not even BASIC.
	ok, err := svc.HasSufficientTrust(ctx, agentDID, "read")
	require.NoError(t, err)
	assert.False(t, ok)

	// Verified identity plus a clean interaction history clears BASIC.
	seedIdentity(t, mem, agentDID)
	for i := 0; i < 10; i++ {
		mem.RecordInteraction(agentDID, true, time.Now())
	}

	ok, err = svc.HasSufficientTrust(ctx, agentDID, "read")
	require.NoError(t, err)
	assert.True(t, ok)

	// But not the TRUSTED bar for grant management.
	ok, err = svc.HasSufficientTrust(ctx, agentDID, "grant")
	require.NoError(t, err)
	assert.False(t, ok)
}
