package revocation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/credential"
	"github.com/agentauth/agentauth-core/pkg/revocation"
	"github.com/agentauth/agentauth-core/pkg/store"
)

func tempCache(t *testing.T) (*revocation.FileCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "revocations.json")
	cache, err := revocation.NewFileCache(path)
	require.NoError(t, err)
	return cache, path
}

func TestFileCacheAddAndLookup(t *testing.T) {
	cache, _ := tempCache(t)

	assert.False(t, cache.IsRevoked("urn:uuid:c1"))

	require.NoError(t, cache.Add(revocation.Entry{
		CredentialID: "urn:uuid:c1",
		RevokedAt:    time.Now().UTC(),
		Reason:       "key compromise",
	}))

	assert.True(t, cache.IsRevoked("urn:uuid:c1"))
	assert.Equal(t, 1, cache.Count())

	// Adding the same id again does not duplicate.
	require.NoError(t, cache.Add(revocation.Entry{CredentialID: "urn:uuid:c1"}))
	assert.Equal(t, 1, cache.Count())
}

func TestFileCachePersistsAcrossOpens(t *testing.T) {
	cache, path := tempCache(t)
	require.NoError(t, cache.Add(revocation.Entry{CredentialID: "urn:uuid:c1", RevokedAt: time.Now()}))

	reopened, err := revocation.NewFileCache(path)
	require.NoError(t, err)
	assert.True(t, reopened.IsRevoked("urn:uuid:c1"))
	assert.Equal(t, 1, reopened.Count())
	assert.False(t, reopened.LastSynced().IsZero())
}

func TestFileCacheSync(t *testing.T) {
	cache, _ := tempCache(t)

	assert.True(t, cache.IsStale(revocation.DefaultStaleThreshold), "a never-synced cache is stale")

	require.NoError(t, cache.Sync([]revocation.Entry{
		{CredentialID: "urn:uuid:c1", RevokedAt: time.Now()},
		{CredentialID: "urn:uuid:c2", RevokedAt: time.Now()},
	}))
	assert.Equal(t, 2, cache.Count())
	assert.False(t, cache.IsStale(revocation.DefaultStaleThreshold))
	assert.True(t, cache.IsStale(0))

	// Syncing an empty batch still refreshes the timestamp.
	before := cache.LastSynced()
	require.NoError(t, cache.Sync(nil))
	assert.False(t, cache.LastSynced().Before(before))
	assert.Equal(t, 2, cache.Count())
}

func TestFileCacheClear(t *testing.T) {
	cache, path := tempCache(t)
	require.NoError(t, cache.Add(revocation.Entry{CredentialID: "urn:uuid:c1"}))

	require.NoError(t, cache.Clear())
	assert.False(t, cache.IsRevoked("urn:uuid:c1"))
	assert.Zero(t, cache.Count())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileCacheSurvivesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revocations.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	cache, err := revocation.NewFileCache(path)
	require.NoError(t, err)
	assert.Zero(t, cache.Count())
}

func TestCachingStore(t *testing.T) {
	cache, path := tempCache(t)
	ctx := context.Background()

	wrapped := revocation.WrapStore(store.NewMemory(), cache)
	require.NoError(t, wrapped.StoreRevocation(ctx, &credential.Revocation{
		CredentialID: "urn:uuid:c1",
		RevokedBy:    "did:key:zIssuer",
		RevokedAt:    time.Now().UTC(),
	}))

	revoked, err := wrapped.IsRevoked(ctx, "urn:uuid:c1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// A fresh process with an empty backing store still sees the
	// revocation through the shared cache file.
	reopened, err := revocation.NewFileCache(path)
	require.NoError(t, err)
	fresh := revocation.WrapStore(store.NewMemory(), reopened)

	revoked, err = fresh.IsRevoked(ctx, "urn:uuid:c1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unknown ids fall through to the backing store.
	revoked, err = fresh.IsRevoked(ctx, "urn:uuid:other")
	require.NoError(t, err)
	assert.False(t, revoked)
}
