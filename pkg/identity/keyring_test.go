package identity_test

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/did"
	"github.com/agentauth/agentauth-core/pkg/identity"
)

func testJWK(t *testing.T) (jose.JSONWebKey, string, ed25519.PublicKey) {
	t.Helper()
	pub, _, err := identity.Ed25519{}.GenerateKeyPair()
	require.NoError(t, err)
	didStr, err := did.FromPublicKey(pub)
	require.NoError(t, err)
	return jose.JSONWebKey{
		Key:       ed25519.PublicKey(pub),
		KeyID:     didStr,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}, didStr, ed25519.PublicKey(pub)
}

func TestKeyring(t *testing.T) {
	ring, err := identity.NewKeyring(t.TempDir())
	require.NoError(t, err)

	jwk, didStr, pub := testJWK(t)

	t.Run("add and get", func(t *testing.T) {
		require.NoError(t, ring.Add(jwk))

		got, err := ring.Get(didStr)
		require.NoError(t, err)
		assert.Equal(t, didStr, got.KeyID)
		assert.Equal(t, pub, got.Key)
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := ring.Get("did:key:zUnknown")
		assert.ErrorIs(t, err, identity.ErrKeyNotFound)
	})

	t.Run("list", func(t *testing.T) {
		keys, err := ring.List()
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, didStr, keys[0].KeyID)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, ring.Remove(didStr))
		_, err := ring.Get(didStr)
		assert.ErrorIs(t, err, identity.ErrKeyNotFound)
		assert.ErrorIs(t, ring.Remove(didStr), identity.ErrKeyNotFound)
	})
}

func TestKeyringRejectsMissingKid(t *testing.T) {
	ring, err := identity.NewKeyring(t.TempDir())
	require.NoError(t, err)

	err = ring.Add(jose.JSONWebKey{Key: ed25519.PublicKey(make([]byte, 32))})
	assert.ErrorIs(t, err, identity.ErrInvalidKey)
}

func TestKeyringRejectsUnusableKey(t *testing.T) {
	ring, err := identity.NewKeyring(t.TempDir())
	require.NoError(t, err)

	// A symmetric key has no public half; Add must reject it rather than
	// persist an empty JWK.
	err = ring.Add(jose.JSONWebKey{Key: []byte("shared-secret"), KeyID: "did:key:zSym"})
	assert.ErrorIs(t, err, identity.ErrInvalidKey)
}

func TestKeyringSanitizesFilenames(t *testing.T) {
	dir := t.TempDir()
	ring, err := identity.NewKeyring(dir)
	require.NoError(t, err)

	jwk, _, _ := testJWK(t)
	require.NoError(t, ring.Add(jwk))

	// DID colons must not leak into the path.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")
	assert.Equal(t, ".jwk", filepath.Ext(entries[0].Name()))
}

func TestKeyringResolve(t *testing.T) {
	ring, err := identity.NewKeyring(t.TempDir())
	require.NoError(t, err)

	jwk, didStr, pub := testJWK(t)

	// Unknown DIDs fall back to the key embedded in the identifier.
	resolved, err := ring.Resolve(didStr)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), resolved)

	// Stored keys win over the embedded key.
	require.NoError(t, ring.Add(jwk))
	resolved, err = ring.Resolve(didStr)
	require.NoError(t, err)
	assert.Equal(t, []byte(pub), resolved)

	// Non-did:key identifiers need a stored key.
	_, err = ring.Resolve("did:web:example.com")
	assert.Error(t, err)
}
