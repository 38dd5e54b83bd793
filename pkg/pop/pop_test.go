package pop_test

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentauth/agentauth-core/pkg/did"
	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/agentauth/agentauth-core/pkg/pop"
)

func testAgent(t *testing.T) (string, ed25519.PrivateKey, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := identity.Ed25519{}.GenerateKeyPair()
	require.NoError(t, err)
	agentDID, err := did.FromPublicKey(pub)
	require.NoError(t, err)
	return agentDID, ed25519.PrivateKey(priv), ed25519.PublicKey(pub)
}

func TestGenerateNonce(t *testing.T) {
	nonce, err := pop.GenerateNonce(32)
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(nonce)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	other, err := pop.GenerateNonce(32)
	require.NoError(t, err)
	assert.NotEqual(t, nonce, other)

	// Non-positive sizes fall back to the default.
	nonce, err = pop.GenerateNonce(0)
	require.NoError(t, err)
	decoded, err = base64.RawURLEncoding.DecodeString(nonce)
	require.NoError(t, err)
	assert.Len(t, decoded, pop.DefaultNonceSize)
}

func TestSignAndVerifyNonce(t *testing.T) {
	agentDID, priv, pub := testAgent(t)

	nonce, err := pop.GenerateNonce(0)
	require.NoError(t, err)

	jws, err := pop.SignNonce(nonce, priv, agentDID)
	require.NoError(t, err)

	assert.NoError(t, pop.VerifySignature(jws, nonce, pub))
	assert.ErrorIs(t, pop.VerifySignature(jws, "other-nonce", pub), pop.ErrNonceMismatch)

	_, otherPriv, err := identity.Ed25519{}.GenerateKeyPair()
	require.NoError(t, err)
	otherPub := ed25519.PrivateKey(otherPriv).Public().(ed25519.PublicKey)
	assert.ErrorIs(t, pop.VerifySignature(jws, nonce, otherPub), pop.ErrSignatureInvalid)
}

func TestSignNonceInvalidKey(t *testing.T) {
	_, err := pop.SignNonce("nonce", []byte("short"), "did:key:zX")
	assert.ErrorIs(t, err, pop.ErrInvalidPrivateKey)
}

func TestChallengeResponseRoundTrip(t *testing.T) {
	agentDID, priv, _ := testAgent(t)

	challenge, err := pop.NewChallenge(agentDID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, agentDID, challenge.SubjectDID)
	assert.False(t, challenge.Expired(time.Now()))

	response, err := pop.Respond(challenge, priv)
	require.NoError(t, err)
	assert.Equal(t, challenge.Nonce, response.Nonce)

	assert.NoError(t, pop.VerifyResponse(challenge, response, time.Now()))
}

func TestVerifyResponseFailures(t *testing.T) {
	agentDID, priv, _ := testAgent(t)
	otherDID, otherPriv, _ := testAgent(t)

	challenge, err := pop.NewChallenge(agentDID, time.Minute)
	require.NoError(t, err)
	response, err := pop.Respond(challenge, priv)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		err := pop.VerifyResponse(challenge, response, challenge.ExpiresAt.Add(time.Second))
		assert.ErrorIs(t, err, pop.ErrChallengeExpired)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		bad := *response
		bad.Nonce = "tampered"
		assert.ErrorIs(t, pop.VerifyResponse(challenge, &bad, time.Now()), pop.ErrNonceMismatch)
	})

	t.Run("subject mismatch", func(t *testing.T) {
		bad := *response
		bad.SubjectDID = otherDID
		assert.ErrorIs(t, pop.VerifyResponse(challenge, &bad, time.Now()), pop.ErrSubjectMismatch)
	})

	t.Run("wrong key", func(t *testing.T) {
		// Signed by an agent that does not control the challenged DID.
		forged, err := pop.Respond(challenge, otherPriv)
		require.NoError(t, err)
		assert.ErrorIs(t, pop.VerifyResponse(challenge, forged, time.Now()), pop.ErrSignatureInvalid)
	})
}

func TestRegistrySingleUse(t *testing.T) {
	agentDID, priv, _ := testAgent(t)
	registry := pop.NewRegistry(pop.RegistryConfig{TTL: time.Minute})

	challenge, err := registry.Issue(agentDID)
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Pending())

	response, err := pop.Respond(challenge, priv)
	require.NoError(t, err)

	require.NoError(t, registry.Redeem(response))
	assert.Zero(t, registry.Pending())

	// Replay of the same response is rejected.
	assert.ErrorIs(t, registry.Redeem(response), pop.ErrChallengeUnknown)
}

func TestRegistryUnknownNonce(t *testing.T) {
	registry := pop.NewRegistry(pop.RegistryConfig{})
	err := registry.Redeem(&pop.Response{Nonce: "never-issued"})
	assert.ErrorIs(t, err, pop.ErrChallengeUnknown)
}

func TestRegistryConsumesFailedRedemptions(t *testing.T) {
	agentDID, _, _ := testAgent(t)
	_, otherPriv, _ := testAgent(t)
	registry := pop.NewRegistry(pop.RegistryConfig{TTL: time.Minute})

	challenge, err := registry.Issue(agentDID)
	require.NoError(t, err)

	forged, err := pop.Respond(challenge, otherPriv)
	require.NoError(t, err)

	assert.ErrorIs(t, registry.Redeem(forged), pop.ErrSignatureInvalid)

	// The nonce is burned even though verification failed.
	assert.ErrorIs(t, registry.Redeem(forged), pop.ErrChallengeUnknown)
}
