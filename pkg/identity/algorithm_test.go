package identity_test

import (
	"testing"

	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEd25519_SignVerify(t *testing.T) {
	alg := identity.Ed25519{}

	pub, priv, err := alg.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("the canonical payload")
	sig, err := alg.Sign(msg, priv)
	require.NoError(t, err)

	assert.True(t, alg.Verify(msg, sig, pub))
	assert.False(t, alg.Verify([]byte("tampered"), sig, pub))
}

func TestEd25519_Verify_MalformedInputs(t *testing.T) {
	alg := identity.Ed25519{}
	pub, priv, err := alg.GenerateKeyPair()
	require.NoError(t, err)
	sig, err := alg.Sign([]byte("msg"), priv)
	require.NoError(t, err)

	// Verify must return false, never panic, on malformed input.
	assert.False(t, alg.Verify([]byte("msg"), sig, nil))
	assert.False(t, alg.Verify([]byte("msg"), sig, []byte("short")))
	assert.False(t, alg.Verify([]byte("msg"), nil, pub))
	assert.False(t, alg.Verify([]byte("msg"), []byte("not a signature"), pub))
}

func TestEd25519_Sign_InvalidKey(t *testing.T) {
	alg := identity.Ed25519{}
	_, err := alg.Sign([]byte("msg"), []byte("too short"))
	assert.ErrorIs(t, err, identity.ErrInvalidKeyMaterial)
}

func TestHybrid_BothMustVerify(t *testing.T) {
	// Until a post-quantum primitive is wired in, a second classical instance
	// exercises the combinator: the contract is both-must-verify, not which
	// primitives are combined.
	alg := identity.Hybrid{Classical: identity.Ed25519{}, PostQuantum: identity.Ed25519{}}

	pub, priv, err := alg.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("hybrid payload")
	sig, err := alg.Sign(msg, priv)
	require.NoError(t, err)
	assert.True(t, alg.Verify(msg, sig, pub))

	// Corrupt the classical component: the whole signature must fail.
	corrupted := append([]byte(nil), sig...)
	corrupted[4] ^= 0xff
	assert.False(t, alg.Verify(msg, corrupted, pub))

	// Corrupt the post-quantum component likewise.
	corrupted = append([]byte(nil), sig...)
	corrupted[len(corrupted)-1] ^= 0xff
	assert.False(t, alg.Verify(msg, corrupted, pub))
}

func TestHybrid_MalformedMaterial(t *testing.T) {
	alg := identity.Hybrid{Classical: identity.Ed25519{}, PostQuantum: identity.Ed25519{}}

	assert.False(t, alg.Verify([]byte("msg"), []byte("sig"), []byte("xy")))

	_, err := alg.Sign([]byte("msg"), []byte{0x00})
	assert.ErrorIs(t, err, identity.ErrInvalidKeyMaterial)
}

func TestHybrid_Name(t *testing.T) {
	alg := identity.Hybrid{Classical: identity.Ed25519{}, PostQuantum: identity.Ed25519{}}
	assert.Equal(t, "hybrid:Ed25519+Ed25519", alg.Name())
}
