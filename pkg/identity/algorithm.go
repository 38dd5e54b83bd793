// Package identity manages self-certifying agent identities: key pair
// generation, DID derivation, rotation, and the signature algorithms that
// back them.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors returned by this package.
var (
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrNotFound           = errors.New("identity not found")
	ErrSuperseded         = errors.New("identity has been superseded")
)

// Algorithm is the signature capability used by identities. Implementations
// must be safe for concurrent use; Verify must return false, never panic,
// on malformed input.
type Algorithm interface {
	// Name identifies the algorithm (e.g. "Ed25519", "hybrid:Ed25519+Dilithium3").
	Name() string

	// GenerateKeyPair produces fresh key material.
	GenerateKeyPair() (publicKey, privateKey []byte, err error)

	// Sign signs message with privateKey.
	// Returns ErrInvalidKeyMaterial for malformed keys.
	Sign(message, privateKey []byte) ([]byte, error)

	// Verify reports whether signature is valid for message under publicKey.
	Verify(message, signature, publicKey []byte) bool
}

// Ed25519 is the classical signature algorithm.
type Ed25519 struct{}

// Name returns "Ed25519".
func (Ed25519) Name() string { return "Ed25519" }

// GenerateKeyPair produces an Ed25519 key pair.
func (Ed25519) GenerateKeyPair() ([]byte, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return pub, priv, nil
}

// Sign signs message with an Ed25519 private key.
func (Ed25519) Sign(message, privateKey []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d",
			ErrInvalidKeyMaterial, ed25519.PrivateKeySize, len(privateKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

// Verify reports whether signature is a valid Ed25519 signature of message.
// Malformed keys or signatures yield false, not an error.
func (Ed25519) Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// Hybrid combines a classical and a post-quantum algorithm. Key material and
// signatures hold both components; a hybrid signature is valid only when both
// component signatures independently verify.
type Hybrid struct {
	Classical   Algorithm
	PostQuantum Algorithm
}

// Name returns "hybrid:<classical>+<post-quantum>".
func (h Hybrid) Name() string {
	return "hybrid:" + h.Classical.Name() + "+" + h.PostQuantum.Name()
}

// GenerateKeyPair produces a combined key pair holding both components.
func (h Hybrid) GenerateKeyPair() ([]byte, []byte, error) {
	cPub, cPriv, err := h.Classical.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	qPub, qPriv, err := h.PostQuantum.GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	return joinPair(cPub, qPub), joinPair(cPriv, qPriv), nil
}

// Sign produces a combined signature over message with both component keys.
func (h Hybrid) Sign(message, privateKey []byte) ([]byte, error) {
	cKey, qKey, err := splitPair(privateKey)
	if err != nil {
		return nil, err
	}
	cSig, err := h.Classical.Sign(message, cKey)
	if err != nil {
		return nil, err
	}
	qSig, err := h.PostQuantum.Sign(message, qKey)
	if err != nil {
		return nil, err
	}
	return joinPair(cSig, qSig), nil
}

// Verify reports whether both component signatures verify independently.
func (h Hybrid) Verify(message, signature, publicKey []byte) bool {
	cKey, qKey, err := splitPair(publicKey)
	if err != nil {
		return false
	}
	cSig, qSig, err := splitPair(signature)
	if err != nil {
		return false
	}
	return h.Classical.Verify(message, cSig, cKey) && h.PostQuantum.Verify(message, qSig, qKey)
}

// SplitHybrid splits combined hybrid key material (or a combined signature)
// into its classical and post-quantum components. Callers that resolve
// verification keys for hybrid identities use the classical component for
// DID derivation.
func SplitHybrid(material []byte) (classical, postQuantum []byte, err error) {
	return splitPair(material)
}

// joinPair frames two byte strings as len-prefixed segments.
func joinPair(a, b []byte) []byte {
	out := make([]byte, 4+len(a)+len(b))
	binary.BigEndian.PutUint32(out, uint32(len(a)))
	copy(out[4:], a)
	copy(out[4+len(a):], b)
	return out
}

// splitPair undoes joinPair.
func splitPair(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated hybrid material", ErrInvalidKeyMaterial)
	}
	n := binary.BigEndian.Uint32(data)
	if uint32(len(data)-4) < n {
		return nil, nil, fmt.Errorf("%w: truncated hybrid material", ErrInvalidKeyMaterial)
	}
	return data[4 : 4+n], data[4+n:], nil
}
