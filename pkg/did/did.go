// Package did implements the did:key method for self-certifying agent
// identifiers. A did:key is derived deterministically from a public key:
//
//	did:key:z<base58btc(multicodec-prefix || public-key-bytes)>
//
// The same public key always yields the same DID, so the identifier needs
// no registry to be resolvable back to its verification key.
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedMethod  = errors.New("unsupported DID method (only did:key supported)")
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key")
	ErrInvalidMultibase   = errors.New("invalid multibase encoding")
)

// Multicodec tags identifying the key type inside a did:key identifier.
// The tag is varint-encoded; Ed25519 (0xed01) encodes as the two bytes
// [0xed, 0x01].
const (
	// Ed25519Prefix0 and Ed25519Prefix1 are the encoded Ed25519 multicodec tag.
	Ed25519Prefix0 = 0xed
	Ed25519Prefix1 = 0x01

	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes.
	Ed25519PublicKeySize = ed25519.PublicKeySize
)

// DID is a parsed did:key identifier.
type DID struct {
	// Method is the DID method. Always "key" for identifiers produced here.
	Method string

	// PublicKey is the raw public key carried by the identifier.
	PublicKey []byte

	// Raw is the original DID string.
	Raw string
}

// FromPublicKey derives the did:key identifier for an Ed25519 public key.
// The derivation is pure: the same key always yields the same DID.
// Returns ErrInvalidKeyMaterial if the key is not exactly 32 bytes.
func FromPublicKey(publicKey []byte) (string, error) {
	if len(publicKey) != Ed25519PublicKeySize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidKeyMaterial, Ed25519PublicKeySize, len(publicKey))
	}

	prefixed := make([]byte, 2+len(publicKey))
	prefixed[0] = Ed25519Prefix0
	prefixed[1] = Ed25519Prefix1
	copy(prefixed[2:], publicKey)

	// Multibase 'z' prefix marks base58btc.
	return "did:key:z" + base58Encode(prefixed), nil
}

// MustFromPublicKey is like FromPublicKey but panics on invalid key material.
// Intended for call sites that already hold a generated key pair.
func MustFromPublicKey(publicKey []byte) string {
	s, err := FromPublicKey(publicKey)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse parses a did:key string into its components.
//
// Returns ErrInvalidDID for structurally invalid strings,
// ErrUnsupportedMethod for methods other than "key", and
// ErrUnsupportedKeyType when the multicodec tag is not Ed25519.
func Parse(s string) (*DID, error) {
	if s == "" {
		return nil, ErrInvalidDID
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidDID, len(parts))
	}
	if parts[0] != "did" {
		return nil, fmt.Errorf("%w: must start with 'did:'", ErrInvalidDID)
	}
	if parts[1] != "key" {
		return nil, fmt.Errorf("%w: got did:%s", ErrUnsupportedMethod, parts[1])
	}

	value := parts[2]
	if value == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidDID)
	}
	if value[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got %q", ErrInvalidMultibase, value[0])
	}

	decoded, err := base58Decode(value[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMultibase, err)
	}
	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrInvalidDID)
	}
	if decoded[0] != Ed25519Prefix0 || decoded[1] != Ed25519Prefix1 {
		return nil, fmt.Errorf("%w: multicodec tag 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	publicKey := decoded[2:]
	if len(publicKey) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d",
			ErrInvalidKeyMaterial, Ed25519PublicKeySize, len(publicKey))
	}

	return &DID{
		Method:    "key",
		PublicKey: publicKey,
		Raw:       s,
	}, nil
}

// PublicKey extracts the Ed25519 public key from a did:key string.
func PublicKey(s string) (ed25519.PublicKey, error) {
	parsed, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(parsed.PublicKey), nil
}

// String returns the canonical DID string.
func (d *DID) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	if d.Method == "key" && len(d.PublicKey) == Ed25519PublicKeySize {
		s, _ := FromPublicKey(d.PublicKey)
		return s
	}
	return ""
}

// Ed25519PublicKey returns the typed public key, or nil if the DID does not
// carry a valid Ed25519 key.
func (d *DID) Ed25519PublicKey() ed25519.PublicKey {
	if len(d.PublicKey) != Ed25519PublicKeySize {
		return nil
	}
	return ed25519.PublicKey(d.PublicKey)
}
