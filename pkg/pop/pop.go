// Package pop provides proof-of-possession primitives: a challenger hands an
// agent a random nonce, the agent signs it with the private key behind its
// DID, and the challenger verifies the signature against the key the DID
// derives. Passing proves live control of the key, which a credential or
// grant alone never shows.
package pop

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/agentauth/agentauth-core/pkg/did"
)

// Common errors returned by this package.
var (
	ErrNonceGeneration   = errors.New("failed to generate nonce")
	ErrNonceMismatch     = errors.New("nonce does not match")
	ErrSignatureInvalid  = errors.New("signature verification failed")
	ErrChallengeExpired  = errors.New("challenge has expired")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrSubjectMismatch   = errors.New("response subject does not match challenge")
)

// DefaultNonceSize is 32 bytes (256 bits of entropy).
const DefaultNonceSize = 32

// DefaultChallengeTTL bounds how long a challenge stays answerable.
const DefaultChallengeTTL = 5 * time.Minute

// Challenge is a nonce bound to the DID being asked to prove key control.
type Challenge struct {
	// Nonce is the random challenge value, base64url without padding.
	Nonce string `json:"nonce"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	// SubjectDID is the DID challenged to prove key ownership.
	SubjectDID string `json:"subjectDid"`
}

// Response carries the agent's JWS signature over the challenge nonce.
type Response struct {
	Nonce string `json:"nonce"`

	// Signature is a compact JWS over the nonce.
	Signature string `json:"signature"`

	SubjectDID string `json:"subjectDid"`
}

// GenerateNonce creates a cryptographically secure random nonce,
// base64url-encoded without padding. Non-positive sizes fall back to
// DefaultNonceSize.
func GenerateNonce(size int) (string, error) {
	if size <= 0 {
		size = DefaultNonceSize
	}
	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNonceGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewChallenge creates a challenge for subjectDID with the given TTL.
func NewChallenge(subjectDID string, ttl time.Duration) (*Challenge, error) {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	nonce, err := GenerateNonce(DefaultNonceSize)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Challenge{
		Nonce:      nonce,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		SubjectDID: subjectDID,
	}, nil
}

// Expired reports whether the challenge can no longer be answered.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// SignNonce signs a nonce with an Ed25519 private key and returns the
// compact JWS. The kid header carries the signer's DID so verifiers can
// route key lookup.
func SignNonce(nonce string, privateKey ed25519.PrivateKey, keyDID string) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", ErrInvalidPrivateKey
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: privateKey},
		(&jose.SignerOptions{}).
			WithType("pop+jws").
			WithHeader(jose.HeaderKey("kid"), keyDID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	jws, err := signer.Sign([]byte(nonce))
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return jws.CompactSerialize()
}

// Respond answers a challenge by signing its nonce.
func Respond(challenge *Challenge, privateKey ed25519.PrivateKey) (*Response, error) {
	signature, err := SignNonce(challenge.Nonce, privateKey, challenge.SubjectDID)
	if err != nil {
		return nil, err
	}
	return &Response{
		Nonce:      challenge.Nonce,
		Signature:  signature,
		SubjectDID: challenge.SubjectDID,
	}, nil
}

// VerifySignature verifies a compact JWS over the expected nonce with an
// Ed25519 public key.
func VerifySignature(signatureJWS, expectedNonce string, publicKey ed25519.PublicKey) error {
	jws, err := jose.ParseSigned(signatureJWS, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return fmt.Errorf("failed to parse JWS: %w", err)
	}

	payload, err := jws.Verify(publicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if string(payload) != expectedNonce {
		return ErrNonceMismatch
	}
	return nil
}

// VerifyResponse checks a response against its challenge: unexpired, nonce
// and subject intact, and a valid signature under the key the subject DID
// derives.
func VerifyResponse(challenge *Challenge, response *Response, now time.Time) error {
	if challenge.Expired(now) {
		return ErrChallengeExpired
	}
	if response.Nonce != challenge.Nonce {
		return ErrNonceMismatch
	}
	if response.SubjectDID != challenge.SubjectDID {
		return ErrSubjectMismatch
	}

	publicKey, err := resolveKey(challenge.SubjectDID)
	if err != nil {
		return err
	}
	return VerifySignature(response.Signature, challenge.Nonce, publicKey)
}

// resolveKey extracts the Ed25519 verification key from a did:key subject.
func resolveKey(subjectDID string) (ed25519.PublicKey, error) {
	parsed, err := did.Parse(subjectDID)
	if err != nil {
		return nil, err
	}
	key := parsed.Ed25519PublicKey()
	if key == nil {
		return nil, fmt.Errorf("%w: %s does not carry an Ed25519 key", ErrSignatureInvalid, subjectDID)
	}
	return key, nil
}
