package capability

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL bounds a capability token's life when the grant has no
// expiry of its own. Tokens are bearer credentials validated purely
// cryptographically, so short lives bound the revocation staleness window.
const DefaultTokenTTL = 24 * time.Hour

// DefaultAudience is the audience claim minted into capability tokens.
const DefaultAudience = "services"

// Token errors.
var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenNotYet  = errors.New("token is not yet valid")
	ErrTokenRevoked = errors.New("backing grant has been revoked")
	ErrNoSigningKey = errors.New("no token signing key configured")
)

// TokenClaims is the capability token payload: registered temporal claims
// plus the domain fields carried over from the grant.
type TokenClaims struct {
	jwt.RegisteredClaims

	Scopes     []string       `json:"scopes"`
	Resource   string         `json:"resource,omitempty"`
	Conditions map[string]any `json:"conditions,omitempty"`

	// GrantID links the token back to the grant it was minted for.
	GrantID string `json:"grantId"`
}

// SigningKey is the service key that vouches for minted tokens. Exactly one
// of Secret (HMAC) or the Ed25519 pair must be set; the hosting process owns
// the material and the issuer borrows it.
type SigningKey struct {
	// Secret enables HS256 symmetric signing.
	Secret []byte

	// Private/Public enable EdDSA asymmetric signing.
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

func (k SigningKey) method() (jwt.SigningMethod, any, any, error) {
	switch {
	case len(k.Secret) > 0:
		return jwt.SigningMethodHS256, k.Secret, k.Secret, nil
	case len(k.Private) == ed25519.PrivateKeySize:
		pub := k.Public
		if len(pub) == 0 {
			pub = k.Private.Public().(ed25519.PublicKey)
		}
		return jwt.SigningMethodEdDSA, k.Private, pub, nil
	default:
		return nil, nil, nil, ErrNoSigningKey
	}
}

// mintToken serializes a grant into a signed compact token.
func mintToken(key SigningKey, issuer string, grant *Grant, expiresAt time.Time, now time.Time) (string, error) {
	method, signKey, _, err := key.method()
	if err != nil {
		return "", err
	}

	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   grant.Grantee,
			Audience:  jwt.ClaimStrings{DefaultAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scopes:     grant.Scopes,
		Resource:   grant.Resource,
		Conditions: grant.Conditions,
		GrantID:    grant.ID,
	}

	token, err := jwt.NewWithClaims(method, claims).SignedString(signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// TokenValidation is the outcome of ValidateToken.
type TokenValidation struct {
	Valid  bool         `json:"valid"`
	Claims *TokenClaims `json:"claims,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// parseToken verifies signature and temporal claims and returns the payload.
func parseToken(key SigningKey, tokenStr string, now func() time.Time) (*TokenClaims, error) {
	method, _, verifyKey, err := key.method()
	if err != nil {
		return nil, err
	}

	claims := &TokenClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return verifyKey, nil },
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithIssuedAt(),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYet
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
