// Package credential implements issuance, verification, and revocation of
// verifiable credentials: signed, schema-conformant claim sets about a
// subject DID. Credentials are append-only; revocation is recorded in a
// side-table and never undone.
package credential

import (
	"time"
)

// TypeVerifiableCredential is present in every credential's type list.
const TypeVerifiableCredential = "VerifiableCredential"

// Credential is a W3C-style verifiable credential. The proof signature
// covers the canonical form of the credential with the proof field stripped.
type Credential struct {
	// ID is a URN, e.g. "urn:uuid:0b67...".
	ID string `json:"id"`

	// Issuer is the DID of the issuing party.
	Issuer string `json:"issuer"`

	// Subject is the DID the claims are about.
	Subject string `json:"credentialSubject"`

	// Types lists the schema name plus "VerifiableCredential".
	Types []string `json:"type"`

	// Claims are the schema-validated assertions about the subject.
	Claims map[string]any `json:"claims"`

	IssuanceDate   time.Time  `json:"issuanceDate"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`

	// Proof is attached after signing; omitted from the signing payload.
	Proof *Proof `json:"proof,omitempty"`
}

// Proof is the cryptographic proof attached to a credential.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`

	// Challenge and Domain bind the proof to one verification exchange
	// and one relying party. When present they are folded into the signed
	// payload, so a credential issued for one challenge cannot satisfy
	// another.
	Challenge string `json:"challenge,omitempty"`
	Domain    string `json:"domain,omitempty"`

	// ProofValue is the hex-encoded signature over the canonicalized,
	// proof-stripped credential.
	ProofValue string `json:"proofValue"`
}

// SchemaName returns the credential's schema type, i.e. the first entry in
// Types that is not "VerifiableCredential", or "".
func (c *Credential) SchemaName() string {
	for _, t := range c.Types {
		if t != TypeVerifiableCredential {
			return t
		}
	}
	return ""
}

// Expired reports whether the credential is expired at the given instant.
// Credentials without an expiration date never expire.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpirationDate != nil && !c.ExpirationDate.After(now)
}

// Schema describes the shape claims must satisfy. Schemas are immutable once
// registered: issued credentials reference them by name, so re-registration
// is rejected rather than silently changing validation behavior.
type Schema struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Properties map[string]Property `json:"properties"`
}

// Property declares a claim's expected runtime type and whether it is
// required.
type Property struct {
	// Type is one of "string", "number", "boolean", "array", "object".
	Type string `json:"type"`

	Required bool `json:"required"`
}

// Revocation is a revocation side-table entry.
type Revocation struct {
	CredentialID string    `json:"credentialId"`
	RevokedBy    string    `json:"revokedBy"`
	RevokedAt    time.Time `json:"revokedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// Checks holds the four independent verification results. Callers can
// diagnose which check failed even when Valid is false.
type Checks struct {
	Signature  bool `json:"signature"`
	Expiration bool `json:"expiration"`
	Revocation bool `json:"revocation"`
	Schema     bool `json:"schema"`
}

// All reports whether every check passed.
func (c Checks) All() bool {
	return c.Signature && c.Expiration && c.Revocation && c.Schema
}

// VerifyResult is the outcome of credential verification.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Checks Checks `json:"checks"`
}
