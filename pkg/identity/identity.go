package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/agentauth/agentauth-core/pkg/did"
)

// Identity is a self-certifying agent identity. The DID is derived from the
// public key and is immutable for the life of the key pair; rotation produces
// a new Identity record and marks the old one superseded.
//
// PrivateKey is returned to the caller at creation time and is never
// persisted by this package.
type Identity struct {
	DID        string    `json:"did"`
	PublicKey  []byte    `json:"publicKey"`
	PrivateKey []byte    `json:"-"`
	Algorithm  string    `json:"algorithm"`
	Created    time.Time `json:"created"`

	// Superseded is set when the identity was rotated away from.
	Superseded   bool       `json:"superseded,omitempty"`
	SupersededAt *time.Time `json:"supersededAt,omitempty"`
	SupersededBy string     `json:"supersededBy,omitempty"`
}

// Record is the persisted shape of an Identity: everything except the
// private key.
type Record struct {
	DID          string     `json:"did"`
	PublicKey    []byte     `json:"publicKey"`
	Algorithm    string     `json:"algorithm"`
	Created      time.Time  `json:"created"`
	Superseded   bool       `json:"superseded,omitempty"`
	SupersededAt *time.Time `json:"supersededAt,omitempty"`
	SupersededBy string     `json:"supersededBy,omitempty"`
}

// Store is the persistence contract the manager needs. Records are
// append-only: supersession updates the record, nothing is deleted.
type Store interface {
	StoreIdentity(ctx context.Context, rec *Record) error
	GetIdentity(ctx context.Context, didStr string) (*Record, error)
	MarkSuperseded(ctx context.Context, didStr, successorDID string, at time.Time) error
}

// Config holds manager configuration. The hosting process owns key material;
// the manager only borrows references.
type Config struct {
	// Algorithm used for new identities. Defaults to Ed25519.
	Algorithm Algorithm

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Manager creates and rotates identities.
type Manager struct {
	store Store
	alg   Algorithm
	now   func() time.Time
}

// NewManager creates a Manager backed by the given store.
func NewManager(store Store, cfg Config) *Manager {
	alg := cfg.Algorithm
	if alg == nil {
		alg = Ed25519{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, alg: alg, now: now}
}

// Create generates a key pair, derives its DID, and persists the public
// record. The caller receives the only copy of the private key.
func (m *Manager) Create(ctx context.Context) (*Identity, error) {
	pub, priv, err := m.alg.GenerateKeyPair()
	if err != nil {
		return nil, err
	}

	id, err := deriveDID(m.alg, pub)
	if err != nil {
		return nil, err
	}

	ident := &Identity{
		DID:        id,
		PublicKey:  pub,
		PrivateKey: priv,
		Algorithm:  m.alg.Name(),
		Created:    m.now().UTC(),
	}

	if err := m.store.StoreIdentity(ctx, ident.record()); err != nil {
		return nil, fmt.Errorf("failed to store identity: %w", err)
	}
	return ident, nil
}

// Rotate creates a successor identity for oldDID and marks the old record
// superseded. The old DID remains resolvable.
func (m *Manager) Rotate(ctx context.Context, oldDID string) (*Identity, error) {
	old, err := m.store.GetIdentity(ctx, oldDID)
	if err != nil {
		return nil, err
	}
	if old.Superseded {
		return nil, fmt.Errorf("%w: %s", ErrSuperseded, oldDID)
	}

	successor, err := m.Create(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.store.MarkSuperseded(ctx, oldDID, successor.DID, m.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to mark identity superseded: %w", err)
	}
	return successor, nil
}

// Resolve returns the persisted record for a DID, superseded or not.
func (m *Manager) Resolve(ctx context.Context, didStr string) (*Record, error) {
	return m.store.GetIdentity(ctx, didStr)
}

// Sign signs message with privateKey using the manager's algorithm.
func (m *Manager) Sign(message, privateKey []byte) ([]byte, error) {
	return m.alg.Sign(message, privateKey)
}

// Verify reports whether signature is valid for message under publicKey.
func (m *Manager) Verify(message, signature, publicKey []byte) bool {
	return m.alg.Verify(message, signature, publicKey)
}

func (i *Identity) record() *Record {
	return &Record{
		DID:          i.DID,
		PublicKey:    i.PublicKey,
		Algorithm:    i.Algorithm,
		Created:      i.Created,
		Superseded:   i.Superseded,
		SupersededAt: i.SupersededAt,
		SupersededBy: i.SupersededBy,
	}
}

// deriveDID maps a public key to its did:key form. Hybrid public keys are
// identified by their classical component: the classical key alone determines
// the identifier, while signatures still require both components to verify.
func deriveDID(alg Algorithm, publicKey []byte) (string, error) {
	if _, ok := alg.(Hybrid); ok {
		classical, _, err := splitPair(publicKey)
		if err != nil {
			return "", err
		}
		return did.FromPublicKey(classical)
	}
	return did.FromPublicKey(publicKey)
}
