package identity

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-jose/go-jose/v4"

	"github.com/agentauth/agentauth-core/pkg/did"
)

// Keyring errors.
var (
	ErrKeyNotFound = errors.New("key not found in keyring")
	ErrInvalidKey  = errors.New("invalid key format")
)

// Keyring is a local store of trusted agent public keys, indexed by DID.
// It backs verification for keys that a DID alone cannot resolve, such as
// hybrid key material where the identifier carries only the classical
// component.
type Keyring struct {
	dir string
	mu  sync.RWMutex
}

// DefaultKeyringDir returns the default keyring directory.
func DefaultKeyringDir() string {
	if envPath := os.Getenv("AGENTAUTH_KEYRING_PATH"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentauth/keyring"
	}
	return filepath.Join(home, ".agentauth", "keyring")
}

// NewKeyring opens a file-backed keyring, creating the directory if needed.
func NewKeyring(dir string) (*Keyring, error) {
	if dir == "" {
		dir = DefaultKeyringDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}
	return &Keyring{dir: dir}, nil
}

func (k *Keyring) keyPath(didStr string) string {
	return filepath.Join(k.dir, sanitizeFilename(didStr)+".jwk")
}

// Add stores a public key JWK under the DID in its kid field.
func (k *Keyring) Add(key jose.JSONWebKey) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if key.KeyID == "" {
		return fmt.Errorf("%w: missing kid", ErrInvalidKey)
	}
	pub := key.Public()
	if !pub.Valid() {
		return fmt.Errorf("%w: not a usable public key", ErrInvalidKey)
	}

	data, err := json.MarshalIndent(pub, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}
	if err := os.WriteFile(k.keyPath(key.KeyID), data, 0600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// Get retrieves a stored key by DID.
func (k *Keyring) Get(didStr string) (*jose.JSONWebKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	data, err := os.ReadFile(k.keyPath(didStr))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	var key jose.JSONWebKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to parse key: %w", err)
	}
	return &key, nil
}

// List returns all stored keys.
func (k *Keyring) List() ([]jose.JSONWebKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	entries, err := os.ReadDir(k.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring directory: %w", err)
	}

	var keys []jose.JSONWebKey
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jwk" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(k.dir, entry.Name()))
		if err != nil {
			continue
		}
		var key jose.JSONWebKey
		if err := json.Unmarshal(data, &key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Remove deletes a stored key by DID.
func (k *Keyring) Remove(didStr string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	path := k.keyPath(didStr)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	return nil
}

// Resolve maps a DID to raw public key bytes for signature verification.
// A key stored in the keyring wins; otherwise the key embedded in a did:key
// identifier is used. Suitable as a credential verification key resolver.
func (k *Keyring) Resolve(didStr string) ([]byte, error) {
	key, err := k.Get(didStr)
	if err == nil {
		if pub, ok := key.Key.(ed25519.PublicKey); ok {
			return pub, nil
		}
		if raw, ok := key.Key.([]byte); ok {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: unsupported key type for %s", ErrInvalidKey, didStr)
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, err
	}
	return did.PublicKey(didStr)
}

// sanitizeFilename converts a DID to a safe filename.
func sanitizeFilename(didStr string) string {
	safe := make([]byte, 0, len(didStr))
	for _, c := range []byte(didStr) {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			safe = append(safe, '_')
		default:
			safe = append(safe, c)
		}
	}
	return string(safe)
}
