package redis

import (
	"context"

	"github.com/agentauth/agentauth-core/pkg/credential"
)

// Store layers the shared Redis revocation list over a credential store.
// Revocations written through it land in both places, so a credential
// revoked by one verifier process is immediately revoked for all of them.
type Store struct {
	credential.Store
	cache *Cache
}

// WrapStore decorates store with the shared cache.
func WrapStore(store credential.Store, cache *Cache) *Store {
	return &Store{Store: store, cache: cache}
}

// StoreRevocation writes through to both the backing store and Redis.
func (s *Store) StoreRevocation(ctx context.Context, rev *credential.Revocation) error {
	if err := s.Store.StoreRevocation(ctx, rev); err != nil {
		return err
	}
	return s.cache.AddRevocation(ctx, rev.CredentialID)
}

// IsRevoked consults the shared list first; a miss falls through to the
// backing store.
func (s *Store) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	revoked, err := s.cache.IsRevoked(ctx, credentialID)
	if err == nil && revoked {
		return true, nil
	}
	// A Redis error degrades to the backing store rather than failing the
	// verification outright.
	return s.Store.IsRevoked(ctx, credentialID)
}
