package revocation

import (
	"context"

	"github.com/agentauth/agentauth-core/pkg/credential"
)

// CachingStore decorates a credential store with the local file cache.
// Revocations written through it land in both places, and IsRevoked answers
// from the cache first, so revocations stay visible across processes even
// when the backing store is per-process or unreachable.
type CachingStore struct {
	credential.Store
	cache *FileCache
}

// WrapStore decorates store with cache.
func WrapStore(store credential.Store, cache *FileCache) *CachingStore {
	return &CachingStore{Store: store, cache: cache}
}

// StoreRevocation writes through to both the backing store and the cache.
func (s *CachingStore) StoreRevocation(ctx context.Context, rev *credential.Revocation) error {
	if err := s.Store.StoreRevocation(ctx, rev); err != nil {
		return err
	}
	return s.cache.Add(Entry{
		CredentialID: rev.CredentialID,
		RevokedAt:    rev.RevokedAt,
		Reason:       rev.Reason,
	})
}

// IsRevoked answers from the cache when it can; a cache miss falls through
// to the backing store.
func (s *CachingStore) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	if s.cache.IsRevoked(credentialID) {
		return true, nil
	}
	return s.Store.IsRevoked(ctx, credentialID)
}
