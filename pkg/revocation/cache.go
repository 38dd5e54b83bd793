// Package revocation provides a local file cache of credential revocations.
// It enables offline and semi-connected verification: a verifier syncs the
// cache while a backend is reachable and keeps rejecting revoked credentials
// after losing it. The cache can only be behind, never wrong: a revocation
// it holds is definitive, a miss may just not have synced yet.
package revocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Common errors returned by this package.
var (
	ErrCacheCorrupt = errors.New("revocation cache is corrupt")
)

// DefaultStaleThreshold is the age after which a cache should be re-synced.
const DefaultStaleThreshold = 5 * time.Minute

// Entry is a single cached revocation.
type Entry struct {
	CredentialID string    `json:"credentialId"`
	RevokedAt    time.Time `json:"revokedAt"`
	Reason       string    `json:"reason,omitempty"`
}

// cacheData is the serialized cache format.
type cacheData struct {
	SyncedAt time.Time `json:"syncedAt"`
	Entries  []Entry   `json:"entries"`
}

// FileCache is a JSON-file-backed revocation cache. Safe for concurrent use
// within one process; concurrent writers from separate processes are not
// coordinated.
type FileCache struct {
	path string
	mu   sync.RWMutex

	data  *cacheData
	index map[string]bool
}

// DefaultCachePath returns the default cache file location.
func DefaultCachePath() string {
	if envPath := os.Getenv("AGENTAUTH_CACHE_PATH"); envPath != "" {
		return filepath.Join(envPath, "revocations.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".agentauth", "cache", "revocations.json")
	}
	return filepath.Join(home, ".agentauth", "cache", "revocations.json")
}

// NewFileCache opens a file-backed cache, creating its directory if needed.
// A missing file yields an empty cache; a corrupt file is discarded.
func NewFileCache(path string) (*FileCache, error) {
	if path == "" {
		path = DefaultCachePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &FileCache{
		path:  path,
		data:  &cacheData{},
		index: make(map[string]bool),
	}
	if err := cache.load(); err != nil && !os.IsNotExist(err) {
		cache.data = &cacheData{}
		cache.index = make(map[string]bool)
	}
	return cache, nil
}

// IsRevoked reports whether a credential id is in the cache.
func (c *FileCache) IsRevoked(credentialID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index[credentialID]
}

// Add records one revocation. Adding a cached id again is a no-op.
func (c *FileCache) Add(entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index[entry.CredentialID] {
		return nil
	}
	c.data.Entries = append(c.data.Entries, entry)
	c.index[entry.CredentialID] = true
	c.data.SyncedAt = time.Now().UTC()
	return c.save()
}

// Sync merges a batch of revocations into the cache and stamps the sync
// time, even when the batch is empty.
func (c *FileCache) Sync(entries []Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range entries {
		if !c.index[entry.CredentialID] {
			c.data.Entries = append(c.data.Entries, entry)
			c.index[entry.CredentialID] = true
		}
	}
	c.data.SyncedAt = time.Now().UTC()
	return c.save()
}

// LastSynced returns when the cache last merged from a backend.
func (c *FileCache) LastSynced() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.SyncedAt
}

// IsStale reports whether the cache is older than the threshold. A cache
// that never synced is always stale.
func (c *FileCache) IsStale(threshold time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.SyncedAt.IsZero() {
		return true
	}
	return time.Since(c.data.SyncedAt) > threshold
}

// Count returns the number of cached revocations.
func (c *FileCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Entries)
}

// Clear drops all cached revocations and removes the file.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = &cacheData{}
	c.index = make(map[string]bool)
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

func (c *FileCache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	var cached cacheData
	if err := json.Unmarshal(data, &cached); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	c.data = &cached
	c.index = make(map[string]bool, len(cached.Entries))
	for _, entry := range cached.Entries {
		c.index[entry.CredentialID] = true
	}
	return nil
}

func (c *FileCache) save() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}
