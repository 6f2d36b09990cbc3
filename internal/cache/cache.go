// Package cache holds previously fetched credentials keyed by
// (protocol, host, path), honoring lease expiry. Persistence goes through a
// secrets.Store backend so entries are encrypted at rest; daemon mode swaps
// in the in-memory backend.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/semmy-space/gitvault/internal/secrets"
	"github.com/semmy-space/gitvault/internal/vault"
)

// Entry wraps a credential with its cache metadata. Servable only while
// now < ExpiresAt; expired entries are evicted on access, never served stale.
type Entry struct {
	Username  string    `json:"username"`
	Secret    string    `json:"secret"`
	LeaseID   string    `json:"lease_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cache is the credential cache over a persistence backend.
type Cache struct {
	backend secrets.Store
	now     func() time.Time
}

// New creates a Cache over the given backend.
func New(backend secrets.Store) *Cache {
	return &Cache{backend: backend, now: time.Now}
}

// Get returns the live entry for key, or absent. Both a missing entry and an
// expired one are a miss; expired entries are evicted lazily here rather
// than by a background sweep.
func (c *Cache) Get(key string) (*Entry, bool) {
	raw, err := c.backend.Get(entryKey(key))
	if err != nil {
		// Backend trouble degrades to a miss: the store is the source of
		// truth and a fetch will answer.
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		_ = c.backend.Delete(entryKey(key))
		return nil, false
	}

	if !c.now().Before(entry.ExpiresAt) {
		_ = c.backend.Delete(entryKey(key))
		return nil, false
	}

	return &entry, true
}

// Put stores a credential under key, fully replacing any existing entry.
// When the store granted a lease its duration is used verbatim; defaultTTL
// applies otherwise. A non-positive effective TTL is a defect, not a
// cache-forever feature.
func (c *Cache) Put(key string, cred *vault.Credential, defaultTTL time.Duration) error {
	ttl := cred.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return fmt.Errorf("refusing to cache credential without a finite ttl")
	}

	now := c.now()
	entry := Entry{
		Username:  cred.Username,
		Secret:    cred.Secret,
		LeaseID:   cred.LeaseID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}
	return c.backend.Set(entryKey(key), string(data))
}

// Invalidate removes the entry for key and returns it if one existed, even
// an expired one — erase still wants its lease ID for revocation.
func (c *Cache) Invalidate(key string) (*Entry, error) {
	raw, err := c.backend.Get(entryKey(key))
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if err := c.backend.Delete(entryKey(key)); err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// Len reports the number of stored entries, live or not, for status output.
func (c *Cache) Len() int {
	keys, err := c.backend.List()
	if err != nil {
		return 0
	}
	n := 0
	for _, k := range keys {
		if len(k) > len(keyPrefix) && k[:len(keyPrefix)] == keyPrefix {
			n++
		}
	}
	return n
}

// keyPrefix namespaces cache entries inside the shared secrets backend
// (the keyring service also holds non-cache items like the file-store marker).
const keyPrefix = "cred/"

func entryKey(key string) string {
	return keyPrefix + key
}
