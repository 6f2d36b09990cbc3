package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/gitvault/internal/vault"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	return New(NewMemoryBackend())
}

func TestGetMissingKey(t *testing.T) {
	c := testCache(t)
	_, ok := c.Get("cred-key")
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	c := testCache(t)
	cred := &vault.Credential{Username: "svc", Secret: "s3cret", LeaseID: "lease-1", TTL: 300 * time.Second}
	require.NoError(t, c.Put("cred-key", cred, 15*time.Minute))

	entry, ok := c.Get("cred-key")
	require.True(t, ok)
	assert.Equal(t, "svc", entry.Username)
	assert.Equal(t, "s3cret", entry.Secret)
	assert.Equal(t, "lease-1", entry.LeaseID)

	// Store lease used verbatim, not the default TTL.
	assert.WithinDuration(t, time.Now().Add(300*time.Second), entry.ExpiresAt, 2*time.Second)
}

func TestPutDefaultTTL(t *testing.T) {
	c := testCache(t)
	cred := &vault.Credential{Username: "svc", Secret: "s3cret"} // no lease
	require.NoError(t, c.Put("cred-key", cred, 10*time.Minute))

	entry, ok := c.Get("cred-key")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), entry.ExpiresAt, 2*time.Second)
}

func TestPutRejectsInfiniteTTL(t *testing.T) {
	c := testCache(t)
	cred := &vault.Credential{Username: "svc", Secret: "s3cret"}
	assert.Error(t, c.Put("cred-key", cred, 0), "cache-forever is a defect")
}

func TestExpiredEntryIsMissAndEvicted(t *testing.T) {
	backend := NewMemoryBackend()
	c := New(backend)
	c.now = func() time.Time { return time.Now().Add(-time.Hour) } // entry created in the past
	cred := &vault.Credential{Username: "svc", Secret: "s3cret", TTL: time.Minute}
	require.NoError(t, c.Put("cred-key", cred, time.Minute))

	c.now = time.Now
	_, ok := c.Get("cred-key")
	assert.False(t, ok)

	// Lazily evicted, not just hidden.
	_, err := backend.Get("cred/cred-key")
	assert.Error(t, err)
}

func TestPutReplacesEntirely(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Put("cred-key", &vault.Credential{Username: "old", Secret: "old", LeaseID: "l1"}, time.Minute))
	require.NoError(t, c.Put("cred-key", &vault.Credential{Username: "new", Secret: "new"}, time.Minute))

	entry, ok := c.Get("cred-key")
	require.True(t, ok)
	assert.Equal(t, "new", entry.Username)
	assert.Empty(t, entry.LeaseID, "last write wins, no field merge")
}

func TestInvalidate(t *testing.T) {
	c := testCache(t)
	require.NoError(t, c.Put("cred-key", &vault.Credential{Username: "svc", Secret: "x", LeaseID: "lease-9"}, time.Minute))

	entry, err := c.Invalidate("cred-key")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "lease-9", entry.LeaseID, "erase needs the lease for revocation")

	_, ok := c.Get("cred-key")
	assert.False(t, ok)
}

func TestInvalidateMissing(t *testing.T) {
	c := testCache(t)
	entry, err := c.Invalidate("cred-key")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestInvalidateReturnsExpiredEntry(t *testing.T) {
	c := testCache(t)
	c.now = func() time.Time { return time.Now().Add(-time.Hour) }
	require.NoError(t, c.Put("cred-key", &vault.Credential{Username: "svc", Secret: "x", LeaseID: "lease-9"}, time.Minute))

	c.now = time.Now
	entry, err := c.Invalidate("cred-key")
	require.NoError(t, err)
	require.NotNil(t, entry, "expired entries still surface their lease on erase")
	assert.Equal(t, "lease-9", entry.LeaseID)
}

func TestLen(t *testing.T) {
	c := testCache(t)
	assert.Zero(t, c.Len())
	require.NoError(t, c.Put("a", &vault.Credential{Username: "u", Secret: "s"}, time.Minute))
	require.NoError(t, c.Put("b", &vault.Credential{Username: "u", Secret: "s"}, time.Minute))
	assert.Equal(t, 2, c.Len())
}

func TestMemoryBackendConcurrency(t *testing.T) {
	backend := NewMemoryBackend()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = backend.Set("k", "v")
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		_, _ = backend.Get("k")
	}
	<-done
}
