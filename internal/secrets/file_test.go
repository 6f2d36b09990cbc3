package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStoreAt(filepath.Join(t.TempDir(), "cache.enc"), "test-password")
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("cred/https/git.example.com", `{"username":"svc"}`))

	value, err := store.Get("cred/https/git.example.com")
	require.NoError(t, err)
	assert.Equal(t, `{"username":"svc"}`, value)
}

func TestFileStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, store.Delete("k"))

	_, err := store.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("k"), ErrNotFound)
}

func TestFileStoreSetReplaces(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("k", "old"))
	require.NoError(t, store.Set("k", "new"))

	value, err := store.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "new", value)
}

func TestFileStoreCiphertextOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.enc")
	store, err := NewFileStoreAt(path, "test-password")
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "super-secret-value"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "super-secret-value", "cache must not hold plaintext")
}

func TestFileStoreWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.enc")
	store, err := NewFileStoreAt(path, "right")
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))

	other, err := NewFileStoreAt(path, "wrong")
	require.NoError(t, err)
	_, err = other.Get("k")
	assert.Error(t, err)
}

func TestFileStoreList(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Set("a", "1"))
	require.NoError(t, store.Set("b", "2"))

	keys, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("punchcards")
	assert.ErrorContains(t, err, "unknown cache backend")
}

func TestOpenNoneBackendNeverStores(t *testing.T) {
	store, err := Open("none")
	require.NoError(t, err)

	require.NoError(t, store.Set("k", "v"))
	_, err = store.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
