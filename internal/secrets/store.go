// Package secrets provides the at-rest backends for cached credentials:
// the OS keyring where available, an AES-256-GCM encrypted file otherwise.
// Cached Vault credentials never touch disk in plaintext.
package secrets

import (
	"errors"
	"fmt"
	"os"
)

// Store is the interface for credential-cache persistence.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	List() ([]string, error)
}

// ErrNotFound is returned when a key is not found in the store
var ErrNotFound = errors.New("key not found")

// ServiceName is the service identifier for keyring storage
const ServiceName = "gitvault"

// Open creates a Store for the configured backend.
// "auto" tries the OS keyring and falls back to the encrypted file;
// "keyring" and "file" force a backend and fail if it is unusable.
func Open(backend string) (Store, error) {
	switch backend {
	case "", "auto":
		return NewStore()
	case "keyring":
		return NewKeyringStore()
	case "file":
		return NewFileStore(os.Getenv("GITVAULT_STORE_PASSWORD"))
	case "none":
		return nullStore{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}

// nullStore disables persistence: every lookup misses and writes vanish.
type nullStore struct{}

func (nullStore) Get(key string) (string, error) { return "", ErrNotFound }
func (nullStore) Set(key, value string) error    { return nil }
func (nullStore) Delete(key string) error        { return nil }
func (nullStore) List() ([]string, error)        { return nil, nil }
