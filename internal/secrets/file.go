package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// FileStore implements the Store interface using an AES-256-GCM encrypted file.
// This is the fallback for environments where the OS keyring is unavailable
// (WSL, headless CI, Docker) — exactly where a git credential helper tends
// to run.
type FileStore struct {
	path string
	key  []byte
}

// NewFileStore creates a new file-backed cache store at the default path.
// If password is empty, uses a machine-specific default (less secure, prints warning).
func NewFileStore(password string) (*FileStore, error) {
	return NewFileStoreAt(filepath.Join(xdg.DataHome, "gitvault", "cache.enc"), password)
}

// NewFileStoreAt creates a file-backed cache store at an explicit path.
func NewFileStoreAt(path, password string) (*FileStore, error) {
	var key []byte
	if password == "" {
		// Machine-specific default (less secure than user-provided password)
		hostname, _ := os.Hostname()
		username := os.Getenv("USER")
		if username == "" {
			username = os.Getenv("USERNAME") // Windows fallback
		}
		machineID := fmt.Sprintf("%s@%s", username, hostname)
		hash := sha256.Sum256([]byte(machineID))
		key = hash[:]
		warnOnce("WARNING: Using machine-specific encryption key for the credential cache. For better security, set GITVAULT_STORE_PASSWORD.")
	} else {
		hash := sha256.Sum256([]byte(password))
		key = hash[:]
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileStore{
		path: path,
		key:  key,
	}, nil
}

// encrypt encrypts plaintext using AES-256-GCM with a random 12-byte nonce.
// The nonce is prepended to the ciphertext.
func (s *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt decrypts ciphertext that was encrypted with encrypt().
func (s *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// readStore decrypts and parses the cache file.
// Returns an empty map if the file doesn't exist.
func (s *FileStore) readStore() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	if len(data) == 0 {
		return make(map[string]string), nil
	}

	plaintext, err := s.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cache: %w", err)
	}

	var store map[string]string
	if err := json.Unmarshal(plaintext, &store); err != nil {
		return nil, fmt.Errorf("failed to parse cache: %w", err)
	}

	return store, nil
}

// writeStore encrypts and writes the cache map to disk.
func (s *FileStore) writeStore(store map[string]string) error {
	plaintext, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to serialize cache: %w", err)
	}

	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.path, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// Get retrieves a cache entry by key from the encrypted file.
func (s *FileStore) Get(key string) (string, error) {
	store, err := s.readStore()
	if err != nil {
		return "", err
	}

	value, ok := store[key]
	if !ok {
		return "", ErrNotFound
	}

	return value, nil
}

// Set stores a cache entry in the encrypted file.
func (s *FileStore) Set(key, value string) error {
	store, err := s.readStore()
	if err != nil {
		return err
	}

	store[key] = value
	return s.writeStore(store)
}

// Delete removes a cache entry from the encrypted file.
func (s *FileStore) Delete(key string) error {
	store, err := s.readStore()
	if err != nil {
		return err
	}

	if _, ok := store[key]; !ok {
		return ErrNotFound
	}

	delete(store, key)
	return s.writeStore(store)
}

// List returns all cache keys from the encrypted file.
func (s *FileStore) List() ([]string, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(store))
	for k := range store {
		keys = append(keys, k)
	}

	return keys, nil
}
