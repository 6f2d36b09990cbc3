package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/semmy-space/gitvault/internal/config"
)

// Session is the authentication state with the secret store: a client token
// and its expiry. A zero Expiry means the token has no known expiry (ambient
// tokens); it stays usable until the store rejects it.
type Session struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry,omitzero"`
}

// Valid reports whether the session can still be presented to the store.
// A small window before expiry counts as invalid so a token doesn't die
// mid-request.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.Expiry.IsZero() {
		return true
	}
	return s.Expiry.Sub(now) > 30*time.Second
}

// sessionCache persists the session across one-shot invocations so every
// `git push` doesn't re-authenticate. The file lock serializes refresh
// across concurrent helper processes: whoever wins the lock refreshes,
// the rest read the result.
type sessionCache struct {
	path     string
	lockPath string
}

func newSessionCache() (*sessionCache, error) {
	path := filepath.Join(config.CacheDir(), "session.json")
	return newSessionCacheAt(path)
}

func newSessionCacheAt(path string) (*sessionCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &sessionCache{
		path:     path,
		lockPath: path + ".lock",
	}, nil
}

// withLock runs fn while holding the session file lock.
func (sc *sessionCache) withLock(fn func() error) error {
	lock := flock.New(sc.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire session lock: timeout")
	}
	defer lock.Unlock()

	return fn()
}

// load reads the cached session. Returns nil without error when no cached
// session exists or it has expired.
func (sc *sessionCache) load(now time.Time) (*Session, error) {
	var session *Session
	err := sc.withLock(func() error {
		data, err := os.ReadFile(sc.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read session cache: %w", err)
		}

		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			// A corrupt cache is not fatal: re-authenticate.
			return nil
		}
		if s.Valid(now) {
			session = &s
		}
		return nil
	})
	return session, err
}

// save writes the session to disk with owner-only permissions.
func (sc *sessionCache) save(s *Session) error {
	return sc.withLock(func() error {
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(sc.path, data, 0600); err != nil {
			return fmt.Errorf("failed to write session cache: %w", err)
		}
		return nil
	})
}

// clear drops the cached session (after the store rejects its token).
func (sc *sessionCache) clear() error {
	return sc.withLock(func() error {
		if err := os.Remove(sc.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session cache: %w", err)
		}
		return nil
	})
}
