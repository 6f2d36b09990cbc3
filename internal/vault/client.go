// Package vault is the secret-store client: it authenticates to a Vault
// server, fetches credentials from derived secret paths, and revokes leases.
// It knows nothing about the Git credential protocol beyond the parsed
// Request it receives.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/protocol"
)

// Credential is a secret fetched from the store. TTL is the store-granted
// lease duration; zero means the store granted no lease and the cache
// applies its configured default.
type Credential struct {
	Username string
	Secret   string
	LeaseID  string
	TTL      time.Duration
}

// Client talks to one Vault server. Safe for concurrent use: the session is
// guarded so at most one re-authentication is in flight at a time, and
// concurrent callers share its result.
type Client struct {
	addr     string
	prefix   string
	http     *http.Client
	method   Method
	fallback bool

	mu       sync.Mutex
	session  *Session
	sessions *sessionCache
	now      func() time.Time
}

// NewClient creates a Client from configuration. The session is initialized
// lazily on the first store operation, not here.
func NewClient(cfg *config.Config) (*Client, error) {
	method, err := MethodFor(cfg)
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	sessions, err := newSessionCache()
	if err != nil {
		return nil, err
	}

	return &Client{
		addr:     cfg.VaultAddress,
		prefix:   cfg.SecretPrefix,
		http:     &http.Client{Timeout: timeout},
		method:   method,
		fallback: cfg.AuthFallback,
		sessions: sessions,
		now:      time.Now,
	}, nil
}

// Fetch retrieves the credential for req from its derived secret path.
// Unavailable errors are retried with exponential backoff (3 attempts);
// a rejected session triggers exactly one transparent re-authentication.
func (c *Client) Fetch(ctx context.Context, req *protocol.Request) (*Credential, error) {
	path := DerivePath(c.prefix, req)

	var cred *Credential
	reauthed := false

	op := func() error {
		session, err := c.ensureSession(ctx, false)
		if err != nil {
			return backoff.Permanent(err)
		}

		status, body, err := c.do(ctx, http.MethodGet, path, nil, session.Token)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		switch {
		case status == http.StatusOK:
			cred, err = parseSecret(body, req.Username)
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil

		case status == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			if reauthed {
				return backoff.Permanent(fmt.Errorf("%w: token rejected after re-authentication", ErrAuthFailed))
			}
			reauthed = true
			if _, err := c.ensureSession(ctx, true); err != nil {
				return backoff.Permanent(err)
			}
			// Retry immediately with the fresh session.
			return fmt.Errorf("%w: token rejected, re-authenticated", ErrAuthFailed)

		case status >= 500:
			return fmt.Errorf("%w: server returned %d", ErrUnavailable, status)

		default:
			return backoff.Permanent(fmt.Errorf("unexpected status %d from secret store", status))
		}
	}

	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return cred, nil
}

// Revoke revokes a lease. Single attempt, no retries: revocation is
// best-effort advisory cleanup and the dispatcher only logs failures.
func (c *Client) Revoke(ctx context.Context, leaseID string) error {
	session, err := c.ensureSession(ctx, false)
	if err != nil {
		return err
	}

	status, _, err := c.do(ctx, http.MethodPut, "sys/leases/revoke", map[string]any{
		"lease_id": leaseID,
	}, session.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("revoke returned status %d", status)
	}
	return nil
}

// HealthStatus is the subset of /sys/health the status command reports.
type HealthStatus struct {
	Initialized bool   `json:"initialized"`
	Sealed      bool   `json:"sealed"`
	Version     string `json:"version"`
}

// Health checks reachability of the store. No authentication required.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	// /sys/health signals state through status codes (503 sealed, 501
	// uninitialized); any response at all means the store is reachable.
	_, body, err := c.do(ctx, http.MethodGet, "sys/health", nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var hs HealthStatus
	if err := json.Unmarshal(body, &hs); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &hs, nil
}

// AuthMethodName reports the configured method, for the status command.
func (c *Client) AuthMethodName() string {
	return c.method.Name()
}

// SessionValid reports whether a usable cached session exists, without
// triggering authentication.
func (c *Client) SessionValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.session.Valid(now) {
		return true
	}
	s, err := c.sessions.load(now)
	return err == nil && s != nil
}

// ensureSession returns a valid session, authenticating if needed.
// Re-authentication is a singleton: the mutex guarantees at most one login
// in flight, and concurrent callers wait for (and share) its result.
func (c *Client) ensureSession(ctx context.Context, force bool) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !force && c.session.Valid(now) {
		return c.session, nil
	}

	if force {
		c.session = nil
		if err := c.sessions.clear(); err != nil {
			fmt.Fprintf(os.Stderr, "gitvault: failed to clear session cache: %v\n", err)
		}
	} else {
		if s, err := c.sessions.load(now); err == nil && s != nil {
			c.session = s
			return s, nil
		}
	}

	session, err := c.method.Login(ctx, c)
	if err != nil && c.fallback && errors.Is(err, ErrAuthFailed) && c.method.Name() != "token" {
		// Explicitly configured fallback only, and never silently.
		fmt.Fprintf(os.Stderr, "gitvault: %s authentication failed, falling back to ambient token (auth_fallback enabled)\n", c.method.Name())
		session, err = (&tokenMethod{}).Login(ctx, c)
	}
	if err != nil {
		return nil, err
	}

	c.session = session
	if err := c.sessions.save(session); err != nil {
		// Non-fatal: the session still works for this invocation.
		fmt.Fprintf(os.Stderr, "gitvault: failed to cache session: %v\n", err)
	}
	return session, nil
}

// login performs an auth-backend login and converts the response to a
// Session. Used by the auth methods.
func (c *Client) login(ctx context.Context, authPath string, payload map[string]any) (*Session, error) {
	status, body, err := c.do(ctx, http.MethodPost, authPath, payload, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, fmt.Errorf("%w: login rejected with status %d", ErrAuthFailed, status)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: login returned status %d", ErrUnavailable, status)
	}

	var resp struct {
		Auth struct {
			ClientToken   string `json:"client_token"`
			LeaseDuration int    `json:"lease_duration"`
		} `json:"auth"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.Auth.ClientToken == "" {
		return nil, fmt.Errorf("%w: login response carried no token", ErrAuthFailed)
	}

	return &Session{
		Token:  resp.Auth.ClientToken,
		Expiry: sessionExpiry(c.now(), resp.Auth.LeaseDuration),
	}, nil
}

// do performs one HTTP round trip against the store's v1 API.
func (c *Client) do(ctx context.Context, method, apiPath string, payload any, token string) (int, []byte, error) {
	url := strings.TrimSuffix(c.addr, "/") + "/v1/" + strings.TrimPrefix(apiPath, "/")

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Vault-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)
}

// parseSecret converts a KV read response into a Credential. Handles both
// KV v2 (payload nested under data.data) and dynamic-secret responses
// (fields directly under data, lease metadata at the top level).
func parseSecret(body []byte, fallbackUsername string) (*Credential, error) {
	var resp struct {
		LeaseID       string         `json:"lease_id"`
		LeaseDuration int            `json:"lease_duration"`
		Data          map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse secret response: %w", err)
	}

	fields := resp.Data
	ttl := time.Duration(resp.LeaseDuration) * time.Second

	// KV v2 nests the payload one level deeper and reports TTL in metadata
	// rather than a lease.
	if nested, ok := resp.Data["data"].(map[string]any); ok {
		fields = nested
	}

	cred := &Credential{
		Username: stringField(fields, "username", "user"),
		Secret:   stringField(fields, "password", "token", "secret"),
		LeaseID:  resp.LeaseID,
		TTL:      ttl,
	}
	// A store-granted lease is used verbatim; a ttl field inside the secret
	// is only consulted when no lease was granted.
	if cred.TTL == 0 {
		if ttlField := stringField(fields, "ttl"); ttlField != "" {
			if d, err := time.ParseDuration(ttlField); err == nil && d > 0 {
				cred.TTL = d
			}
		}
	}

	if cred.Secret == "" {
		// Provisioned but unusable; let Git fall through to other sources.
		return nil, fmt.Errorf("%w: secret has no password, token or secret field", ErrNotFound)
	}
	if cred.Username == "" {
		cred.Username = fallbackUsername
	}
	return cred, nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
