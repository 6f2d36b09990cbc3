package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Config holds the helper configuration.
//
// Durations are stored as strings ("15m", "10s") so the file stays editable
// by hand; use DefaultTTL and RequestTimeout for parsed values.
type Config struct {
	VaultAddress     string `json:"vault_address"`
	AuthMethod       string `json:"auth_method,omitempty"`        // token, userpass, approle
	AuthFallback     bool   `json:"auth_fallback,omitempty"`      // permit falling back to ambient token
	TokenFile        string `json:"token_file,omitempty"`         // default ~/.vault-token
	UserpassUsername string `json:"userpass_username,omitempty"`  // for userpass auth
	ApproleRoleID    string `json:"approle_role_id,omitempty"`    // for approle auth; secret_id comes from env only
	SecretPrefix     string `json:"secret_prefix,omitempty"`      // KV v2 mount + namespace, e.g. secret/data/git
	DefaultTTLRaw    string `json:"default_ttl,omitempty"`        // applied when the store supplies no lease
	RequestTimeout   string `json:"request_timeout,omitempty"`    // per-request bound on store calls
	CacheBackend     string `json:"cache_backend,omitempty"`      // auto, keyring, file, none
	CacheStoreWrites bool   `json:"cache_store_writes,omitempty"` // `store` op updates local cache only
}

// Defaults applied when the config file or a field is absent.
const (
	DefaultVaultAddress   = "https://127.0.0.1:8200"
	DefaultAuthMethod     = "token"
	DefaultSecretPrefix   = "secret/data/git"
	DefaultTTLValue       = 15 * time.Minute
	DefaultRequestTimeout = 10 * time.Second
	DefaultCacheBackend   = "auto"
)

// Load reads config from the XDG path, returns defaults if the file doesn't
// exist, then applies environment overrides (VAULT_ADDR and GITVAULT_*).
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from an explicit path (the --config flag).
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: defaults plus env overrides.
	} else {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv layers environment overrides over the file values.
// VAULT_ADDR follows the Vault CLI convention; everything else is GITVAULT_*.
func (c *Config) applyEnv() {
	if v := os.Getenv("VAULT_ADDR"); v != "" {
		c.VaultAddress = v
	}
	if v := os.Getenv("GITVAULT_AUTH_METHOD"); v != "" {
		c.AuthMethod = v
	}
	if v := os.Getenv("GITVAULT_AUTH_FALLBACK"); v != "" {
		c.AuthFallback = v == "1" || v == "true"
	}
	if v := os.Getenv("GITVAULT_SECRET_PREFIX"); v != "" {
		c.SecretPrefix = v
	}
	if v := os.Getenv("GITVAULT_DEFAULT_TTL"); v != "" {
		c.DefaultTTLRaw = v
	}
	if v := os.Getenv("GITVAULT_CACHE_BACKEND"); v != "" {
		c.CacheBackend = v
	}
}

func (c *Config) applyDefaults() {
	if c.VaultAddress == "" {
		c.VaultAddress = DefaultVaultAddress
	}
	if c.AuthMethod == "" {
		c.AuthMethod = DefaultAuthMethod
	}
	if c.SecretPrefix == "" {
		c.SecretPrefix = DefaultSecretPrefix
	}
	if c.CacheBackend == "" {
		c.CacheBackend = DefaultCacheBackend
	}
}

// Validate rejects configurations that would weaken the credential lifecycle.
func (c *Config) Validate() error {
	switch c.AuthMethod {
	case "token", "userpass", "approle":
	default:
		return fmt.Errorf("unknown auth_method: %s", c.AuthMethod)
	}

	switch c.CacheBackend {
	case "auto", "keyring", "file", "none":
	default:
		return fmt.Errorf("unknown cache_backend: %s", c.CacheBackend)
	}

	// A zero or negative TTL would cache credentials forever, which defeats
	// short-lived secrets. Reject it at load instead of at use.
	if _, err := c.DefaultTTL(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}

	return nil
}

// DefaultTTL returns the cache TTL applied when the store supplies no lease.
func (c *Config) DefaultTTL() (time.Duration, error) {
	if c.DefaultTTLRaw == "" {
		return DefaultTTLValue, nil
	}
	d, err := time.ParseDuration(c.DefaultTTLRaw)
	if err != nil {
		return 0, fmt.Errorf("invalid default_ttl %q: %w", c.DefaultTTLRaw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("default_ttl must be positive, got %q", c.DefaultTTLRaw)
	}
	return d, nil
}

// Timeout returns the per-request bound on secret-store calls.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("request_timeout must be positive, got %q", c.RequestTimeout)
	}
	return d, nil
}

// Save writes the config to the XDG config path
func (c *Config) Save() error {
	path := ConfigPath()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON (not JSON5 for writing - JSON is valid JSON5)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get retrieves a config value by key name
func (c *Config) Get(key string) (string, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if fieldMatches(t.Field(i), key) {
			return fmt.Sprintf("%v", v.Field(i).Interface()), nil
		}
	}

	return "", fmt.Errorf("unknown config key: %s", key)
}

// Set sets a config value by key name and saves
func (c *Config) Set(key, value string) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if !fieldMatches(t.Field(i), key) {
			continue
		}
		switch v.Field(i).Kind() {
		case reflect.String:
			v.Field(i).SetString(value)
		case reflect.Bool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("config key %s expects true or false: %w", key, err)
			}
			v.Field(i).SetBool(b)
		}
		if err := c.Validate(); err != nil {
			return err
		}
		return c.Save()
	}

	return fmt.Errorf("unknown config key: %s", key)
}

// Unset resets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if !fieldMatches(t.Field(i), key) {
			continue
		}
		v.Field(i).Set(reflect.Zero(v.Field(i).Type()))
		return c.Save()
	}

	return fmt.Errorf("unknown config key: %s", key)
}

// Keys returns all settable config key names, for `config list`.
func (c *Config) Keys() []string {
	t := reflect.TypeOf(*c)
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, tagName(t.Field(i)))
	}
	return keys
}

func fieldMatches(field reflect.StructField, key string) bool {
	return tagName(field) == key
}

func tagName(field reflect.StructField) string {
	tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	return tag
}
