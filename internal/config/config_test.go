package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json5"))
		require.NoError(t, err)
		assert.Equal(t, DefaultVaultAddress, cfg.VaultAddress)
		assert.Equal(t, "token", cfg.AuthMethod)
		assert.Equal(t, DefaultSecretPrefix, cfg.SecretPrefix)
	})

	t.Run("json5 with comments", func(t *testing.T) {
		path := writeConfig(t, `{
			// staging vault
			vault_address: "https://vault.staging.example.com:8200",
			auth_method: "approle",
			default_ttl: "5m",
		}`)
		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "https://vault.staging.example.com:8200", cfg.VaultAddress)
		assert.Equal(t, "approle", cfg.AuthMethod)

		ttl, err := cfg.DefaultTTL()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, ttl)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, `{"vault_address": "https://from-file:8200"}`)
		t.Setenv("VAULT_ADDR", "https://from-env:8200")
		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "https://from-env:8200", cfg.VaultAddress)
	})

	t.Run("unknown auth method rejected", func(t *testing.T) {
		path := writeConfig(t, `{"auth_method": "carrier-pigeon"}`)
		_, err := LoadFrom(path)
		assert.ErrorContains(t, err, "auth_method")
	})

	t.Run("non-positive ttl rejected", func(t *testing.T) {
		path := writeConfig(t, `{"default_ttl": "0s"}`)
		_, err := LoadFrom(path)
		assert.ErrorContains(t, err, "default_ttl")
	})

	t.Run("garbage ttl rejected", func(t *testing.T) {
		path := writeConfig(t, `{"default_ttl": "forever"}`)
		_, err := LoadFrom(path)
		assert.Error(t, err)
	})
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{}
	ttl, err := cfg.DefaultTTL()
	require.NoError(t, err)
	assert.Equal(t, DefaultTTLValue, ttl)

	timeout, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultRequestTimeout, timeout)

	cfg.RequestTimeout = "2s"
	timeout, err = cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, timeout)
}

func TestGetByKey(t *testing.T) {
	cfg := &Config{VaultAddress: "https://v:8200", AuthMethod: "token"}

	value, err := cfg.Get("vault_address")
	require.NoError(t, err)
	assert.Equal(t, "https://v:8200", value)

	value, err = cfg.Get("cache_store_writes")
	require.NoError(t, err)
	assert.Equal(t, "false", value)

	_, err = cfg.Get("nonexistent")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestKeys(t *testing.T) {
	cfg := &Config{}
	keys := cfg.Keys()
	assert.Contains(t, keys, "vault_address")
	assert.Contains(t, keys, "auth_method")
	assert.Contains(t, keys, "default_ttl")
	assert.Contains(t, keys, "cache_backend")
}
