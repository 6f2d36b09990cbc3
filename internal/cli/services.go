package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/semmy-space/gitvault/internal/cache"
	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/dispatch"
	"github.com/semmy-space/gitvault/internal/output"
	"github.com/semmy-space/gitvault/internal/secrets"
	"github.com/semmy-space/gitvault/internal/vault"
)

// Services lazily provides the wired core components to commands.
type Services interface {
	Dispatcher() (*dispatch.Dispatcher, error)
	VaultClient() (*vault.Client, error)
	Cache() (*cache.Cache, error)
}

// ServiceProvider lazily creates and caches the core components.
type ServiceProvider struct {
	cfg *config.Config

	clientOnce sync.Once
	client     *vault.Client
	clientErr  error

	cacheOnce sync.Once
	cache     *cache.Cache
	cacheErr  error

	dispatchOnce sync.Once
	dispatcher   *dispatch.Dispatcher
	dispatchErr  error
}

// NewServiceProvider creates a ServiceProvider with the given config.
func NewServiceProvider(cfg *config.Config) *ServiceProvider {
	return &ServiceProvider{cfg: cfg}
}

// VaultClient returns the secret-store client, creating it on first call.
// Creation is cheap: the session is initialized lazily on first use.
func (sp *ServiceProvider) VaultClient() (*vault.Client, error) {
	sp.clientOnce.Do(func() {
		client, err := vault.NewClient(sp.cfg)
		if err != nil {
			sp.clientErr = &output.CLIError{
				ExitCode: output.ExitConfigError,
				Message:  fmt.Sprintf("Failed to initialize secret store client: %v", err),
			}
			return
		}
		sp.client = client
	})
	return sp.client, sp.clientErr
}

// Cache returns the credential cache over the configured backend.
func (sp *ServiceProvider) Cache() (*cache.Cache, error) {
	sp.cacheOnce.Do(func() {
		backend, err := secrets.Open(sp.cfg.CacheBackend)
		if err != nil {
			sp.cacheErr = &output.CLIError{
				ExitCode: output.ExitGeneral,
				Message:  fmt.Sprintf("Failed to initialize credential cache: %v", err),
			}
			return
		}
		sp.cache = cache.New(backend)
	})
	return sp.cache, sp.cacheErr
}

// Dispatcher returns the operation dispatcher, creating it on first call.
func (sp *ServiceProvider) Dispatcher() (*dispatch.Dispatcher, error) {
	sp.dispatchOnce.Do(func() {
		client, err := sp.VaultClient()
		if err != nil {
			sp.dispatchErr = err
			return
		}

		c, err := sp.Cache()
		if err != nil {
			sp.dispatchErr = err
			return
		}

		ttl, err := sp.cfg.DefaultTTL()
		if err != nil {
			sp.dispatchErr = &output.CLIError{
				ExitCode: output.ExitConfigError,
				Message:  err.Error(),
			}
			return
		}

		sp.dispatcher = dispatch.New(client, c, ttl, sp.cfg.CacheStoreWrites, os.Stderr)
	})
	return sp.dispatcher, sp.dispatchErr
}
