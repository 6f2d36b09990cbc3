package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/output"
)

// StatusCmd reports store connectivity, session and cache state.
type StatusCmd struct{}

// StatusReport is the printable summary. It carries no secret material:
// addresses and method names only, never tokens or derived secret paths.
type StatusReport struct {
	Address       string
	AuthMethod    string
	SessionValid  bool
	Reachable     bool
	Initialized   bool
	Sealed        bool
	StoreVersion  string
	CacheBackend  string
	CachedEntries int
}

func (cmd *StatusCmd) Run(cfg *config.Config, services Services, fp *FormatterProvider) error {
	client, err := services.VaultClient()
	if err != nil {
		return err
	}

	c, err := services.Cache()
	if err != nil {
		return err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := StatusReport{
		Address:       cfg.VaultAddress,
		AuthMethod:    client.AuthMethodName(),
		SessionValid:  client.SessionValid(),
		CacheBackend:  cfg.CacheBackend,
		CachedEntries: c.Len(),
	}

	health, err := client.Health(ctx)
	if err != nil {
		fp.Formatter.PrintHint(fmt.Sprintf("store unreachable: %v", err))
	} else {
		report.Reachable = true
		report.Initialized = health.Initialized
		report.Sealed = health.Sealed
		report.StoreVersion = health.Version
	}

	if err := fp.Formatter.Print(report); err != nil {
		return err
	}

	if report.Reachable && report.Sealed {
		fp.Formatter.PrintHint("the store is sealed; credential requests will fail until it is unsealed")
	}
	if !report.Reachable {
		return output.NewCLIError(output.ExitUnavailable, "Unavailable: secret store unreachable")
	}

	return nil
}
