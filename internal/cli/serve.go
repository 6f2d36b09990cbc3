package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/semmy-space/gitvault/internal/cache"
	"github.com/semmy-space/gitvault/internal/config"
	"github.com/semmy-space/gitvault/internal/daemon"
	"github.com/semmy-space/gitvault/internal/dispatch"
	"github.com/semmy-space/gitvault/internal/output"
)

// ServeCmd runs the helper as a resident daemon on a unix socket. Clients
// send the operation name on the first line, then the usual request block.
type ServeCmd struct {
	Socket  string        `help:"Unix socket path (default: under the cache directory)" type:"path"`
	Timeout time.Duration `help:"Per-connection timeout" default:"30s"`
}

func (cmd *ServeCmd) Run(cfg *config.Config, services Services) error {
	client, err := services.VaultClient()
	if err != nil {
		return err
	}

	ttl, err := cfg.DefaultTTL()
	if err != nil {
		return err
	}

	// The daemon keeps its cache in memory only: entries die with the
	// process and nothing is written to disk while serving.
	d := dispatch.New(client, cache.New(cache.NewMemoryBackend()), ttl, cfg.CacheStoreWrites, os.Stderr)

	socket := cmd.Socket
	if socket == "" {
		socket = filepath.Join(config.CacheDir(), "daemon.sock")
	}
	if err := os.MkdirAll(filepath.Dir(socket), 0700); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to create socket directory: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := daemon.New(d, socket, cmd.Timeout)
	fmt.Fprintf(os.Stderr, "gitvault: serving on %s\n", socket)

	if err := srv.Serve(ctx); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Daemon failed: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}

	fmt.Fprintln(os.Stderr, "gitvault: daemon stopped")
	return nil
}
