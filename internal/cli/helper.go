package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmy-space/gitvault/internal/config"
)

// The three protocol commands read a key/value request from stdin and write
// the response to stdout. All human-facing text goes to stderr so Git never
// sees anything but protocol output.

// GetCmd resolves a credential for the request on stdin.
type GetCmd struct{}

func (cmd *GetCmd) Run(cfg *config.Config, services Services) error {
	return runProtocolOp(cfg, services, "get")
}

// StoreCmd accepts a credential Git wants remembered.
type StoreCmd struct{}

func (cmd *StoreCmd) Run(cfg *config.Config, services Services) error {
	return runProtocolOp(cfg, services, "store")
}

// EraseCmd drops the cached credential for the request on stdin.
type EraseCmd struct{}

func (cmd *EraseCmd) Run(cfg *config.Config, services Services) error {
	return runProtocolOp(cfg, services, "erase")
}

func runProtocolOp(cfg *config.Config, services Services, op string) error {
	d, err := services.Dispatcher()
	if err != nil {
		return err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The timeout bounds the whole operation including retries, not each
	// individual request; Git is waiting synchronously on the other end.
	ctx, cancel := context.WithTimeout(ctx, timeout*4)
	defer cancel()

	return d.Dispatch(ctx, op, os.Stdin, os.Stdout)
}
