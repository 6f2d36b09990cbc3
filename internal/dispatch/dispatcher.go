// Package dispatch orchestrates the three credential operations: it decodes
// requests, consults the cache, falls back to the secret store, and is the
// single place where failure kinds become exit codes and stderr text.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/semmy-space/gitvault/internal/cache"
	"github.com/semmy-space/gitvault/internal/output"
	"github.com/semmy-space/gitvault/internal/protocol"
	"github.com/semmy-space/gitvault/internal/vault"
)

// SecretStore is the slice of the vault client the dispatcher needs.
type SecretStore interface {
	Fetch(ctx context.Context, req *protocol.Request) (*vault.Credential, error)
	Revoke(ctx context.Context, leaseID string) error
}

// Dispatcher wires the codec, cache and store together for one operation.
type Dispatcher struct {
	store            SecretStore
	cache            *cache.Cache
	defaultTTL       time.Duration
	cacheStoreWrites bool
	stderr           io.Writer
}

// New creates a Dispatcher. stderr receives advisory diagnostics (revoke
// failures, cache write warnings); fatal errors are returned as CLIErrors
// and printed by the caller.
func New(store SecretStore, c *cache.Cache, defaultTTL time.Duration, cacheStoreWrites bool, stderr io.Writer) *Dispatcher {
	return &Dispatcher{
		store:            store,
		cache:            c,
		defaultTTL:       defaultTTL,
		cacheStoreWrites: cacheStoreWrites,
		stderr:           stderr,
	}
}

// Dispatch runs one named operation. The operations are independent; none
// transitions to another.
func (d *Dispatcher) Dispatch(ctx context.Context, op string, in io.Reader, out io.Writer) error {
	switch op {
	case "get":
		return d.Get(ctx, in, out)
	case "store":
		return d.Store(ctx, in, out)
	case "erase":
		return d.Erase(ctx, in, out)
	default:
		return output.NewCLIError(output.ExitUsage, fmt.Sprintf("unknown operation %q (want get, store or erase)", op))
	}
}

// Get answers a credential request: cache first, store on miss. A missing
// secret is not a failure — the empty response lets Git fall through to its
// other credential sources.
func (d *Dispatcher) Get(ctx context.Context, in io.Reader, out io.Writer) error {
	req, err := d.decode(in)
	if err != nil {
		return err
	}

	key := req.Key()
	if entry, ok := d.cache.Get(key); ok {
		return protocol.Encode(out, req, entry.Username, entry.Secret)
	}

	cred, err := d.store.Fetch(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrNotFound):
			return protocol.EncodeEmpty(out)
		case errors.Is(err, vault.ErrAuthFailed):
			return output.NewCLIError(output.ExitAuth, "AuthFailed: secret store rejected authentication").
				WithHint("check your auth_method configuration and credentials")
		case errors.Is(err, vault.ErrUnavailable):
			return output.NewCLIError(output.ExitUnavailable, "Unavailable: secret store unreachable after retries")
		default:
			return output.NewCLIError(output.ExitGeneral, fmt.Sprintf("credential fetch failed: %v", err))
		}
	}

	if err := d.cache.Put(key, cred, d.defaultTTL); err != nil {
		// Not fatal: the credential is still good for this invocation.
		fmt.Fprintf(d.stderr, "gitvault: failed to cache credential: %v\n", err)
	}

	return protocol.Encode(out, req, cred.Username, cred.Secret)
}

// Store accepts the credential Git wants remembered. The secret store is the
// source of truth, so nothing is written back to it; by default this is a
// protocol-satisfying no-op. With cache_store_writes enabled the credential
// goes into the local cache only, expiring on the default TTL.
func (d *Dispatcher) Store(ctx context.Context, in io.Reader, out io.Writer) error {
	req, err := d.decode(in)
	if err != nil {
		return err
	}

	if d.cacheStoreWrites && req.Password != "" {
		cred := &vault.Credential{Username: req.Username, Secret: req.Password}
		if err := d.cache.Put(req.Key(), cred, d.defaultTTL); err != nil {
			fmt.Fprintf(d.stderr, "gitvault: failed to cache stored credential: %v\n", err)
		}
	}

	return protocol.EncodeEmpty(out)
}

// Erase drops any cached entry for the request and, when that entry carried
// a revocable lease, revokes it best-effort. Erase always succeeds from the
// caller's perspective: it is advisory cleanup, not a destruction guarantee.
func (d *Dispatcher) Erase(ctx context.Context, in io.Reader, out io.Writer) error {
	req, err := d.decode(in)
	if err != nil {
		return err
	}

	entry, err := d.cache.Invalidate(req.Key())
	if err != nil {
		fmt.Fprintf(d.stderr, "gitvault: failed to invalidate cache entry: %v\n", err)
	}

	if entry != nil && entry.LeaseID != "" {
		if err := d.store.Revoke(ctx, entry.LeaseID); err != nil {
			fmt.Fprintf(d.stderr, "gitvault: RevokeFailed: %v\n", err)
		}
	}

	return protocol.EncodeEmpty(out)
}

func (d *Dispatcher) decode(in io.Reader) (*protocol.Request, error) {
	req, err := protocol.Decode(in)
	if err != nil {
		if errors.Is(err, protocol.ErrMalformed) {
			return nil, output.NewCLIError(output.ExitUsage, fmt.Sprintf("MalformedRequest: %v", err))
		}
		return nil, output.NewCLIError(output.ExitGeneral, fmt.Sprintf("failed to read request: %v", err))
	}
	return req, nil
}
