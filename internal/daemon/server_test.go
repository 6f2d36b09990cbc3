package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/gitvault/internal/cache"
	"github.com/semmy-space/gitvault/internal/dispatch"
	"github.com/semmy-space/gitvault/internal/protocol"
	"github.com/semmy-space/gitvault/internal/vault"
)

type countingStore struct {
	mu         sync.Mutex
	fetchCalls int
}

func (c *countingStore) Fetch(ctx context.Context, req *protocol.Request) (*vault.Credential, error) {
	c.mu.Lock()
	c.fetchCalls++
	c.mu.Unlock()
	return &vault.Credential{Username: "svc", Secret: "s3cret", TTL: 300 * time.Second}, nil
}

func (c *countingStore) Revoke(ctx context.Context, leaseID string) error { return nil }

func (c *countingStore) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls
}

func startServer(t *testing.T, store dispatch.SecretStore) (*Server, context.CancelFunc) {
	t.Helper()
	d := dispatch.New(store, cache.New(cache.NewMemoryBackend()), 15*time.Minute, false, io.Discard)
	socket := filepath.Join(t.TempDir(), "gv.sock")
	srv := New(d, socket, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	// Wait for the socket to appear.
	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return srv, cancel
}

func roundTrip(t *testing.T, socket, payload string) string {
	t.Helper()
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer conn.Close()

	_, err = fmt.Fprint(conn, payload)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.UnixConn).CloseWrite())

	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

func TestServeGet(t *testing.T) {
	store := &countingStore{}
	srv, _ := startServer(t, store)

	resp := roundTrip(t, srv.Addr(), "get\nprotocol=https\nhost=git.example.com\n\n")
	assert.Equal(t, "protocol=https\nhost=git.example.com\nusername=svc\npassword=s3cret\n\n", resp)
}

func TestServeSharedCacheAcrossConnections(t *testing.T) {
	store := &countingStore{}
	srv, _ := startServer(t, store)

	payload := "get\nprotocol=https\nhost=git.example.com\n\n"
	first := roundTrip(t, srv.Addr(), payload)
	second := roundTrip(t, srv.Addr(), payload)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls(), "second connection is a cache hit")
}

func TestServeConcurrentConnections(t *testing.T) {
	store := &countingStore{}
	srv, _ := startServer(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := fmt.Sprintf("get\nprotocol=https\nhost=git%d.example.com\n\n", n)
			resp := roundTrip(t, srv.Addr(), payload)
			assert.Contains(t, resp, "password=s3cret")
		}(i)
	}
	wg.Wait()
}

func TestServeUnknownOperationClosesWithoutBody(t *testing.T) {
	store := &countingStore{}
	srv, _ := startServer(t, store)

	resp := roundTrip(t, srv.Addr(), "renew\nprotocol=https\nhost=git.example.com\n\n")
	assert.Empty(t, resp)
}

func TestServeEraseNoBody(t *testing.T) {
	store := &countingStore{}
	srv, _ := startServer(t, store)

	resp := roundTrip(t, srv.Addr(), "erase\nprotocol=https\nhost=git.example.com\n\n")
	assert.Empty(t, resp)
}
