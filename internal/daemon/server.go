// Package daemon runs the helper as a resident process serving credential
// operations over a unix socket, so a burst of Git invocations shares one
// session and one in-memory cache instead of N one-shot processes.
//
// Wire format: one line naming the operation (get, store, erase), then the
// standard key/value request block. The response is the standard key/value
// block, or nothing.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/semmy-space/gitvault/internal/dispatch"
)

// Server accepts connections and hands each one to the shared dispatcher.
// The dispatcher's cache (in-memory backend) and the vault client's session
// mutex provide the concurrency discipline; the server only adds per-
// connection deadlines and a global fetch rate bound.
type Server struct {
	dispatcher *dispatch.Dispatcher
	socketPath string
	timeout    time.Duration
	limiter    *rate.Limiter

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New creates a Server. timeout bounds each connection end to end so a hung
// peer (or a hung store call) cannot pin a worker forever.
func New(d *dispatch.Dispatcher, socketPath string, timeout time.Duration) *Server {
	return &Server{
		dispatcher: d,
		socketPath: socketPath,
		timeout:    timeout,
		// Enough for interactive bursts; protects the store from a
		// runaway CI loop hammering cache misses.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Serve listens on the unix socket until ctx is cancelled. The socket file
// is created with owner-only permissions and removed on shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.wg.Wait()
			os.Remove(s.socketPath)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

// Addr returns the socket path the server listens on.
func (s *Server) Addr() string {
	return s.socketPath
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	// The deadline mirrors the context so a blocked read unblocks too.
	conn.SetDeadline(time.Now().Add(s.timeout))

	reader := bufio.NewReader(conn)
	opLine, err := reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "gitvault: failed to read operation: %v\n", err)
		}
		return
	}
	op := strings.TrimSpace(opLine)

	if err := s.limiter.Wait(connCtx); err != nil {
		fmt.Fprintf(os.Stderr, "gitvault: rate limit wait aborted: %v\n", err)
		return
	}

	if err := s.dispatcher.Dispatch(connCtx, op, reader, conn); err != nil {
		// The peer sees the connection close without a response; the
		// daemon's stderr carries the diagnostic.
		fmt.Fprintf(os.Stderr, "gitvault: %s failed: %v\n", op, err)
	}
}
