package e2e

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/config"
	"github.com/marmos91/hsha/pkg/server"
)

// TestContext provides a complete testing environment with:
// - A running hsha server built through the config package
// - Client helpers
// - Cleanup mechanisms
type TestContext struct {
	T       testing.TB
	Config  *TestConfig
	Server  *server.Server
	Adapter *echo.Adapter
	Port    int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	serveMu sync.Mutex
	served  error
	clients []*Client
}

// NewTestContext starts a server for the given configuration.
func NewTestContext(t testing.TB, cfg *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: cfg,
		ctx:    ctx,
		cancel: cancel,
		Port:   findFreePort(t),
	}

	tc.startServer()
	return tc
}

// startServer builds the server the same way cmd/hsha does.
func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	cfg := config.GetDefaultConfig()
	cfg.Adapters.Echo.Port = tc.Port
	cfg.Adapters.Echo.PoolSize = tc.Config.PoolSize
	cfg.Adapters.Echo.Framing = tc.Config.Framing
	cfg.Adapters.Echo.ShutdownTimeout = 10 * time.Second
	identity := tc.Config.Identity
	cfg.Adapters.Echo.Reply.Identity = &identity
	cfg.Processor.Type = tc.Config.Processor

	if err := config.Validate(cfg); err != nil {
		tc.T.Fatalf("Invalid test configuration %s: %v", tc.Config, err)
	}

	proc, err := config.CreateProcessor(&cfg.Processor)
	if err != nil {
		tc.T.Fatalf("Failed to create processor: %v", err)
	}

	metricsResult := config.InitializeMetrics(cfg)
	adapters, err := config.CreateAdapters(cfg, metricsResult.ReactorMetrics, proc)
	if err != nil {
		tc.T.Fatalf("Failed to create adapters: %v", err)
	}
	tc.Adapter = adapters[0].(*echo.Adapter)

	tc.Server = server.New()
	tc.Server.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
	for _, a := range adapters {
		if err := tc.Server.AddAdapter(a); err != nil {
			tc.T.Fatalf("Failed to add adapter: %v", err)
		}
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		err := tc.Server.Serve(tc.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			tc.T.Logf("Server error: %v", err)
		}
		tc.serveMu.Lock()
		tc.served = err
		tc.serveMu.Unlock()
	}()

	tc.waitForServer()
}

// waitForServer waits for the echo adapter to accept connections.
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	select {
	case <-tc.Adapter.Ready():
	case <-tc.Adapter.Done():
		tc.T.Fatal("Server stopped before becoming ready")
	case <-time.After(10 * time.Second):
		tc.T.Fatal("Timeout waiting for server to start")
	}
}

// Dial opens a client connection, closed by Cleanup.
func (tc *TestContext) Dial() *Client {
	tc.T.Helper()

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", tc.Port), 5*time.Second)
	if err != nil {
		tc.T.Fatalf("Failed to connect: %v", err)
	}

	c := &Client{conn: conn, r: bufio.NewReader(conn)}
	tc.clients = append(tc.clients, c)
	return c
}

// Stop shuts the server down and returns the error Serve returned.
func (tc *TestContext) Stop() error {
	tc.cancel()
	tc.wg.Wait()

	tc.serveMu.Lock()
	defer tc.serveMu.Unlock()
	return tc.served
}

// Cleanup closes clients and stops the server.
func (tc *TestContext) Cleanup() {
	for _, c := range tc.clients {
		_ = c.Close()
	}
	_ = tc.Stop()
}

// Client is a raw TCP client of the echo server.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Send writes s verbatim.
func (c *Client) Send(s string) error {
	_, err := c.conn.Write([]byte(s))
	return err
}

// ReadN reads exactly n bytes of reply.
func (c *Client) ReadN(n int, timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return string(buf), err
	}
	return string(buf), nil
}

// ReadAll reads until the server closes the connection.
func (c *Client) ReadAll(timeout time.Duration) (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	b, err := io.ReadAll(c.r)
	return string(b), err
}

// CloseWrite half-closes the connection so the server sees end of input.
func (c *Client) CloseWrite() error {
	return c.conn.(*net.TCPConn).CloseWrite()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// findFreePort finds an available TCP port
func findFreePort(t testing.TB) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
