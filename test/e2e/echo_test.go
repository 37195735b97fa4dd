//go:build linux || darwin || freebsd

package e2e

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/hsha/pkg/adapter/echo"
	"github.com/marmos91/hsha/pkg/processor"
)

// TestSingleLine tests one request and reply
func TestSingleLine(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		if err := c.Send("hello world\n"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}

		want := tc.Config.expected("hello world")
		got, err := c.ReadN(len(want), 5*time.Second)
		if err != nil {
			t.Fatalf("Failed to read reply: %v", err)
		}
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

// TestManyLinesOneClient pipelines lines on one connection. Replies may be
// reordered when several workers are running.
func TestManyLinesOneClient(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		c := tc.Dial()

		const count = 200
		var (
			input strings.Builder
			want  []string
		)
		for _, msg := range fixedPayloads("msg", count) {
			input.WriteString(msg + "\r\n")
			want = append(want, tc.Config.expected(msg))
		}

		if err := c.Send(input.String()); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}

		got := readFixed(t, c, len(want[0]), count)
		assertSameReplies(t, want, got)
	})
}

// TestConcurrentClients runs clients in parallel against a shared pool.
func TestConcurrentClients(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		const (
			clients  = 20
			messages = 50
		)

		conns := make([]*Client, clients)
		for i := range conns {
			conns[i] = tc.Dial()
		}

		var wg sync.WaitGroup
		errs := make(chan error, clients)

		for i, c := range conns {
			wg.Add(1)
			go func(id int, c *Client) {
				defer wg.Done()

				var want []string
				for m := 0; m < messages; m++ {
					msg := fmt.Sprintf("c%02d-m%03d", id, m)
					want = append(want, tc.Config.expected(msg))
					if err := c.Send(msg + "\n"); err != nil {
						errs <- fmt.Errorf("client %d send: %w", id, err)
						return
					}
				}

				raw, err := c.ReadN(len(want[0])*messages, 10*time.Second)
				if err != nil {
					errs <- fmt.Errorf("client %d read: %w", id, err)
					return
				}
				got := splitFixed(raw, len(want[0]))

				sort.Strings(want)
				sort.Strings(got)
				if strings.Join(want, ",") != strings.Join(got, ",") {
					errs <- fmt.Errorf("client %d received unexpected replies", id)
				}
			}(i, c)
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}

// TestClientDisconnectDoesNotAffectOthers closes one client mid-stream.
func TestClientDisconnectDoesNotAffectOthers(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		leaving := tc.Dial()
		staying := tc.Dial()

		if err := leaving.Send("bye\npartial"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
		_ = leaving.Close()

		if err := staying.Send("still here\n"); err != nil {
			t.Fatalf("Failed to send: %v", err)
		}
		want := tc.Config.expected("still here")
		got, err := staying.ReadN(len(want), 5*time.Second)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})
}

// TestIdentityReplies checks the worker identity prefix.
func TestIdentityReplies(t *testing.T) {
	tc := NewTestContext(t, &TestConfig{
		Name:      "identity",
		Framing:   echo.FramingLine,
		Processor: processor.TypeEcho,
		PoolSize:  1,
		Identity:  true,
	})
	defer tc.Cleanup()

	c := tc.Dial()
	if err := c.Send("ping\n"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	want := "Worker id: 1ping"
	got, err := c.ReadN(len(want), 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// TestChunkedFraming echoes reads verbatim, terminators included.
func TestChunkedFraming(t *testing.T) {
	tc := NewTestContext(t, &TestConfig{
		Name:      "chunked",
		Framing:   echo.FramingChunked,
		Processor: processor.TypeEcho,
		PoolSize:  2,
	})
	defer tc.Cleanup()

	c := tc.Dial()
	if err := c.Send("raw\r\nbytes"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if err := c.CloseWrite(); err != nil {
		t.Fatalf("Failed to half-close: %v", err)
	}

	got, err := c.ReadAll(5 * time.Second)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if got != "raw\r\nbytes" {
		t.Errorf("Expected verbatim echo, got %q", got)
	}
}

// TestGracefulShutdownDrainsConnections stops the server while clients are
// connected and checks every accepted request was answered.
func TestGracefulShutdownDrainsConnections(t *testing.T) {
	tc := NewTestContext(t, &TestConfig{
		Name:      "shutdown",
		Framing:   echo.FramingLine,
		Processor: processor.TypeReverse,
		PoolSize:  2,
	})
	defer tc.Cleanup()

	c := tc.Dial()
	if err := c.Send("abc\ndef\n"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	// Both replies arrive before shutdown starts.
	got := readFixed(t, c, 3, 2)
	assertSameReplies(t, []string{"cba", "fed"}, got)

	if err := tc.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Unexpected shutdown error: %v", err)
	}

	// The server closed our connection.
	rest, _ := c.ReadAll(5 * time.Second)
	if rest != "" {
		t.Errorf("Expected no further data, got %q", rest)
	}
	if n := tc.Adapter.ActiveConnections(); n != 0 {
		t.Errorf("Expected 0 active connections after shutdown, got %d", n)
	}
}
