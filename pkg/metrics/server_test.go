package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_StartServesAndStops(t *testing.T) {
	InitRegistry()

	s := NewServer(ServerConfig{Port: 0, ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Port() != 0 }, 2*time.Second, 10*time.Millisecond)

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/", s.Port()))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/metrics")

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", s.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/nope", s.Port()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	// A second Stop is a no-op.
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServer_PortInUse(t *testing.T) {
	first := NewServer(ServerConfig{Port: 0})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	require.Eventually(t, func() bool { return first.Port() != 0 }, 2*time.Second, 10*time.Millisecond)

	second := NewServer(ServerConfig{Port: first.Port()})
	err := second.Start(context.Background())
	assert.Error(t, err)
}
