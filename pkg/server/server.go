// Package server runs a set of adapters (and the optional metrics endpoint)
// as one process with a shared lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/adapter"
	"github.com/marmos91/hsha/pkg/metrics"
)

// DefaultShutdownTimeout bounds how long Serve waits for adapters to stop.
const DefaultShutdownTimeout = 30 * time.Second

// Server coordinates adapters: it starts them together, and when the context
// is cancelled or any adapter fails, it stops all of them in reverse
// registration order.
//
// Thread safety:
// AddAdapter and SetMetricsServer must be called before Serve. Serve may be
// called once.
type Server struct {
	adapters        []adapter.Adapter
	metricsServer   *metrics.Server
	shutdownTimeout time.Duration

	mu     sync.RWMutex
	served bool
}

// New creates an empty server.
func New() *Server {
	return &Server{
		adapters:        make([]adapter.Adapter, 0, 2),
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// SetShutdownTimeout changes the bound on stopping all adapters.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	if d > 0 {
		s.shutdownTimeout = d
	}
}

// SetMetricsServer attaches a metrics HTTP server started and stopped with
// the adapters.
func (s *Server) SetMetricsServer(ms *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = ms
}

// AddAdapter registers an adapter. Two adapters may not share a protocol name
// or a (non-ephemeral) port.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts every adapter and blocks until ctx is cancelled, an adapter
// fails, or all adapters have returned on their own.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by the context
//   - the first adapter failure, wrapped with its protocol
//   - nil when every adapter stopped cleanly by itself
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server: Serve() has already been called")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	s.mu.Unlock()

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(metricsCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped during shutdown: %v", protocol, err)
				}
				return
			}
			logger.Info("%s adapter stopped", protocol)
		}(adp)
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)

	case <-allDone:
		logger.Info("All adapters stopped")
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	<-allDone

	// An adapter failing after the others were already stopping is still
	// worth reporting.
	if shutdownErr == nil {
		select {
		case adapterErr := <-errChan:
			shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
		default:
		}
	}

	if metricsServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Stop(stopCtx)
		cancel()
	}

	logger.Info("Server stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stopped", protocol)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
