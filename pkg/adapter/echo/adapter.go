// Package echo implements the half-sync/half-async echo server as an
// adapter.Adapter.
//
// The asynchronous half is a single dispatcher goroutine (the one calling
// Serve) that accepts connections, reads from every client socket and frames
// the bytes into work items. The synchronous half is a fixed worker pool that
// takes items off a shared FIFO queue, runs the processor and writes the
// result back to the originating connection.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/internal/ratelimiter"
	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/marmos91/hsha/pkg/processor"
	"github.com/marmos91/hsha/pkg/queue"
	"github.com/marmos91/hsha/pkg/reactor"
	"github.com/marmos91/hsha/pkg/workers"
)

// Adapter is the echo server.
//
// Shutdown flow:
//  1. Context cancelled, Stop() called, or the listener failed
//  2. Dispatcher stopped; the listening socket is closed once Run returns
//  3. Work queue deactivated (workers drain what is already queued)
//  4. Workers joined, up to ShutdownTimeout; on timeout in-flight processing
//     is cancelled and every connection is force-closed
//  5. Remaining connections closed
//
// Thread safety:
// Serve must be called once. Stop, Port, Ready and the counters are safe for
// concurrent use.
type Adapter struct {
	config    Config
	metrics   metrics.ReactorMetrics
	stats     *metrics.Stats
	processor processor.Processor

	// Owned by Serve; set before any goroutine can observe them.
	dispatcher *reactor.Dispatcher
	acceptor   *Acceptor
	queue      *queue.Queue[queue.WorkItem]
	pool       *workers.Pool
	conns      *connTable
	limiter    *ratelimiter.RateLimiter

	// readBuf is shared by every connection; only the dispatcher reads into it.
	readBuf []byte

	connCount atomic.Int32
	boundPort atomic.Int32

	brokenMu sync.Mutex
	broken   []*Connection

	mu           sync.Mutex
	started      bool
	shutdown     chan struct{}
	shutdownOnce sync.Once
	ready        chan struct{}
	done         chan struct{}
	failure      error
}

// New creates an echo adapter. It panics if config is invalid after defaults
// are applied, like a programming error; use Start for validated startup.
//
// metrics may be nil (no-op). proc may be nil, in which case payloads are
// echoed back immediately.
func New(config Config, m metrics.ReactorMetrics, proc processor.Processor) *Adapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid echo config: %v", err))
	}

	if m == nil {
		m = metrics.NewNoopReactorMetrics()
	}
	if proc == nil {
		proc = processor.NewEcho(0)
	}

	stats := metrics.NewStats()

	return &Adapter{
		config:    config,
		metrics:   metrics.Multi(m, stats),
		stats:     stats,
		processor: proc,
		conns:     newConnTable(),
		shutdown:  make(chan struct{}),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches an echo server on port with poolSize workers and returns once
// it is accepting connections. Port 0 picks an ephemeral port (see Port).
func Start(port, poolSize int) (*Adapter, error) {
	if poolSize < 1 {
		return nil, fmt.Errorf("invalid pool size %d: must be >= 1", poolSize)
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be 0-65535", port)
	}

	a := New(Config{Enabled: true, Port: port, PoolSize: poolSize}, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		err := a.Serve(context.Background())
		if err != nil {
			logger.Error("Echo server stopped: %v", err)
		}
		errCh <- err
	}()

	select {
	case <-a.Ready():
		return a, nil
	case err := <-errCh:
		if err == nil {
			err = errors.New("echo server stopped before it was ready")
		}
		return nil, err
	}
}

// Serve runs the server on the calling goroutine until ctx is cancelled, Stop
// is called, or the dispatcher fails.
//
// Returns nil on graceful shutdown, the failure otherwise.
func (a *Adapter) Serve(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.New("echo: Serve called twice")
	}
	a.started = true
	a.mu.Unlock()
	defer close(a.done)

	if err := a.setup(); err != nil {
		return err
	}
	defer func() {
		if err := a.dispatcher.Close(); err != nil {
			logger.Debug("Error closing dispatcher: %v", err)
		}
	}()

	a.mu.Lock()
	select {
	case <-a.shutdown:
		// Stop raced with startup.
		a.dispatcher.Stop()
	default:
	}
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Echo shutdown signal received: %v", ctx.Err())
			a.initiateShutdown()
		case <-a.shutdown:
		}
	}()

	logger.Info("Echo server listening on port %d", a.Port())
	logger.Debug("Echo config: pool_size=%d framing=%s processor=%s max_connections=%d queue_max_depth=%d",
		a.config.PoolSize, a.config.Framing, a.processor.Name(), a.config.MaxConnections, a.config.Queue.MaxDepth)
	close(a.ready)

	logCtx, stopLog := context.WithCancel(context.Background())
	defer stopLog()
	a.stats.StartLogger(logCtx, "Echo", a.config.MetricsLogInterval)

	runErr := a.dispatcher.Run()

	// Normally already done by the last sweep. Accepts happen only inside
	// Run, so nothing can race with this.
	a.acceptor.close()

	if runErr != nil {
		logger.Error("Dispatcher failed: %v", runErr)
		a.initiateShutdown()
	}

	shutdownErr := a.gracefulShutdown()

	a.mu.Lock()
	failure := a.failure
	a.mu.Unlock()

	switch {
	case runErr != nil:
		return runErr
	case failure != nil:
		return fmt.Errorf("echo listener failed: %w", failure)
	default:
		return shutdownErr
	}
}

// setup creates the dispatcher, listening socket and worker pool.
func (a *Adapter) setup() error {
	d, err := reactor.NewDispatcher()
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	fd, port, err := reactor.Listen(a.config.Port, a.config.Backlog)
	if err != nil {
		_ = d.Close()
		return fmt.Errorf("failed to create echo listener on port %d: %w", a.config.Port, err)
	}
	a.boundPort.Store(int32(port))

	a.mu.Lock()
	a.dispatcher = d
	a.mu.Unlock()

	a.acceptor = newAcceptor(a, fd)
	if err := d.Register(fd, reactor.InterestAccept, a.acceptor); err != nil {
		_ = reactor.CloseFD(fd)
		_ = d.Close()
		return fmt.Errorf("failed to watch echo listener: %w", err)
	}
	d.SetSweep(a.sweep)

	a.readBuf = make([]byte, a.config.ReadBufferSize)
	a.limiter = ratelimiter.New(a.config.AcceptRate.RequestsPerSecond, a.config.AcceptRate.Burst)
	if !a.limiter.Unlimited() {
		logger.Info("Echo accept rate limited to %d/s (burst %d)",
			a.config.AcceptRate.RequestsPerSecond, a.config.AcceptRate.Burst)
	}
	a.queue = queue.New[queue.WorkItem](queue.Options{MaxDepth: a.config.Queue.MaxDepth})

	a.pool = workers.New(workers.Config{
		Size:      a.config.PoolSize,
		Queue:     a.queue,
		Processor: a.processor,
		Responder: replier{a: a},
		Metrics:   a.metrics,
	})
	if err := a.pool.Start(); err != nil {
		a.acceptor.close()
		_ = d.Close()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// submit hands one frame to the worker pool. The item holds a reference on c
// until a worker finishes it.
func (a *Adapter) submit(c *Connection, frame []byte) {
	item := queue.NewWorkItem(c.id, frame)

	c.retain()
	if err := a.queue.Enqueue(item); err != nil {
		item.Release()
		c.release()

		reason := metrics.DropQueueClosed
		if errors.Is(err, queue.ErrQueueFull) {
			reason = metrics.DropQueueFull
		}
		a.metrics.RecordItemDropped(reason)
		logger.Debug("Dropped item from connection %d: %v", c.id, err)
		return
	}

	a.metrics.RecordItemEnqueued()
	a.metrics.SetQueueDepth(a.queue.Len())
}

// scheduleSweep queues a broken connection for teardown on the dispatcher
// goroutine.
func (a *Adapter) scheduleSweep(c *Connection) {
	a.brokenMu.Lock()
	a.broken = append(a.broken, c)
	a.brokenMu.Unlock()

	a.mu.Lock()
	d := a.dispatcher
	a.mu.Unlock()
	if d != nil {
		d.Wakeup()
	}
}

// sweep runs at the top of every dispatcher iteration. Once a stop was
// requested it closes the listener, so accepting ends before Run returns.
func (a *Adapter) sweep() {
	if a.dispatcher.Stopped() {
		a.acceptor.close()
	}

	a.brokenMu.Lock()
	broken := a.broken
	a.broken = nil
	a.brokenMu.Unlock()

	for _, c := range broken {
		logger.Debug("Tearing down broken connection %d from %s", c.id, c.remote)
		c.deregister()
	}
}

func (a *Adapter) deregister(fd int) error {
	return a.dispatcher.Deregister(fd)
}

// connectionClosed is called exactly once per connection, when its socket
// was closed.
func (a *Adapter) connectionClosed(c *Connection) {
	a.conns.remove(c.id)

	active := a.connCount.Add(-1)
	a.metrics.RecordConnectionClosed()
	a.metrics.SetActiveConnections(active)

	logger.Debug("Connection %d from %s closed (active: %d)", c.id, c.remote, active)
}

func (a *Adapter) acceptorFailed(err error) {
	a.mu.Lock()
	a.failure = err
	a.mu.Unlock()

	a.initiateShutdown()
}

// initiateShutdown asks the dispatcher to return. Idempotent.
func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		logger.Debug("Echo shutdown initiated")

		a.mu.Lock()
		close(a.shutdown)
		d := a.dispatcher
		a.mu.Unlock()

		if d != nil {
			d.Stop()
		}
	})
}

// gracefulShutdown runs steps 3-5 of the shutdown flow after the dispatcher
// has returned.
func (a *Adapter) gracefulShutdown() error {
	a.queue.Deactivate()

	logger.Info("Echo graceful shutdown: draining %d queued item(s) with %d worker(s) (timeout: %v)",
		a.queue.Len(), a.pool.Size(), a.config.ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	var err error
	if joinErr := a.pool.JoinAllContext(ctx); joinErr != nil {
		remaining := a.connCount.Load()
		logger.Warn("Echo shutdown timeout exceeded: %d worker(s) still busy after %v - forcing closure",
			a.pool.Alive(), a.config.ShutdownTimeout)

		a.pool.Cancel()
		a.forceCloseConnections()
		err = fmt.Errorf("echo shutdown timeout: %d connections force-closed", remaining)
	} else {
		logger.Info("Echo graceful shutdown complete: all workers exited")
	}

	a.closeConnections()
	return err
}

func (a *Adapter) forceCloseConnections() {
	conns := a.conns.snapshot()
	for _, c := range conns {
		c.abort()
		a.metrics.RecordConnectionForceClosed()
	}
	if len(conns) > 0 {
		logger.Info("Force-closed %d connection(s)", len(conns))
	}
}

// closeConnections drops the dispatcher's reference on every connection.
// Connections without outstanding items close immediately; the rest close
// when their last item is finished.
func (a *Adapter) closeConnections() {
	for _, c := range a.conns.snapshot() {
		c.deregister()
	}
}

// Stop initiates shutdown and waits for Serve to return or ctx to expire.
// Safe to call multiple times and before Serve.
func (a *Adapter) Stop(ctx context.Context) error {
	a.initiateShutdown()

	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		logger.Warn("Echo shutdown context cancelled: %d connection(s) still active: %v",
			a.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

// Protocol returns "echo".
func (a *Adapter) Protocol() string {
	return "echo"
}

// Port returns the bound port once listening, the configured port before.
func (a *Adapter) Port() int {
	if p := a.boundPort.Load(); p != 0 {
		return int(p)
	}
	return a.config.Port
}

// Stats returns a snapshot of the adapter's own counters. It is available
// whether or not Prometheus metrics are enabled.
func (a *Adapter) Stats() metrics.StatsSnapshot {
	return a.stats.Snapshot()
}

// Ready is closed once the server accepts connections.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// Done is closed when Serve has returned.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// ActiveConnections returns the number of open client connections.
func (a *Adapter) ActiveConnections() int {
	return int(a.connCount.Load())
}

// Workers returns the number of live workers.
func (a *Adapter) Workers() int {
	if a.pool == nil {
		return 0
	}
	return a.pool.Alive()
}

// replier writes worker results back to the originating connection.
type replier struct {
	a *Adapter
}

func (r replier) Respond(workerID int, item queue.WorkItem, result []byte) error {
	c := r.a.conns.get(item.ConnID)
	if c == nil {
		r.a.metrics.RecordItemDropped(metrics.DropConnGone)
		return ErrConnectionClosed
	}
	defer c.release()

	if r.a.config.Reply.IdentityEnabled() {
		return c.Reply([]byte("Worker id: "+strconv.Itoa(workerID)), result)
	}
	return c.Reply(result)
}

func (r replier) Discard(item queue.WorkItem, err error) {
	if c := r.a.conns.get(item.ConnID); c != nil {
		c.release()
	}
}

var _ workers.Responder = replier{}
