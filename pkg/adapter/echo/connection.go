package echo

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/reactor"
)

// ErrConnectionClosed is returned by Reply once the connection is broken or
// closed.
var ErrConnectionClosed = errors.New("echo: connection closed")

// Connection is one accepted client socket.
//
// Reads happen only on the dispatcher goroutine (HandleEvent), so the framer
// needs no locking. Replies come from workers and serialize on writeMu.
//
// Lifetime is reference counted: the dispatcher registration holds one
// reference and every queued work item holds one. The socket is closed when
// the last reference is released, so a worker never replies on a descriptor
// that was closed (and possibly reused) underneath it.
type Connection struct {
	id     uint64
	fd     int
	remote string

	adapter *Adapter
	framer  framer

	refs atomic.Int32

	// closing is set once the connection left the dispatcher; no further
	// items are produced after that.
	closing atomic.Bool

	// broken is set by a failed write; the dispatcher sweep deregisters it.
	broken atomic.Bool

	writeMu sync.Mutex

	// fdMu guards the descriptor's lifetime: once closed is set the number
	// may already belong to another socket.
	fdMu   sync.Mutex
	closed bool
}

func newConnection(a *Adapter, fd int, remote string) *Connection {
	c := &Connection{
		fd:      fd,
		remote:  remote,
		adapter: a,
		framer:  newFramer(a.config.Framing, a.config.MaxLineLength),
	}
	c.refs.Store(1)
	return c
}

// HandleEvent is the dispatcher callback for read readiness.
func (c *Connection) HandleEvent(reactor.Interest) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in connection handler from %s: %v\n%s", c.remote, r, debug.Stack())
			c.deregister()
		}
	}()

	c.onReadable(c.adapter.readBuf)
}

// onReadable performs one bounded read into the dispatcher's shared buffer
// and turns the bytes into work items.
func (c *Connection) onReadable(buf []byte) {
	if c.closing.Load() {
		return
	}

	n, err := reactor.Read(c.fd, buf)
	if err != nil && reactor.IsWouldBlock(err) {
		return
	}

	if err != nil || n == 0 {
		if err != nil {
			logger.Debug("Read error on connection %d from %s: %v", c.id, c.remote, err)
		} else {
			logger.Debug("Connection %d from %s closed by peer", c.id, c.remote)
		}

		// The close terminates whatever line was still open.
		c.framer.flush(c.submit)
		c.deregister()
		return
	}

	c.adapter.metrics.RecordBytes("read", n)
	c.framer.feed(buf[:n], c.submit)
}

func (c *Connection) submit(frame []byte) {
	c.adapter.submit(c, frame)
}

// Reply writes parts back to the client, in order, as one uninterrupted
// sequence with respect to other replies on this connection.
//
// Safe to call from any goroutine. On a write failure the connection is
// marked broken and the dispatcher is woken to tear it down.
func (c *Connection) Reply(parts ...[]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed || c.broken.Load() {
		return ErrConnectionClosed
	}

	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		if err := reactor.WriteAll(c.fd, part, c.adapter.config.WriteTimeout); err != nil {
			c.markBroken()
			return fmt.Errorf("write to %s: %w", c.remote, err)
		}
		c.adapter.metrics.RecordBytes("write", len(part))
	}
	return nil
}

func (c *Connection) markBroken() {
	if c.broken.CompareAndSwap(false, true) {
		c.adapter.scheduleSweep(c)
	}
}

func (c *Connection) retain() {
	c.refs.Add(1)
}

func (c *Connection) release() {
	if n := c.refs.Add(-1); n == 0 {
		c.close()
	} else if n < 0 {
		panic(fmt.Sprintf("echo: connection %d released too many times", c.id))
	}
}

// deregister removes the connection from the dispatcher and drops the
// registration reference. Idempotent.
func (c *Connection) deregister() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	if err := c.adapter.deregister(c.fd); err != nil {
		logger.Debug("Error deregistering connection %d: %v", c.id, err)
	}
	c.release()
}

// abort shuts the socket down without closing the descriptor, unblocking any
// in-flight reply. Used when the shutdown drain window expires. It does
// nothing once the connection is closed.
func (c *Connection) abort() {
	c.broken.Store(true)

	c.fdMu.Lock()
	defer c.fdMu.Unlock()
	if c.closed {
		return
	}
	if err := reactor.Shutdown(c.fd); err != nil {
		logger.Debug("Error shutting down connection %d: %v", c.id, err)
	}
}

func (c *Connection) close() {
	c.writeMu.Lock()
	c.fdMu.Lock()
	if !c.closed {
		c.closed = true
		if err := reactor.CloseFD(c.fd); err != nil {
			logger.Debug("Error closing connection %d: %v", c.id, err)
		}
	}
	c.fdMu.Unlock()
	c.writeMu.Unlock()

	c.adapter.connectionClosed(c)
}
