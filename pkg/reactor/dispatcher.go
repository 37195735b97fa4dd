// Package reactor implements a single-goroutine readiness dispatcher.
//
// A Dispatcher owns one OS readiness primitive (epoll on Linux, kqueue on
// Darwin/FreeBSD). Sockets are registered with a Handler; Run waits for
// readiness and invokes each ready socket's handler on the goroutine that
// called Run. The dispatcher never starts goroutines of its own, so handlers
// can touch per-connection read state without locking.
//
// Other goroutines interact with a running dispatcher only through Stop and
// Wakeup, both of which are safe for concurrent use.
package reactor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Interest is the kind of readiness a socket is registered for.
type Interest uint8

const (
	// InterestRead fires when a connected socket has bytes to read, or the
	// peer closed / the socket errored (the next read reports which).
	InterestRead Interest = 1 << iota

	// InterestAccept fires when a listening socket has a pending connection.
	InterestAccept
)

func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestAccept:
		return "accept"
	case InterestRead | InterestAccept:
		return "read|accept"
	default:
		return fmt.Sprintf("interest(%d)", uint8(i))
	}
}

// Handler receives readiness callbacks. HandleEvent is always invoked on the
// dispatcher goroutine, once per ready socket per loop iteration, with the
// interest the socket was registered for.
type Handler interface {
	HandleEvent(ready Interest)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ready Interest)

func (f HandlerFunc) HandleEvent(ready Interest) { f(ready) }

// ErrDispatcherRunning is returned by Run when the dispatcher is already running.
var ErrDispatcherRunning = errors.New("reactor: dispatcher already running")

// ErrDispatcherClosed is returned when using a dispatcher after Close.
var ErrDispatcherClosed = errors.New("reactor: dispatcher closed")

// RegistrationError reports that the readiness primitive rejected a socket.
type RegistrationError struct {
	FD  int
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("reactor: register fd %d: %v", e.FD, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// PollError reports a failure of the readiness primitive itself. It is fatal
// for Run.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("reactor: readiness wait failed: %v", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

type registration struct {
	interest Interest
	handler  Handler
}

// Dispatcher is a cooperative, single-goroutine readiness loop.
type Dispatcher struct {
	poller poller

	mu       sync.Mutex
	handlers map[int]registration

	sweep func()

	running atomic.Bool
	stopped atomic.Bool

	// closeMu orders Close against concurrent wakeups: once the poller's
	// descriptors are released their numbers may be reused elsewhere.
	closeMu sync.RWMutex
	closed  bool

	events []readyEvent
}

// NewDispatcher creates a dispatcher backed by the platform's readiness
// primitive.
func NewDispatcher() (*Dispatcher, error) {
	p, err := newPoller()
	if err != nil {
		return nil, fmt.Errorf("create poller: %w", err)
	}

	return &Dispatcher{
		poller:   p,
		handlers: make(map[int]registration),
		events:   make([]readyEvent, 128),
	}, nil
}

// SetSweep installs a hook run at the top of every loop iteration, before the
// stop check and the readiness wait. Must be called before Run.
func (d *Dispatcher) SetSweep(fn func()) {
	d.sweep = fn
}

// Register adds fd to the watched set.
func (d *Dispatcher) Register(fd int, interest Interest, h Handler) error {
	if h == nil {
		panic("reactor: nil handler")
	}

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return &RegistrationError{FD: fd, Err: ErrDispatcherClosed}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[fd]; exists {
		return &RegistrationError{FD: fd, Err: errors.New("already registered")}
	}
	if err := d.poller.add(fd, interest); err != nil {
		return &RegistrationError{FD: fd, Err: err}
	}

	d.handlers[fd] = registration{interest: interest, handler: h}
	return nil
}

// Deregister removes fd from the watched set. Readiness already collected for
// fd in the current iteration is dropped. The caller still owns fd and must
// deregister before closing it.
func (d *Dispatcher) Deregister(fd int) error {
	d.mu.Lock()
	_, ok := d.handlers[fd]
	delete(d.handlers, fd)
	d.mu.Unlock()

	if !ok {
		return nil
	}

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return nil
	}
	if err := d.poller.del(fd); err != nil {
		return fmt.Errorf("reactor: deregister fd %d: %w", fd, err)
	}
	return nil
}

// Registered returns the number of watched sockets.
func (d *Dispatcher) Registered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers)
}

// Run blocks the calling goroutine, dispatching readiness until Stop is
// called. It returns nil after Stop, or a *PollError if the readiness
// primitive fails.
func (d *Dispatcher) Run() error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherRunning
	}
	defer d.running.Store(false)

	for {
		if d.sweep != nil {
			d.sweep()
		}
		if d.stopped.Load() {
			return nil
		}

		n, err := d.poller.wait(d.events)
		if err != nil {
			return &PollError{Err: err}
		}

		for i := 0; i < n; i++ {
			ev := d.events[i]
			if ev.wakeup {
				d.poller.drainWakeup()
				continue
			}

			d.mu.Lock()
			reg, ok := d.handlers[ev.fd]
			d.mu.Unlock()
			if !ok {
				continue
			}

			reg.handler.HandleEvent(reg.interest)
		}
	}
}

// Stop asks Run to return. It takes effect before the next wait; events
// already collected in the current iteration are still dispatched. Stop does
// not close any registered socket. Idempotent and safe from any goroutine.
func (d *Dispatcher) Stop() {
	d.stopped.Store(true)
	d.Wakeup()
}

// Stopped reports whether Stop has been called.
func (d *Dispatcher) Stopped() bool {
	return d.stopped.Load()
}

// Wakeup interrupts the current wait so the loop re-runs its sweep hook.
// Safe from any goroutine.
func (d *Dispatcher) Wakeup() {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return
	}
	_ = d.poller.wakeup()
}

// Close releases the readiness primitive. Call it after Run has returned.
// Registered sockets are not closed.
func (d *Dispatcher) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	d.mu.Lock()
	d.handlers = make(map[int]registration)
	d.mu.Unlock()

	return d.poller.close()
}
