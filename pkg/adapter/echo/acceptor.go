package echo

import (
	"errors"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/marmos91/hsha/pkg/reactor"
)

// Acceptor turns readiness on the listening socket into registered
// connections. It runs only on the dispatcher goroutine.
type Acceptor struct {
	fd      int
	adapter *Adapter

	closed bool
}

func newAcceptor(a *Adapter, fd int) *Acceptor {
	return &Acceptor{fd: fd, adapter: a}
}

// HandleEvent is the dispatcher callback for accept readiness.
func (ac *Acceptor) HandleEvent(reactor.Interest) {
	ac.onAcceptable()
}

// onAcceptable accepts exactly one pending connection. Readiness is level
// triggered, so further pending connections fire again on the next wait.
// Nothing is accepted once the dispatcher was asked to stop, even for
// readiness collected before the request.
func (ac *Acceptor) onAcceptable() {
	if ac.closed {
		return
	}

	a := ac.adapter
	if a.dispatcher.Stopped() {
		return
	}

	fd, remote, err := reactor.Accept(ac.fd)
	if err != nil {
		if reactor.IsTemporary(err) {
			if !reactor.IsWouldBlock(err) {
				logger.Debug("Transient accept error: %v", err)
			}
			return
		}

		logger.Error("Listening socket failed: %v", err)
		ac.close()
		a.acceptorFailed(err)
		return
	}

	if limit := a.config.MaxConnections; limit > 0 && a.conns.len() >= limit {
		ac.reject(fd, remote, metrics.RejectMaxConnections)
		return
	}
	if !a.limiter.Allow() {
		ac.reject(fd, remote, metrics.RejectRateLimited)
		return
	}

	c := newConnection(a, fd, remote)
	a.conns.add(c)

	if err := a.dispatcher.Register(fd, reactor.InterestRead, c); err != nil {
		var regErr *reactor.RegistrationError
		if errors.As(err, &regErr) {
			logger.Warn("Cannot watch connection from %s: %v", remote, regErr.Err)
		} else {
			logger.Warn("Cannot watch connection from %s: %v", remote, err)
		}
		a.conns.remove(c.id)
		_ = reactor.CloseFD(fd)
		a.metrics.RecordConnectionRejected(metrics.RejectRegistration)
		return
	}

	active := a.connCount.Add(1)
	a.metrics.RecordConnectionAccepted()
	a.metrics.SetActiveConnections(active)

	logger.Debug("Connection %d accepted from %s (active: %d)", c.id, remote, active)
}

func (ac *Acceptor) reject(fd int, remote, reason string) {
	_ = reactor.CloseFD(fd)
	ac.adapter.metrics.RecordConnectionRejected(reason)
	logger.Debug("Connection from %s rejected: %s", remote, reason)
}

// close stops accepting: the listening socket leaves the dispatcher and is
// closed. Idempotent.
func (ac *Acceptor) close() {
	if ac.closed {
		return
	}
	ac.closed = true

	if err := ac.adapter.deregister(ac.fd); err != nil {
		logger.Debug("Error deregistering listener: %v", err)
	}
	if err := reactor.CloseFD(ac.fd); err != nil {
		logger.Debug("Error closing listener: %v", err)
	}
}
