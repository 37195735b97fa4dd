package reactor

// readyEvent is one readiness notification collected by a poller.
type readyEvent struct {
	fd     int
	wakeup bool
}

// poller abstracts the OS readiness primitive.
//
// wait blocks until at least one event is available and fills out; it
// returns (0, nil) when interrupted by a signal. Every other error is a
// failure of the primitive itself.
type poller interface {
	add(fd int, interest Interest) error
	del(fd int) error
	wait(out []readyEvent) (int, error)
	wakeup() error
	drainWakeup()
	close() error
}
