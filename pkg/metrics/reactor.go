package metrics

import "time"

// Reasons reported with RecordConnectionRejected.
const (
	RejectMaxConnections = "max_connections"
	RejectRateLimited    = "rate_limited"
	RejectRegistration   = "registration"
)

// Reasons reported with RecordItemDropped.
const (
	DropQueueClosed = "queue_closed"
	DropQueueFull   = "queue_full"
	DropConnGone    = "connection_gone"
)

// ReactorMetrics provides observability for the echo adapter: the dispatcher
// side (connections, framing, enqueue) and the worker side (processing,
// replies).
//
// This interface is optional - if not provided to the adapter, a no-op
// implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewReactorMetrics()
//	adapter := echo.New(config, m, proc)
//
//	// Without metrics (no-op)
//	adapter := echo.New(config, nil, proc)
type ReactorMetrics interface {
	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionRejected counts a connection that was accepted and
	// immediately closed because of a limit (see the Reject* reasons).
	RecordConnectionRejected(reason string)

	// RecordConnectionForceClosed counts connections torn down because the
	// shutdown drain window expired.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordItemEnqueued counts a work item handed to the queue.
	RecordItemEnqueued()

	// RecordItemDropped counts a work item that never reached a worker
	// (see the Drop* reasons).
	RecordItemDropped(reason string)

	// SetQueueDepth updates the number of items waiting for a worker.
	SetQueueDepth(depth int)

	// RecordItemProcessed records one item processed by a worker.
	//
	// Parameters:
	//   - processor: processor name (e.g., "echo")
	//   - wait: time the item spent in the queue
	//   - duration: time spent in the processor
	//   - err: processing error, nil on success
	RecordItemProcessed(processor string, wait, duration time.Duration, err error)

	// SetBusyWorkers updates the number of workers currently processing.
	SetBusyWorkers(count int32)

	// RecordBytes records bytes read from or written to clients.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - n: number of bytes
	RecordBytes(direction string, n int)
}

// NewNoopReactorMetrics returns a ReactorMetrics that discards everything.
func NewNoopReactorMetrics() ReactorMetrics {
	return noopReactorMetrics{}
}

// noopReactorMetrics is a no-op implementation of ReactorMetrics with zero overhead.
type noopReactorMetrics struct{}

func (noopReactorMetrics) RecordConnectionAccepted()                                       {}
func (noopReactorMetrics) RecordConnectionClosed()                                         {}
func (noopReactorMetrics) RecordConnectionRejected(string)                                 {}
func (noopReactorMetrics) RecordConnectionForceClosed()                                    {}
func (noopReactorMetrics) SetActiveConnections(int32)                                      {}
func (noopReactorMetrics) RecordItemEnqueued()                                             {}
func (noopReactorMetrics) RecordItemDropped(string)                                        {}
func (noopReactorMetrics) SetQueueDepth(int)                                               {}
func (noopReactorMetrics) RecordItemProcessed(string, time.Duration, time.Duration, error) {}
func (noopReactorMetrics) SetBusyWorkers(int32)                                            {}
func (noopReactorMetrics) RecordBytes(string, int)                                         {}

