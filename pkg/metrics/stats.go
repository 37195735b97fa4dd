package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/hsha/internal/logger"
)

// Stats is an in-process ReactorMetrics that keeps plain counters, so an
// adapter can report on itself (periodic log lines, tests) without a
// Prometheus registry.
//
// All counters use atomic operations; Stats is safe for concurrent use.
type Stats struct {
	// Connection metrics
	connectionsTotal       atomic.Uint64
	connectionsClosed      atomic.Uint64
	connectionsRejected    atomic.Uint64
	connectionsForceClosed atomic.Uint64
	connectionsCurrent     atomic.Int32

	// Item metrics
	itemsEnqueued  atomic.Uint64
	itemsDropped   atomic.Uint64
	itemsProcessed atomic.Uint64
	itemsErrored   atomic.Uint64
	queueDepth     atomic.Int64
	busyWorkers    atomic.Int32

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	durations *durationsTracker
	startTime time.Time
}

// NewStats creates a Stats collector whose uptime starts now.
func NewStats() *Stats {
	return &Stats{
		durations: newDurationsTracker(1000), // last 1000 items
		startTime: time.Now(),
	}
}

func (s *Stats) RecordConnectionAccepted() {
	s.connectionsTotal.Add(1)
}

func (s *Stats) RecordConnectionClosed() {
	s.connectionsClosed.Add(1)
}

func (s *Stats) RecordConnectionRejected(string) {
	s.connectionsRejected.Add(1)
}

func (s *Stats) RecordConnectionForceClosed() {
	s.connectionsForceClosed.Add(1)
}

func (s *Stats) SetActiveConnections(count int32) {
	s.connectionsCurrent.Store(count)
}

func (s *Stats) RecordItemEnqueued() {
	s.itemsEnqueued.Add(1)
}

func (s *Stats) RecordItemDropped(string) {
	s.itemsDropped.Add(1)
}

func (s *Stats) SetQueueDepth(depth int) {
	s.queueDepth.Store(int64(depth))
}

func (s *Stats) SetBusyWorkers(count int32) {
	s.busyWorkers.Store(count)
}

func (s *Stats) RecordItemProcessed(_ string, _, duration time.Duration, err error) {
	s.itemsProcessed.Add(1)
	if err != nil {
		s.itemsErrored.Add(1)
	}
	s.durations.Add(duration)
}

func (s *Stats) RecordBytes(direction string, n int) {
	if n <= 0 {
		return
	}
	switch direction {
	case "read":
		s.bytesRead.Add(uint64(n))
	case "write":
		s.bytesWritten.Add(uint64(n))
	}
}

// StatsSnapshot contains a point-in-time view of a Stats collector.
type StatsSnapshot struct {
	Uptime time.Duration

	ConnectionsTotal       uint64
	ConnectionsClosed      uint64
	ConnectionsRejected    uint64
	ConnectionsForceClosed uint64
	ConnectionsCurrent     int32

	ItemsEnqueued  uint64
	ItemsDropped   uint64
	ItemsProcessed uint64
	ItemsErrored   uint64
	QueueDepth     int64
	BusyWorkers    int32

	BytesRead    uint64
	BytesWritten uint64

	AvgProcessDuration time.Duration
	MinProcessDuration time.Duration
	MaxProcessDuration time.Duration
	ItemsPerSecond     float64
}

// Snapshot captures the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	uptime := time.Since(s.startTime)
	avg, minD, maxD := s.durations.Stats()
	processed := s.itemsProcessed.Load()

	var ips float64
	if secs := uptime.Seconds(); secs > 0 {
		ips = float64(processed) / secs
	}

	return StatsSnapshot{
		Uptime:                 uptime,
		ConnectionsTotal:       s.connectionsTotal.Load(),
		ConnectionsClosed:      s.connectionsClosed.Load(),
		ConnectionsRejected:    s.connectionsRejected.Load(),
		ConnectionsForceClosed: s.connectionsForceClosed.Load(),
		ConnectionsCurrent:     s.connectionsCurrent.Load(),
		ItemsEnqueued:          s.itemsEnqueued.Load(),
		ItemsDropped:           s.itemsDropped.Load(),
		ItemsProcessed:         processed,
		ItemsErrored:           s.itemsErrored.Load(),
		QueueDepth:             s.queueDepth.Load(),
		BusyWorkers:            s.busyWorkers.Load(),
		BytesRead:              s.bytesRead.Load(),
		BytesWritten:           s.bytesWritten.Load(),
		AvgProcessDuration:     avg,
		MinProcessDuration:     minD,
		MaxProcessDuration:     maxD,
		ItemsPerSecond:         ips,
	}
}

// LogSnapshot logs a formatted snapshot at INFO level.
func (s *Stats) LogSnapshot(name string) {
	snap := s.Snapshot()

	logger.Info("=== %s metrics ===", name)
	logger.Info("Uptime: %v", snap.Uptime.Round(time.Second))
	logger.Info("Connections: %d active, %d total, %d closed, %d rejected",
		snap.ConnectionsCurrent, snap.ConnectionsTotal, snap.ConnectionsClosed, snap.ConnectionsRejected)
	logger.Info("Items: %d enqueued, %d processed (%.1f/s), %d errored, %d dropped",
		snap.ItemsEnqueued, snap.ItemsProcessed, snap.ItemsPerSecond, snap.ItemsErrored, snap.ItemsDropped)
	logger.Info("Queue depth: %d, busy workers: %d", snap.QueueDepth, snap.BusyWorkers)
	logger.Info("Bytes: %d read, %d written", snap.BytesRead, snap.BytesWritten)

	if snap.ItemsProcessed > 0 {
		logger.Info("Processing: avg=%v min=%v max=%v",
			snap.AvgProcessDuration.Round(time.Microsecond),
			snap.MinProcessDuration.Round(time.Microsecond),
			snap.MaxProcessDuration.Round(time.Microsecond))
	}
	if snap.ConnectionsForceClosed > 0 {
		logger.Info("Force-closed connections: %d", snap.ConnectionsForceClosed)
	}
}

// StartLogger logs a snapshot every interval until ctx is done. An interval
// of 0 disables logging.
func (s *Stats) StartLogger(ctx context.Context, name string, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.LogSnapshot(name)
			}
		}
	}()
}

// durationsTracker keeps a ring of recent durations for latency statistics
// without storing every measurement.
type durationsTracker struct {
	mu         sync.Mutex
	durations  []time.Duration
	index      int
	count      int
	maxSamples int
}

func newDurationsTracker(maxSamples int) *durationsTracker {
	return &durationsTracker{
		durations:  make([]time.Duration, maxSamples),
		maxSamples: maxSamples,
	}
}

func (dt *durationsTracker) Add(d time.Duration) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	dt.durations[dt.index] = d
	dt.index = (dt.index + 1) % dt.maxSamples
	if dt.count < dt.maxSamples {
		dt.count++
	}
}

// Stats returns average, min, and max of the recorded samples.
func (dt *durationsTracker) Stats() (avg, minD, maxD time.Duration) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if dt.count == 0 {
		return 0, 0, 0
	}

	var total time.Duration
	minD = dt.durations[0]
	for i := 0; i < dt.count; i++ {
		d := dt.durations[i]
		total += d
		if d < minD {
			minD = d
		}
		if d > maxD {
			maxD = d
		}
	}

	return total / time.Duration(dt.count), minD, maxD
}

// Multi fans every call out to each of the given collectors. Nil entries are
// skipped.
func Multi(collectors ...ReactorMetrics) ReactorMetrics {
	var out multiMetrics
	for _, c := range collectors {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

type multiMetrics []ReactorMetrics

func (m multiMetrics) RecordConnectionAccepted() {
	for _, c := range m {
		c.RecordConnectionAccepted()
	}
}

func (m multiMetrics) RecordConnectionClosed() {
	for _, c := range m {
		c.RecordConnectionClosed()
	}
}

func (m multiMetrics) RecordConnectionRejected(reason string) {
	for _, c := range m {
		c.RecordConnectionRejected(reason)
	}
}

func (m multiMetrics) RecordConnectionForceClosed() {
	for _, c := range m {
		c.RecordConnectionForceClosed()
	}
}

func (m multiMetrics) SetActiveConnections(count int32) {
	for _, c := range m {
		c.SetActiveConnections(count)
	}
}

func (m multiMetrics) RecordItemEnqueued() {
	for _, c := range m {
		c.RecordItemEnqueued()
	}
}

func (m multiMetrics) RecordItemDropped(reason string) {
	for _, c := range m {
		c.RecordItemDropped(reason)
	}
}

func (m multiMetrics) SetQueueDepth(depth int) {
	for _, c := range m {
		c.SetQueueDepth(depth)
	}
}

func (m multiMetrics) RecordItemProcessed(processor string, wait, duration time.Duration, err error) {
	for _, c := range m {
		c.RecordItemProcessed(processor, wait, duration, err)
	}
}

func (m multiMetrics) SetBusyWorkers(count int32) {
	for _, c := range m {
		c.SetBusyWorkers(count)
	}
}

func (m multiMetrics) RecordBytes(direction string, n int) {
	for _, c := range m {
		c.RecordBytes(direction, n)
	}
}
