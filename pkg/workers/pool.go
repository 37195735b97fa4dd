// Package workers implements the synchronous half of the server: a fixed set of
// goroutines that take work items off the shared queue, run the processor, and
// hand results to a Responder.
//
// Workers block only inside the queue's Dequeue; everything they do after that
// (processing, replying) may be slow without affecting the dispatcher.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/marmos91/hsha/pkg/processor"
	"github.com/marmos91/hsha/pkg/queue"
)

var (
	// ErrInvalidPoolSize is returned by Start when the pool size is below one.
	ErrInvalidPoolSize = errors.New("workers: pool size must be at least 1")

	// ErrAlreadyStarted is returned by Start on a running pool.
	ErrAlreadyStarted = errors.New("workers: pool already started")
)

// Responder delivers processing results back to clients.
//
// Every dequeued item is finished through exactly one of the two methods, so
// implementations can release per-item resources there. The item's payload
// is recycled once the call returns, so neither it nor a result aliasing it
// may be retained.
type Responder interface {
	// Respond writes result for item. workerID is the 1-based index of the
	// worker that produced it.
	Respond(workerID int, item queue.WorkItem, result []byte) error

	// Discard finishes an item whose processing failed.
	Discard(item queue.WorkItem, err error)
}

// ProcessingError wraps a processor failure, including a recovered panic.
type ProcessingError struct {
	WorkerID int
	ItemID   uuid.UUID
	Err      error
	Panic    any
}

func (e *ProcessingError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("worker %d: item %s: processor panic: %v", e.WorkerID, e.ItemID, e.Panic)
	}
	return fmt.Sprintf("worker %d: item %s: %v", e.WorkerID, e.ItemID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Config wires a pool to its collaborators.
type Config struct {
	// Size is the fixed number of workers.
	Size int

	Queue     *queue.Queue[queue.WorkItem]
	Processor processor.Processor
	Responder Responder

	// Metrics is optional.
	Metrics metrics.ReactorMetrics
}

// Pool is a fixed-size set of worker goroutines.
type Pool struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	started atomic.Bool
	alive   atomic.Int32
	busy    atomic.Int32
}

// New creates a pool. Workers are not started until Start.
func New(cfg Config) *Pool {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopReactorMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Start spawns Size workers, each looping on the queue until it is
// deactivated and drained.
func (p *Pool) Start() error {
	if p.cfg.Size < 1 {
		return ErrInvalidPoolSize
	}
	if p.cfg.Queue == nil || p.cfg.Processor == nil || p.cfg.Responder == nil {
		return errors.New("workers: queue, processor and responder are required")
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	p.wg.Add(p.cfg.Size)
	p.alive.Store(int32(p.cfg.Size))
	for i := 1; i <= p.cfg.Size; i++ {
		go p.run(i)
	}

	logger.Debug("Started %d workers (processor=%s)", p.cfg.Size, p.cfg.Processor.Name())
	return nil
}

// JoinAll blocks until every worker has exited. Workers exit once the queue
// is deactivated and drained.
func (p *Pool) JoinAll() {
	p.wg.Wait()
}

// JoinAllContext is JoinAll bounded by ctx. It returns ctx's error if the
// workers did not finish in time; they keep running in that case.
func (p *Pool) JoinAllContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts in-flight processing. Processors observing their context
// return early; the items they held are discarded.
func (p *Pool) Cancel() {
	p.cancel()
}

// Alive returns the number of workers that have not exited.
func (p *Pool) Alive() int {
	return int(p.alive.Load())
}

// Busy returns the number of workers currently processing an item.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return p.cfg.Size
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	defer p.alive.Add(-1)

	logger.Debug("[worker %d] started", id)

	for {
		item, err := p.cfg.Queue.Dequeue(0)
		if errors.Is(err, queue.ErrQueueClosed) {
			logger.Debug("[worker %d] queue closed, exiting", id)
			return
		}
		if err != nil {
			// Dequeue(0) waits forever, so this is unexpected; keep serving.
			logger.Warn("[worker %d] dequeue failed: %v", id, err)
			continue
		}

		p.cfg.Metrics.SetQueueDepth(p.cfg.Queue.Len())
		p.handle(id, item)
	}
}

func (p *Pool) handle(id int, item queue.WorkItem) {
	p.cfg.Metrics.SetBusyWorkers(p.busy.Add(1))
	defer func() {
		item.Release()
		p.cfg.Metrics.SetBusyWorkers(p.busy.Add(-1))
	}()

	wait := item.Age()
	start := time.Now()
	result, err := p.process(id, item)
	p.cfg.Metrics.RecordItemProcessed(p.cfg.Processor.Name(), wait, time.Since(start), err)

	if err != nil {
		logger.Warn("[worker %d] %v", id, err)
		p.cfg.Responder.Discard(item, err)
		return
	}

	if err := p.cfg.Responder.Respond(id, item, result); err != nil {
		logger.Debug("[worker %d] reply for item %s on conn %d failed: %v", id, item.ID, item.ConnID, err)
	}
}

// process runs the processor, converting a panic into a ProcessingError so a
// single bad payload cannot take a worker down.
func (p *Pool) process(id int, item queue.WorkItem) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessingError{WorkerID: id, ItemID: item.ID, Panic: r}
		}
	}()

	result, err = p.cfg.Processor.Process(p.ctx, item.Payload)
	if err != nil {
		return nil, &ProcessingError{WorkerID: id, ItemID: item.ID, Err: err}
	}
	return result, nil
}
