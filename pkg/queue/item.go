package queue

import (
	"time"

	"github.com/google/uuid"
)

// WorkItem is one unit of client input waiting to be processed.
//
// The payload is owned by the item: it is copied out of the connection's
// receive buffer before enqueue, so the buffer can be reused immediately.
// The originating connection is referenced by ID only; workers resolve it
// through the connection table when they reply.
type WorkItem struct {
	// ID correlates log lines for one item across dispatcher and worker.
	ID uuid.UUID

	// ConnID identifies the connection that produced the item.
	ConnID uint64

	// Payload is the framed input (a chunk, or a line without terminator).
	Payload []byte

	// Arrived is when the item was built. Observability only.
	Arrived time.Time
}

// NewWorkItem copies payload into a pooled buffer and stamps the item with
// the current time. Call Release once the item is finished.
func NewWorkItem(connID uint64, payload []byte) WorkItem {
	owned := GetBuffer(len(payload))
	copy(owned, payload)

	return WorkItem{
		ID:      uuid.New(),
		ConnID:  connID,
		Payload: owned,
		Arrived: time.Now(),
	}
}

// Age returns how long the item has existed.
func (w WorkItem) Age() time.Duration {
	return time.Since(w.Arrived)
}

// Release returns the payload buffer to the pool. Neither the payload nor
// any slice derived from it may be used afterwards.
func (w WorkItem) Release() {
	PutBuffer(w.Payload)
}
