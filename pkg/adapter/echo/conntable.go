package echo

import "sync"

// connTable maps stable connection IDs to live connections. Work items carry
// the ID only; workers resolve it here when replying.
type connTable struct {
	mu    sync.RWMutex
	next  uint64
	conns map[uint64]*Connection
}

func newConnTable() *connTable {
	return &connTable{conns: make(map[uint64]*Connection)}
}

// add assigns c its ID and stores it.
func (t *connTable) add(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	c.id = t.next
	t.conns[c.id] = c
}

func (t *connTable) get(id uint64) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conns[id]
}

func (t *connTable) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

func (t *connTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

func (t *connTable) snapshot() []*Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}
