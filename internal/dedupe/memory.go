package dedupe

import (
	"context"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

// MemoryDedupe remembers the last capacity event ids of a single instance.
// Redeliveries arrive close to the original, so a bounded window is enough
type MemoryDedupe struct {
	log logger.Logger

	mu    sync.Mutex
	ring  []string
	next  int
	items map[string]struct{}
}

func NewInMemoryDedupe(log logger.Logger, capacity int) *MemoryDedupe {
	if capacity <= 0 {
		capacity = 65536
	}
	return &MemoryDedupe{
		log:   log,
		ring:  make([]string, capacity),
		items: make(map[string]struct{}, capacity),
	}
}

func (m *MemoryDedupe) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; ok {
		m.log.Debugf("Duplicate event id=%s", id)
		return true, nil
	}

	// evict the oldest id once the window is full
	if old := m.ring[m.next]; old != "" {
		delete(m.items, old)
	}
	m.ring[m.next] = id
	m.next = (m.next + 1) % len(m.ring)
	m.items[id] = struct{}{}

	return false, nil
}

func (m *MemoryDedupe) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
