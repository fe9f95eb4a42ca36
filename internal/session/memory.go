package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. It holds at most capacity
// sessions, evicting the least recently used, and forgets sessions not
// touched within ttl.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	order   *list.List // front is most recently used
	entries map[uuid.UUID]*list.Element
}

type memoryEntry struct {
	session *Session
	touched time.Time
}

// Ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store. A capacity or ttl of zero or less
// disables that limit.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[uuid.UUID]*list.Element),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Save stores a copy of s and marks it most recently used.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &memoryEntry{session: s.Clone(), touched: m.now()}
	if el, ok := m.entries[s.ID]; ok {
		el.Value = entry
		m.order.MoveToFront(el)
		return nil
	}

	m.entries[s.ID] = m.order.PushFront(entry)
	for m.capacity > 0 && m.order.Len() > m.capacity {
		m.remove(m.order.Back())
	}
	return nil
}

// Load returns a copy of the session and refreshes its recency.
func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	entry := el.Value.(*memoryEntry)
	now := m.now()
	if m.expired(entry, now) {
		m.remove(el)
		return nil, nil
	}
	entry.touched = now
	m.order.MoveToFront(el)
	return entry.session.Clone(), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[id]; ok {
		m.remove(el)
	}
	return nil
}

// Len returns the number of stored sessions, including expired ones not
// yet collected.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Sweep removes every expired session and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if m.expired(el.Value.(*memoryEntry), now) {
			m.remove(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (m *MemoryStore) expired(e *memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(e.touched) > m.ttl
}

func (m *MemoryStore) remove(el *list.Element) {
	entry := m.order.Remove(el).(*memoryEntry)
	delete(m.entries, entry.session.ID)
}
