package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/gm"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

// Manager owns the session lifecycle. Every read-modify-write of a
// session goes through Do, which serializes callers per session ID.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerClock sets the clock used for session and world timestamps.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager on top of store.
func NewManager(store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[uuid.UUID]*sessionLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Start creates a new adventure: a fresh world and the opening scene.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New(),
		CreatedAt: now,
	}
	m.seed(s, now)

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save new session: %w", err)
	}
	m.logger.Info("Session started", "gamestate_id", s.ID)
	return s, nil
}

// Reset replaces the world and conversation of an existing session with
// a fresh adventure. The ID and creation time are kept.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := m.Do(ctx, id, func(s *Session) error {
		m.seed(s, m.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Session reset", "gamestate_id", id)
	return s, nil
}

func (m *Manager) seed(s *Session, now time.Time) {
	s.World = world.New(world.WithClock(m.now))
	s.Messages = []chat.ChatMessage{{Role: chat.ChatRoleAgent, Content: gm.OpeningScene}}
	s.UpdatedAt = now
}

// Get returns the session or ErrNotFound.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes the session or returns ErrNotFound.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return ErrNotFound
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("Session deleted", "gamestate_id", id)
	return nil
}

// Do loads the session, runs fn on it and saves the result, holding the
// session's lock throughout. When fn returns an error nothing is saved and
// the error is returned as is.
func (m *Manager) Do(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, ErrNotFound
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	s.UpdatedAt = m.now()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s, nil
}

// lock acquires the per-session mutex and returns its release func. Lock
// entries are dropped once nobody holds or waits on them.
func (m *Manager) lock(id uuid.UUID) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// sweeper is implemented by stores that collect expired sessions lazily.
type sweeper interface {
	Sweep() int
}

// RunJanitor periodically removes expired sessions from stores that need
// it, until ctx is done. Stores that expire entries themselves are left
// alone.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	sw, ok := m.store.(sweeper)
	if !ok || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sw.Sweep(); n > 0 {
				m.logger.Debug("Expired sessions removed", "count", n)
			}
		}
	}
}
