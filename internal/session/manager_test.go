package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/gm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(clock *fakeClock) *Manager {
	store := newMemoryStore(100, time.Hour, clock)
	return NewManager(store, testLogger(), WithManagerClock(clock.Now))
}

func TestManager_Start(t *testing.T) {
	clock := newClock()
	m := newManager(clock)

	s, err := m.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, clock.Now(), s.CreatedAt)
	assert.Equal(t, []chat.ChatMessage{{Role: chat.ChatRoleAgent, Content: gm.OpeningScene}}, s.Messages)
	assert.Equal(t, "2025-03-14T18:30:00Z", s.World.Events()[0]["timestamp"])

	got, err := m.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.World.Summarize(), got.World.Summarize())
}

func TestManager_GetMissing(t *testing.T) {
	m := newManager(newClock())
	_, err := m.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DoSavesChanges(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	m := newManager(clock)
	s, err := m.Start(ctx)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	updated, err := m.Do(ctx, s.ID, func(s *Session) error {
		_, err := s.World.Merge(map[string]any{"player": map[string]any{"gold": 40}})
		s.Messages = append(s.Messages, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "I count my coins"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), updated.UpdatedAt)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	gold, _ := got.World.Player().Int("gold")
	assert.Equal(t, 40, gold)
	assert.Len(t, got.Messages, 2)
}

func TestManager_DoErrorDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	m := newManager(newClock())
	s, err := m.Start(ctx)
	require.NoError(t, err)

	boom := errors.New("llm unavailable")
	_, err = m.Do(ctx, s.ID, func(s *Session) error {
		s.World.AddEvent("never saved", "")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.World.Events(), 1)
}

func TestManager_DoMissing(t *testing.T) {
	m := newManager(newClock())
	called := false
	_, err := m.Do(context.Background(), uuid.New(), func(*Session) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestManager_DoSerializesPerSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(newClock())
	s, err := m.Start(ctx)
	require.NoError(t, err)

	const turns = 50
	var wg sync.WaitGroup
	for i := range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Do(ctx, s.ID, func(s *Session) error {
				_, err := s.World.Merge(map[string]any{
					"events": map[string]any{"description": fmt.Sprintf("turn %d", i)},
				})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.World.Events(), turns+1)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestManager_Reset(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	m := newManager(clock)
	s, err := m.Start(ctx)
	require.NoError(t, err)

	_, err = m.Do(ctx, s.ID, func(s *Session) error {
		_, err := s.World.Merge(map[string]any{"location": map[string]any{"name": "Crypt"}})
		s.Messages = append(s.Messages, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "down"})
		return err
	})
	require.NoError(t, err)

	clock.Advance(time.Hour / 2)
	reset, err := m.Reset(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, reset.ID)
	assert.Equal(t, s.CreatedAt, reset.CreatedAt)
	assert.Equal(t, "Ancient Forest Entrance", reset.World.Location()["name"])
	assert.Len(t, reset.Messages, 1)

	_, err = m.Reset(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	m := newManager(newClock())
	s, err := m.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, s.ID))
	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, s.ID), ErrNotFound)
}

func TestManager_RunJanitor(t *testing.T) {
	clock := newClock()
	store := newMemoryStore(10, time.Minute, clock)
	m := NewManager(store, testLogger())
	require.NoError(t, store.Save(context.Background(), newSession()))
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestManager_RunJanitorSkipsSelfExpiringStores(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	m := NewManager(store, testLogger())

	done := make(chan struct{})
	go func() {
		m.RunJanitor(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor should return immediately for redis")
	}
}
