package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is one player's adventure: the world and the conversation that
// produced it.
type Session struct {
	ID        uuid.UUID          `json:"id"`
	World     *world.WorldState  `json:"world"`
	Messages  []chat.ChatMessage `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.World != nil {
		c.World = s.World.Clone()
	}
	c.Messages = append([]chat.ChatMessage(nil), s.Messages...)
	return &c
}

// Store persists sessions by ID.
type Store interface {
	// Ping tests the backend connection
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error

	// Save writes the session, replacing any previous version
	Save(ctx context.Context, s *Session) error

	// Load returns the session with the given ID, or nil if it doesn't
	// exist or has expired
	Load(ctx context.Context, id uuid.UUID) (*Session, error)

	// Delete removes the session. Deleting a missing session is not an error
	Delete(ctx context.Context, id uuid.UUID) error
}
