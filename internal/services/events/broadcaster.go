package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/gm-engine/pkg/world"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeWorldUpdated EventType = "world.updated"
	EventTypeWorldReset   EventType = "world.reset"
	EventTypeWorldDeleted EventType = "world.deleted"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType      `json:"type"`
	RequestID   string         `json:"request_id,omitempty"`
	GameStateID string         `json:"gamestate_id"`
	Data        map[string]any `json:"data,omitempty"`
}

// Publisher announces world changes to live subscribers.
type Publisher interface {
	PublishWorldUpdated(ctx context.Context, id uuid.UUID, requestID string, result *world.MergeResult, location string) error
	PublishWorldReset(ctx context.Context, id uuid.UUID, requestID string) error
	PublishWorldDeleted(ctx context.Context, id uuid.UUID, requestID string) error
}

// Channel returns the Pub/Sub channel for a game session.
func Channel(id uuid.UUID) string {
	return "gamestate-events:" + id.String()
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// Ensure Broadcaster implements Publisher interface
var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishWorldUpdated publishes a world.updated event
func (b *Broadcaster) PublishWorldUpdated(ctx context.Context, id uuid.UUID, requestID string, result *world.MergeResult, location string) error {
	data := map[string]any{"location": location}
	if result != nil {
		data["applied"] = result.Applied
		data["npcs_updated"] = result.NPCsUpdated
		data["npcs_added"] = result.NPCsAdded
		data["quests_updated"] = result.QuestsUpdated
		data["quests_added"] = result.QuestsAdded
		data["events_appended"] = result.EventsAppended
		data["warnings"] = len(result.Warnings)
	}
	return b.publish(ctx, id, Event{
		Type:        EventTypeWorldUpdated,
		RequestID:   requestID,
		GameStateID: id.String(),
		Data:        data,
	})
}

// PublishWorldReset publishes a world.reset event
func (b *Broadcaster) PublishWorldReset(ctx context.Context, id uuid.UUID, requestID string) error {
	return b.publish(ctx, id, Event{
		Type:        EventTypeWorldReset,
		RequestID:   requestID,
		GameStateID: id.String(),
	})
}

// PublishWorldDeleted publishes a world.deleted event
func (b *Broadcaster) PublishWorldDeleted(ctx context.Context, id uuid.UUID, requestID string) error {
	return b.publish(ctx, id, Event{
		Type:        EventTypeWorldDeleted,
		RequestID:   requestID,
		GameStateID: id.String(),
	})
}

// Subscribe opens a subscription to a session's channel. Callers must
// close the returned PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, id uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(id))
}

func (b *Broadcaster) publish(ctx context.Context, id uuid.UUID, event Event) error {
	channel := Channel(id)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}

// NopPublisher drops every event. It is used with the memory backend,
// which has no Pub/Sub.
type NopPublisher struct{}

// Ensure NopPublisher implements Publisher interface
var _ Publisher = NopPublisher{}

func (NopPublisher) PublishWorldUpdated(context.Context, uuid.UUID, string, *world.MergeResult, string) error {
	return nil
}

func (NopPublisher) PublishWorldReset(context.Context, uuid.UUID, string) error { return nil }

func (NopPublisher) PublishWorldDeleted(context.Context, uuid.UUID, string) error { return nil }
