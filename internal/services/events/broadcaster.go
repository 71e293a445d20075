package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSceneLoading      EventType = "scene.loading"
	EventTypeSceneUpdated      EventType = "scene.updated"
	EventTypePrefetchCompleted EventType = "prefetch.completed"
)

// Event represents a generic event structure
type Event struct {
	Type     EventType      `json:"type"`
	PlayerID string         `json:"player_id,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel carrying a player's scene events.
func Channel(playerID string) string {
	return fmt.Sprintf("scene-events:%s", playerID)
}

// Broadcaster publishes scene events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSceneView publishes scene.loading while an image is being made and
// scene.updated once the view settles.
func (b *Broadcaster) PublishSceneView(ctx context.Context, playerID string, view scenesync.View) error {
	eventType := EventTypeSceneUpdated
	if view.Loading {
		eventType = EventTypeSceneLoading
	}
	event := Event{
		Type:     eventType,
		PlayerID: playerID,
		Data: map[string]any{
			"scene": view.CurrentKey.Short(),
			"image": view.Image,
		},
	}
	return b.publishToPlayer(ctx, playerID, event)
}

// PublishPrefetchCompleted publishes a prefetch.completed event
func (b *Broadcaster) PublishPrefetchCompleted(ctx context.Context, playerID string, result prefetch.Result) error {
	event := Event{
		Type:     EventTypePrefetchCompleted,
		PlayerID: playerID,
		Data: map[string]any{
			"requested": result.Requested,
			"cached":    result.Cached,
			"failed":    result.Failed,
			"skipped":   result.Skipped,
		},
	}
	return b.publishToPlayer(ctx, playerID, event)
}

// publishToPlayer publishes an event to the player-specific channel
func (b *Broadcaster) publishToPlayer(ctx context.Context, playerID string, event Event) error {
	channel := Channel(playerID)

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
	)

	return nil
}
