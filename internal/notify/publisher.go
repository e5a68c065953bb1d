// Package notify connects event ingestion to the external chat-delivery
// service through Redis streams: accepted events go out on one stream and
// delivery outcomes come back on another.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/model"
)

const (
	// NotificationStreamKey carries accepted events to the delivery service.
	NotificationStreamKey = "stream:event_notifications"

	// MaxStreamLen is the approximate max length of the notification stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Notification is the message handed to the delivery service.
type Notification struct {
	EventID   string       `json:"event_id"`
	UserID    string       `json:"user_id"`
	Category  string       `json:"category"`
	Color     string       `json:"color"`
	Emoji     string       `json:"emoji,omitempty"`
	Fields    model.Fields `json:"fields"`
	CreatedAt int64        `json:"t"` // Unix milliseconds
}

// NewNotification builds the message for an accepted event.
func NewNotification(e *model.Event, cat *model.Category) Notification {
	return Notification{
		EventID:   e.ID,
		UserID:    e.UserID,
		Category:  cat.Name,
		Color:     cat.Color.Hex(),
		Emoji:     cat.Emoji,
		Fields:    e.Fields,
		CreatedAt: e.CreatedAt.UnixMilli(),
	}
}

// Publisher enqueues notifications to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new notification publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "notify.publisher"),
		metrics: recorder,
	}
}

// Publish adds a notification to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, n Notification) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: NotificationStreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"event_id": n.EventID,
			"payload":  string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned; the event stays pending.
func (p *Publisher) PublishAsync(n Notification) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, n)
		if err != nil {
			p.logger.Warn("failed to publish notification",
				"event_id", n.EventID,
				"error", err,
			)
			p.metrics.IncNotificationPublished("dropped")
			return
		}

		p.logger.Debug("notification published",
			"event_id", n.EventID,
			"stream_id", streamID,
		)
		p.metrics.IncNotificationPublished("success")
	}()
}
