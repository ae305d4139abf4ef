// Package notify publishes posting progress to a redis stream so dashboards
// and operator tooling can follow a run without touching the database.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"marketplace/autoposter/internal/scheduler"
)

// Event is the wire form of one progress update.
type Event struct {
	RecordID  int64     `json:"record_id"`
	Title     string    `json:"title"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Notifier publishes and consumes progress events.
type Notifier interface {
	PublishProgress(ctx context.Context, p scheduler.Progress) error
	ReadProgress(ctx context.Context, consumer string) (*Event, string, error)
	AckProgress(ctx context.Context, msgID string) error
}

type redisNotifier struct {
	redisClient *redis.Client
	stream      string
	group       string
}

// NewRedisNotifier wires the stream notifier and makes sure the stream and
// consumer group exist before anything publishes.
func NewRedisNotifier(redisClient *redis.Client, group string) (Notifier, error) {
	n := &redisNotifier{
		redisClient: redisClient,
		stream:      "autoposter:stream:progress",
		group:       group,
	}

	if err := n.ensureGroup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure progress stream exists: %w", err)
	}
	return n, nil
}

func (n *redisNotifier) ensureGroup(ctx context.Context) error {
	err := n.redisClient.XGroupCreateMkStream(ctx, n.stream, n.group, "0").Err()
	if err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists" {
		log.Debugf("group %s already exists for stream %s", n.group, n.stream)
		return nil
	}
	return err
}

func (n *redisNotifier) PublishProgress(ctx context.Context, p scheduler.Progress) error {
	event := Event{
		RecordID:  p.Record.ID,
		Title:     p.Record.Payload.Title,
		Index:     p.Index,
		Total:     p.Total,
		Status:    p.Status,
		EmittedAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize progress event: %w", err)
	}

	messageID, err := n.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: 1000,
		Approx: true,
		Values: map[string]interface{}{
			"event": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add event to stream %s: %w", n.stream, err)
	}

	log.Debugf("published progress for record %d with message ID %s", p.Record.ID, messageID)
	return nil
}

// ReadProgress blocks briefly for the next unseen event for the group. A nil
// event with nil error means nothing new arrived.
func (n *redisNotifier) ReadProgress(ctx context.Context, consumer string) (*Event, string, error) {
	result, err := n.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    n.group,
		Consumer: consumer,
		Streams:  []string{n.stream, ">"},
		Count:    1,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil // No new messages
		}
		return nil, "", fmt.Errorf("failed to read from stream %s: %w", n.stream, err)
	}

	if len(result) == 0 || len(result[0].Messages) == 0 {
		return nil, "", nil
	}

	msg := result[0].Messages[0]
	raw, ok := msg.Values["event"].(string)
	if !ok {
		return nil, msg.ID, fmt.Errorf("message %s has no event payload", msg.ID)
	}

	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, msg.ID, fmt.Errorf("failed to decode event %s: %w", msg.ID, err)
	}
	return &event, msg.ID, nil
}

func (n *redisNotifier) AckProgress(ctx context.Context, msgID string) error {
	return n.redisClient.XAck(ctx, n.stream, n.group, msgID).Err()
}
