package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/redis"
	"github.com/dpetrov/speedrun-tracker/internal/models"
	"github.com/dpetrov/speedrun-tracker/internal/repository"
	"github.com/segmentio/kafka-go"
)

// Event is the wire form of a submission lifecycle event.
type Event struct {
	EventType    string `json:"event_type"` // submission_accepted, submission_approved, submission_rejected, submission_deleted
	SubmissionID int32  `json:"submission_id"`
	Actor        string `json:"actor"`
	CreatedAt    string `json:"created_at"`
}

// Consumer records each submission lifecycle event in the moderation
// audit trail and drops the cached approved leaderboard whenever a
// moderation decision changes what is public.
type Consumer struct {
	reader      *kafka.Reader
	logRepo     repository.ModerationLogRepository
	redisClient redis.RedisClient
}

func NewConsumer(brokers []string, topic, groupID string, logRepo repository.ModerationLogRepository, redisClient redis.RedisClient) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		logRepo:     logRepo,
		redisClient: redisClient,
	}
}

var actions = map[string]string{
	"submission_accepted": "accepted",
	"submission_approved": "approved",
	"submission_rejected": "rejected",
	"submission_deleted":  "deleted",
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal submission event", "error", err)
			continue
		}

		action, ok := actions[event.EventType]
		if !ok {
			slog.Error("unknown event type", "event_type", event.EventType)
			continue
		}

		entry := &models.ModerationEntry{
			SubmissionID: event.SubmissionID,
			Action:       action,
			Actor:        event.Actor,
		}
		if err := c.logRepo.Create(ctx, entry); err != nil {
			slog.Error("failed to record moderation log entry", "submission_id", event.SubmissionID, "action", action, "error", err)
			continue
		}

		// Approval, rejection and deletion all change the public
		// leaderboard; the next read repopulates the cache.
		if action != "accepted" {
			if err := c.redisClient.Del(ctx, "speedruns:approved"); err != nil {
				slog.Error("failed to invalidate approved cache", "error", err)
			}
		}

		slog.Info("submission event processed", "submission_id", event.SubmissionID, "action", action, "actor", event.Actor)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
