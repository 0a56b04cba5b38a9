package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/queue"
)

// streamClient is the subset of redis commands the queue uses,
// satisfied by *redis.Client. Tests script command results through it.
type streamClient interface {
	XAdd(ctx context.Context, a *r.XAddArgs) *r.StringCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *r.StatusCmd
	XReadGroup(ctx context.Context, a *r.XReadGroupArgs) *r.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *r.IntCmd
	XAutoClaim(ctx context.Context, a *r.XAutoClaimArgs) *r.XAutoClaimCmd
	Ping(ctx context.Context) *r.StatusCmd
}

// Stream entry field names.
const (
	entryTaskID    = "task_id"
	entryUserID    = "user_id"
	entryChatID    = "chat_id"
	entryText      = "text"
	entryCreatedAt = "created_at"
)

// reclaimBatch bounds how many pending entries one reclaim pass moves.
const reclaimBatch = 16

// StreamQueue implements queue.Queue on a Redis stream consumed
// through a consumer group.
type StreamQueue struct {
	client    streamClient
	stream    string
	group     string
	pollBlock time.Duration
	logger    *slog.Logger
}

// NewStreamQueue creates a stream-backed queue. pollBlock bounds how
// long Next blocks waiting for an entry. If log is nil, the default
// logger is used.
func NewStreamQueue(client *r.Client, stream, group string, pollBlock time.Duration, log *slog.Logger) *StreamQueue {
	if client == nil {
		panic("client cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &StreamQueue{
		client:    client,
		stream:    stream,
		group:     group,
		pollBlock: pollBlock,
		logger:    log.With(slog.String("component", "stream_queue")),
	}
}

// Ensure StreamQueue implements queue.Queue.
var _ queue.Queue = (*StreamQueue)(nil)

// Enqueue implements queue.Queue.Enqueue.
func (q *StreamQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	err := q.client.XAdd(ctx, &r.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			entryTaskID:    task.ID.String(),
			entryUserID:    strconv.FormatInt(task.UserID, 10),
			entryChatID:    strconv.FormatInt(task.ChatID, 10),
			entryText:      task.Text,
			entryCreatedAt: task.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append task %s to stream: %w", task.ID, err)
	}

	return nil
}

// EnsureGroup implements queue.Queue.EnsureGroup.
// The group starts at id 0 so entries appended before the group
// existed are still delivered. An already existing group is success.
func (q *StreamQueue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			q.logger.Debug("consumer group already exists",
				slog.String("stream", q.stream),
				slog.String("group", q.group))
			return nil
		}
		return fmt.Errorf("failed to create consumer group %s: %w", q.group, err)
	}

	q.logger.Info("created consumer group",
		slog.String("stream", q.stream),
		slog.String("group", q.group))
	return nil
}

// Next implements queue.Queue.Next.
// It reads a single entry per call for fairness across consumers and
// blocks up to the configured bound, returning (nil, nil) on timeout
// so the worker loop can observe cancellation. Malformed entries are
// acknowledged and dropped so one bad entry cannot wedge the consumer.
func (q *StreamQueue) Next(ctx context.Context, consumer string) (*queue.Delivery, error) {
	streams, err := q.client.XReadGroup(ctx, &r.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    q.pollBlock,
	}).Result()
	if err != nil {
		// redis.Nil signals the block timed out with nothing new.
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			delivery, err := q.deliveryFromMessage(msg)
			if err != nil {
				q.logger.Warn("dropping malformed entry",
					slog.String("entry_id", msg.ID),
					slog.String("error", err.Error()))
				if ackErr := q.Ack(ctx, msg.ID); ackErr != nil {
					q.logger.Error("failed to ack malformed entry",
						slog.String("entry_id", msg.ID),
						slog.String("error", ackErr.Error()))
				}
				return nil, nil
			}
			return delivery, nil
		}
	}

	return nil, nil
}

// Ack implements queue.Queue.Ack.
func (q *StreamQueue) Ack(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, entryID).Err(); err != nil {
		return fmt.Errorf("failed to ack entry %s: %w", entryID, err)
	}
	return nil
}

// Reclaim implements queue.Queue.Reclaim using XAUTOCLAIM.
// Malformed entries are acknowledged and dropped so one bad entry
// cannot wedge the reclaim pass forever.
func (q *StreamQueue) Reclaim(
	ctx context.Context,
	consumer string,
	minIdle time.Duration,
) ([]*queue.Delivery, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &r.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    reclaimBatch,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reclaim pending entries: %w", err)
	}

	deliveries := make([]*queue.Delivery, 0, len(msgs))
	for _, msg := range msgs {
		delivery, err := q.deliveryFromMessage(msg)
		if err != nil {
			q.logger.Warn("dropping malformed reclaimed entry",
				slog.String("entry_id", msg.ID),
				slog.String("error", err.Error()))
			if ackErr := q.Ack(ctx, msg.ID); ackErr != nil {
				q.logger.Error("failed to ack malformed entry",
					slog.String("entry_id", msg.ID),
					slog.String("error", ackErr.Error()))
			}
			continue
		}
		deliveries = append(deliveries, delivery)
	}

	return deliveries, nil
}

// Ping implements queue.Queue.Ping.
func (q *StreamQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// deliveryFromMessage decodes a stream entry into a Delivery.
func (q *StreamQueue) deliveryFromMessage(msg r.XMessage) (*queue.Delivery, error) {
	task, err := taskFromValues(msg.Values)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %v", queue.ErrBadEntry, msg.ID, err)
	}

	return &queue.Delivery{
		EntryID: msg.ID,
		Task:    *task,
	}, nil
}

// taskFromValues decodes the field map of a stream entry into a Task.
func taskFromValues(values map[string]interface{}) (*domain.Task, error) {
	taskID, err := uuid.Parse(stringValue(values[entryTaskID]))
	if err != nil {
		return nil, fmt.Errorf("bad task_id: %w", err)
	}

	userID, err := strconv.ParseInt(stringValue(values[entryUserID]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad user_id: %w", err)
	}

	chatID, err := strconv.ParseInt(stringValue(values[entryChatID]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad chat_id: %w", err)
	}

	text := stringValue(values[entryText])
	if text == "" {
		return nil, domain.ErrEmptyTaskText
	}

	// created_at may be absent on entries from older producers.
	createdAt := time.Time{}
	if raw := stringValue(values[entryCreatedAt]); raw != "" {
		createdAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("bad created_at: %w", err)
		}
	}

	return &domain.Task{
		ID:        taskID,
		UserID:    userID,
		ChatID:    chatID,
		Text:      text,
		CreatedAt: createdAt,
	}, nil
}

// stringValue converts a stream field value to a string. go-redis
// decodes stream fields as strings, but the map type is interface{}.
func stringValue(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
