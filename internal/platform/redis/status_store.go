package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	r "github.com/redis/go-redis/v9"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/store"
)

// Hash field names within a task's status key.
const (
	fieldStatus = "status"
	fieldResult = "result"
	fieldChatID = "chat_id"
)

// setProcessingScript marks a task processing only when its record
// exists, so a bare status field is never created for an unknown task.
var setProcessingScript = r.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
return 1
`)

// setResultScript writes the terminal status and result only when the
// record is not already terminal. The check and the write run as one
// script: two consumers racing over a reclaimed entry cannot both pass
// the guard, so a terminal status is written at most once.
var setResultScript = r.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if current == 'complete' or current == 'failed' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'result', ARGV[2])
return 1
`)

// HashStatusStore implements store.StatusStore using one Redis hash
// per task, keyed task:<taskID>.
type HashStatusStore struct {
	client *r.Client
	logger *slog.Logger
}

// NewHashStatusStore creates a Redis-backed status store.
// If log is nil, the default logger is used.
func NewHashStatusStore(client *r.Client, log *slog.Logger) *HashStatusStore {
	if client == nil {
		panic("client cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &HashStatusStore{
		client: client,
		logger: log.With(slog.String("component", "status_store")),
	}
}

// Ensure HashStatusStore implements store.StatusStore.
var _ store.StatusStore = (*HashStatusStore)(nil)

// statusKey returns the hash key for a task's status record.
func statusKey(taskID uuid.UUID) string {
	return "task:" + taskID.String()
}

// Init implements store.StatusStore.Init.
// It writes the full initial record in a single HSET.
func (s *HashStatusStore) Init(ctx context.Context, record *domain.StatusRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		log.Warn("status record validation failed during init",
			slog.String("task_id", record.TaskID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	err := s.client.HSet(ctx, statusKey(record.TaskID), map[string]interface{}{
		fieldStatus: string(record.Status),
		fieldResult: record.Result,
		fieldChatID: strconv.FormatInt(record.ChatID, 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to init status record: %w", err)
	}

	return nil
}

// SetProcessing implements store.StatusStore.SetProcessing.
// Returns store.ErrTaskNotFound when no record exists; callers must
// initialize the record first so readers always see all its fields.
func (s *HashStatusStore) SetProcessing(ctx context.Context, taskID uuid.UUID) error {
	res, err := setProcessingScript.Run(ctx, s.client,
		[]string{statusKey(taskID)},
		string(domain.TaskStatusProcessing),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to set status to processing: %w", err)
	}
	if res == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// SetResult implements store.StatusStore.SetResult.
// The terminal check and the status+result write run atomically in a
// script, so a reader never observes a terminal status without its
// result and a terminal status is never overwritten.
func (s *HashStatusStore) SetResult(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
	result string,
) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", domain.ErrInvalidStatus, status)
	}

	res, err := setResultScript.Run(ctx, s.client,
		[]string{statusKey(taskID)},
		string(status), result,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to write terminal status: %w", err)
	}
	if res == 0 {
		return domain.ErrTerminalStatus
	}

	return nil
}

// Get implements store.StatusStore.Get.
// Returns store.ErrTaskNotFound when no record exists for the ID.
func (s *HashStatusStore) Get(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error) {
	fields, err := s.client.HGetAll(ctx, statusKey(taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status record: %w", err)
	}

	// HGETALL returns an empty map, not an error, for a missing key.
	if len(fields) == 0 {
		return nil, store.ErrTaskNotFound
	}

	chatID, err := strconv.ParseInt(fields[fieldChatID], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt chat_id field for task %s: %w", taskID, err)
	}

	return &domain.StatusRecord{
		TaskID: taskID,
		Status: domain.TaskStatus(fields[fieldStatus]),
		Result: fields[fieldResult],
		ChatID: chatID,
	}, nil
}

// Ping implements store.StatusStore.Ping.
func (s *HashStatusStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
