// Package service implements the gateway's application logic:
// submitting tasks into the pipeline and reading their status.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/queue"
	"github.com/phrazzld/askstream/internal/store"
)

// Common sentinel errors for TaskService.
var (
	// ErrTaskNotFound indicates that the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
)

// TaskService provides task submission and status operations.
type TaskService interface {
	// Submit validates and registers a new task: archive insert,
	// status record initialization, then queue append. Returns the
	// created task.
	Submit(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error)

	// GetStatus retrieves the status record for a task.
	// Returns ErrTaskNotFound if no such task exists.
	GetStatus(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error)

	// ListRecent returns the most recently submitted tasks from the
	// archive, newest first.
	ListRecent(ctx context.Context, limit int) ([]*store.ArchivedTask, error)

	// Health probes the backing stores and returns a classified
	// report. It never returns an error; unreachable backends are
	// reported in the result.
	Health(ctx context.Context) HealthReport
}

// HealthReport is the classified result of a liveness probe.
type HealthReport struct {
	Healthy bool
	Detail  string
}

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "submit").
	Operation string
	// Message is a human-readable description of the error.
	Message string
	// Err is the underlying error that caused the failure.
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	statusStore store.StatusStore
	archive     store.TaskArchive
	queue       queue.Queue
	logger      *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	statusStore store.StatusStore,
	archive store.TaskArchive,
	taskQueue queue.Queue,
	log *slog.Logger,
) (TaskService, error) {
	if statusStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "statusStore cannot be nil"}
	}
	if archive == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "archive cannot be nil"}
	}
	if taskQueue == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	}

	if log == nil {
		log = slog.Default()
	}

	return &taskServiceImpl{
		statusStore: statusStore,
		archive:     archive,
		queue:       taskQueue,
		logger:      log.With(slog.String("component", "task_service")),
	}, nil
}

// Submit implements TaskService.Submit.
//
// Write order matters: the status record is initialized before the
// queue append so a client polling immediately after submission never
// sees not-found for a task that is already enqueued. The archive
// insert happens first of all, before anything a worker could observe.
func (s *taskServiceImpl) Submit(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error) {
	task, err := domain.NewTask(userID, chatID, text)
	if err != nil {
		return nil, domain.NewValidationError("task", err.Error(), domain.ErrValidation)
	}

	log := s.logger.With(slog.String("task_id", task.ID.String()))

	if err := s.archive.Record(ctx, task); err != nil {
		log.Error("failed to archive submission", slog.String("error", err.Error()))
		return nil, &TaskServiceError{Operation: "submit", Message: "failed to archive task", Err: err}
	}

	if err := s.statusStore.Init(ctx, domain.NewStatusRecord(task)); err != nil {
		log.Error("failed to initialize status record", slog.String("error", err.Error()))
		return nil, &TaskServiceError{Operation: "submit", Message: "failed to initialize status", Err: err}
	}

	if err := s.queue.Enqueue(ctx, task); err != nil {
		log.Error("failed to enqueue task", slog.String("error", err.Error()))
		return nil, &TaskServiceError{Operation: "submit", Message: "failed to enqueue task", Err: err}
	}

	log.Info("task submitted",
		slog.Int64("user_id", task.UserID),
		slog.Int64("chat_id", task.ChatID))

	return task, nil
}

// GetStatus implements TaskService.GetStatus.
func (s *taskServiceImpl) GetStatus(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error) {
	record, err := s.statusStore.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, &TaskServiceError{Operation: "get_status", Message: "failed to read status", Err: err}
	}

	return record, nil
}

// ListRecent implements TaskService.ListRecent.
func (s *taskServiceImpl) ListRecent(ctx context.Context, limit int) ([]*store.ArchivedTask, error) {
	tasks, err := s.archive.ListRecent(ctx, limit)
	if err != nil {
		return nil, &TaskServiceError{Operation: "list_recent", Message: "failed to list tasks", Err: err}
	}
	return tasks, nil
}

// Health implements TaskService.Health.
func (s *taskServiceImpl) Health(ctx context.Context) HealthReport {
	if err := s.statusStore.Ping(ctx); err != nil {
		s.logger.Warn("status store unreachable", slog.String("error", err.Error()))
		return HealthReport{Healthy: false, Detail: "status store unreachable"}
	}

	if err := s.queue.Ping(ctx); err != nil {
		s.logger.Warn("queue unreachable", slog.String("error", err.Error()))
		return HealthReport{Healthy: false, Detail: "queue unreachable"}
	}

	if err := s.archive.Ping(ctx); err != nil {
		s.logger.Warn("task archive unreachable", slog.String("error", err.Error()))
		return HealthReport{Healthy: false, Detail: "task archive unreachable"}
	}

	return HealthReport{Healthy: true, Detail: "ok"}
}
