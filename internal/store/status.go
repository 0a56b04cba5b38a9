// Package store defines the persistence interfaces for task status
// records and the task archive, plus the sentinel errors shared by
// their implementations.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/askstream/internal/domain"
)

// StatusStore is the durable key/value mapping from task ID to status
// record. The gateway writes only the initial record; after that,
// exactly one worker mutates a given task's record, so implementations
// need atomic field writes but no cross-process locking.
type StatusStore interface {
	// Init creates the initial queued record for a task. The gateway
	// must call this before enqueueing so a client polling right
	// after submission never sees not-found.
	Init(ctx context.Context, record *domain.StatusRecord) error

	// SetProcessing marks the task as picked up. Called before the
	// engine is invoked so a concurrent read never observes queued
	// once work has started.
	SetProcessing(ctx context.Context, taskID uuid.UUID) error

	// SetResult writes a terminal status and its result atomically.
	// Returns domain.ErrTerminalStatus if the record is already
	// terminal; terminal statuses are never overwritten.
	SetResult(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus, result string) error

	// Get retrieves the status record for a task.
	// Returns ErrTaskNotFound if no record exists.
	Get(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
}

// TaskArchive is the durable audit trail of submissions and their
// terminal outcomes. It is not on the hot read path; clients poll the
// StatusStore.
type TaskArchive interface {
	// Record persists a newly submitted task.
	Record(ctx context.Context, task *domain.Task) error

	// RecordOutcome updates the archived task with its terminal
	// status and, for failures, the engine error text. Unknown task
	// IDs are treated as a no-op.
	RecordOutcome(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus, errMsg string) error

	// ListRecent returns the most recently submitted tasks with their
	// archived state, newest first.
	ListRecent(ctx context.Context, limit int) ([]*ArchivedTask, error)

	// Ping verifies connectivity to the backing database.
	Ping(ctx context.Context) error
}

// ArchivedTask is a task row as stored in the archive.
type ArchivedTask struct {
	Task         domain.Task
	Status       domain.TaskStatus
	ErrorMessage string
}
