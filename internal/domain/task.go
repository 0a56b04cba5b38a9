package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusComplete   TaskStatus = "complete"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for Task.
var (
	ErrEmptyTaskID    = errors.New("task ID cannot be empty")
	ErrInvalidUserID  = errors.New("task user ID must be positive")
	ErrInvalidChatID  = errors.New("task chat ID must be positive")
	ErrEmptyTaskText  = errors.New("task text cannot be empty")
	ErrInvalidStatus  = errors.New("invalid task status")
	ErrTerminalStatus = errors.New("task status is terminal and cannot change")
	ErrMissingResult  = errors.New("complete status requires a result")
)

// Task represents a free-text question submitted by a user for
// asynchronous answering. A task is immutable once created; all
// mutable processing state lives in its StatusRecord.
type Task struct {
	ID        uuid.UUID `json:"id"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTask creates a new Task for the given user, delivery chat, and
// question text. It generates a fresh UUID for the task ID and stamps
// the creation time. Returns an error if validation fails.
func NewTask(userID, chatID int64, text string) (*Task, error) {
	task := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		ChatID:    chatID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID <= 0 {
		return ErrInvalidUserID
	}

	if t.ChatID <= 0 {
		return ErrInvalidChatID
	}

	if t.Text == "" {
		return ErrEmptyTaskText
	}

	return nil
}

// IsTerminal reports whether the status is final. Terminal statuses
// must never be overwritten.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed
}

// IsValidTaskStatus checks if the given status is a recognized TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusComplete, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status record may move from one
// status to another. Transitions out of a terminal status are never
// allowed; the queued->processing->terminal order is enforced.
func CanTransition(from, to TaskStatus) bool {
	if !IsValidTaskStatus(from) || !IsValidTaskStatus(to) {
		return false
	}
	if from.IsTerminal() {
		return false
	}

	switch from {
	case TaskStatusQueued:
		return to == TaskStatusProcessing || to.IsTerminal()
	case TaskStatusProcessing:
		return to.IsTerminal()
	default:
		return false
	}
}
