package domain

import "github.com/google/uuid"

// StatusRecord is the observable processing state of a task, keyed by
// the task ID. It is created by the gateway at submission time and
// mutated by exactly one worker over its lifetime. The chat ID is
// denormalized from the Task because the queue entry may be consumed
// independently of who needs the result.
type StatusRecord struct {
	TaskID uuid.UUID  `json:"task_id"`
	Status TaskStatus `json:"status"`
	Result string     `json:"result"`
	ChatID int64      `json:"chat_id"`
}

// NewStatusRecord builds the initial queued record for a task.
func NewStatusRecord(task *Task) *StatusRecord {
	return &StatusRecord{
		TaskID: task.ID,
		Status: TaskStatusQueued,
		Result: "",
		ChatID: task.ChatID,
	}
}

// Validate checks if the StatusRecord has valid data.
func (r *StatusRecord) Validate() error {
	if r.TaskID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if !IsValidTaskStatus(r.Status) {
		return ErrInvalidStatus
	}

	if r.Status == TaskStatusComplete && r.Result == "" {
		return ErrMissingResult
	}

	return nil
}
