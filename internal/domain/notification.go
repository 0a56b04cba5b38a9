package domain

import "github.com/google/uuid"

// Notification is the ephemeral message pushed over the notification
// bus when a task completes. It exists only in transit; consumers that
// need durable results must poll the status record instead.
type Notification struct {
	TaskID uuid.UUID `json:"task_id"`
	UserID int64     `json:"user_id"`
	ChatID int64     `json:"chat_id"`
	Result string    `json:"result"`
}
