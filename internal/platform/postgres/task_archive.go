// Package postgres provides the PostgreSQL implementation of the task
// archive.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/store"
)

// TaskArchive implements store.TaskArchive using a PostgreSQL
// database as the storage backend.
type TaskArchive struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewTaskArchive creates a PostgreSQL implementation of the
// TaskArchive interface. The database connection should be
// initialized and managed by the caller. If log is nil, a default
// logger will be used.
func NewTaskArchive(db store.DBTX, log *slog.Logger) *TaskArchive {
	if db == nil {
		panic("db cannot be nil")
	}

	if log == nil {
		log = slog.Default()
	}

	return &TaskArchive{
		db:     db,
		logger: log.With(slog.String("component", "task_archive")),
	}
}

// Ensure TaskArchive implements store.TaskArchive.
var _ store.TaskArchive = (*TaskArchive)(nil)

// Record implements store.TaskArchive.Record.
func (a *TaskArchive) Record(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, a.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during archive insert",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, user_id, chat_id, text, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now().UTC()

	_, err := a.db.ExecContext(ctx, query,
		task.ID,
		task.UserID,
		task.ChatID,
		task.Text,
		domain.TaskStatusQueued,
		task.CreatedAt,
		now,
	)
	if err != nil {
		log.Error("failed to archive task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to archive task: %w", err)
	}

	return nil
}

// RecordOutcome implements store.TaskArchive.RecordOutcome.
// A missing row is a no-op so a worker processing an entry whose
// archive insert never happened does not fail its terminal write.
func (a *TaskArchive) RecordOutcome(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
	errMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, a.logger)

	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", domain.ErrInvalidStatus, status)
	}

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := a.db.ExecContext(ctx, query,
		status,
		errMsg,
		time.Now().UTC(),
		taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to record task outcome: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("no archived task found for outcome update",
			slog.String("task_id", taskID.String()))
	}

	return nil
}

// ListRecent implements store.TaskArchive.ListRecent.
func (a *TaskArchive) ListRecent(ctx context.Context, limit int) ([]*store.ArchivedTask, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, chat_id, text, status, COALESCE(error_message, ''), created_at
		FROM tasks
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived tasks: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			a.logger.Warn("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	var tasks []*store.ArchivedTask
	for rows.Next() {
		var archived store.ArchivedTask
		err := rows.Scan(
			&archived.Task.ID,
			&archived.Task.UserID,
			&archived.Task.ChatID,
			&archived.Task.Text,
			&archived.Status,
			&archived.ErrorMessage,
			&archived.Task.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived task: %w", err)
		}
		tasks = append(tasks, &archived)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived tasks: %w", err)
	}

	return tasks, nil
}

// Ping implements store.TaskArchive.Ping.
func (a *TaskArchive) Ping(ctx context.Context) error {
	var one int
	err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
