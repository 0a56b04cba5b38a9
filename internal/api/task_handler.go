// Package api implements the gateway's HTTP handlers.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/askstream/internal/api/shared"
	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/platform/logger"
	"github.com/phrazzld/askstream/internal/service"
)

// defaultListLimit bounds GET /tasks when no limit is given.
const defaultListLimit = 20

// CreateTaskRequest represents the request body for submitting a task.
type CreateTaskRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	ChatID int64  `json:"chat_id" validate:"required,gt=0"`
	Text   string `json:"text"    validate:"required,min=1"`
}

// CreateTaskResponse represents the response for a submitted task.
type CreateTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// StatusResponse represents the status record of a task.
type StatusResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result string `json:"result"`
	ChatID int64  `json:"chat_id"`
}

// ArchivedTaskResponse represents one archived task in a listing.
type ArchivedTaskResponse struct {
	TaskID       string    `json:"task_id"`
	UserID       int64     `json:"user_id"`
	ChatID       int64     `json:"chat_id"`
	Text         string    `json:"text"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HealthResponse represents the health probe result.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService service.TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}

	return &TaskHandler{
		taskService: taskService,
		logger:      log.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks requests.
// Malformed submissions are rejected before any write happens.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := h.taskService.Submit(r.Context(), req.UserID, req.ChatID, req.Text)
	if err != nil {
		log.Error("failed to submit task",
			slog.Int64("user_id", req.UserID),
			slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return
	}

	response := CreateTaskResponse{
		TaskID: task.ID.String(),
		Status: string(domain.TaskStatusQueued),
	}

	// 202: the task is accepted; processing happens asynchronously.
	shared.RespondWithJSON(w, r, http.StatusAccepted, response)
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	idParam := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(idParam)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("id", "has invalid format", domain.ErrInvalidID), "")
		return
	}

	record, err := h.taskService.GetStatus(r.Context(), taskID)
	if err != nil {
		if !errors.Is(err, service.ErrTaskNotFound) {
			log.Error("failed to read task status",
				slog.String("task_id", taskID.String()),
				slog.String("error", err.Error()))
		}
		HandleAPIError(w, r, err, "")
		return
	}

	response := StatusResponse{
		TaskID: record.TaskID.String(),
		Status: string(record.Status),
		Result: record.Result,
		ChatID: record.ChatID,
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// ListTasks handles GET /tasks requests, returning the most recently
// submitted tasks from the archive.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	tasks, err := h.taskService.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return
	}

	response := make([]ArchivedTaskResponse, 0, len(tasks))
	for _, archived := range tasks {
		response = append(response, ArchivedTaskResponse{
			TaskID:       archived.Task.ID.String(),
			UserID:       archived.Task.UserID,
			ChatID:       archived.Task.ChatID,
			Text:         archived.Task.Text,
			Status:       string(archived.Status),
			ErrorMessage: archived.ErrorMessage,
			CreatedAt:    archived.Task.CreatedAt,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// Health handles GET /health requests. It always returns a classified
// result and never propagates a probe failure to the caller.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.taskService.Health(r.Context())

	response := HealthResponse{
		Status: "healthy",
		Detail: report.Detail,
	}
	status := http.StatusOK

	if !report.Healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	shared.RespondWithJSON(w, r, status, response)
}
