package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/askstream/internal/domain"
	"github.com/phrazzld/askstream/internal/service"
	"github.com/phrazzld/askstream/internal/store"
)

// mockTaskService is a configurable service.TaskService for handler tests.
type mockTaskService struct {
	SubmitFn     func(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error)
	GetStatusFn  func(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error)
	ListRecentFn func(ctx context.Context, limit int) ([]*store.ArchivedTask, error)
	HealthFn     func(ctx context.Context) service.HealthReport
}

func (m *mockTaskService) Submit(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, userID, chatID, text)
	}
	return domain.NewTask(userID, chatID, text)
}

func (m *mockTaskService) GetStatus(ctx context.Context, taskID uuid.UUID) (*domain.StatusRecord, error) {
	if m.GetStatusFn != nil {
		return m.GetStatusFn(ctx, taskID)
	}
	return nil, service.ErrTaskNotFound
}

func (m *mockTaskService) ListRecent(ctx context.Context, limit int) ([]*store.ArchivedTask, error) {
	if m.ListRecentFn != nil {
		return m.ListRecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockTaskService) Health(ctx context.Context) service.HealthReport {
	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return service.HealthReport{Healthy: true, Detail: "ok"}
}

// testRouter mounts the handler on a chi router so URL params resolve.
func testRouter(svc service.TaskService) http.Handler {
	r := chi.NewRouter()
	handler := NewTaskHandler(svc, nil)
	r.Post("/tasks", handler.CreateTask)
	r.Get("/tasks", handler.ListTasks)
	r.Get("/tasks/{id}", handler.GetTask)
	r.Get("/health", handler.Health)
	return r
}

func TestCreateTask(t *testing.T) {
	t.Run("accepts valid submission", func(t *testing.T) {
		task, err := domain.NewTask(42, 99, "what is a goroutine?")
		require.NoError(t, err)

		var gotUserID, gotChatID int64
		var gotText string
		svc := &mockTaskService{
			SubmitFn: func(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error) {
				gotUserID, gotChatID, gotText = userID, chatID, text
				return task, nil
			},
		}

		body := `{"user_id": 42, "chat_id": 99, "text": "what is a goroutine?"}`
		req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, int64(42), gotUserID)
		assert.Equal(t, int64(99), gotChatID)
		assert.Equal(t, "what is a goroutine?", gotText)

		var resp CreateTaskResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, task.ID.String(), resp.TaskID)
		assert.Equal(t, "queued", resp.Status)
	})

	t.Run("rejects invalid bodies before submitting", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "malformed json", body: `{"user_id": `},
			{name: "unknown field", body: `{"user_id": 1, "chat_id": 1, "text": "hi", "extra": true}`},
			{name: "missing text", body: `{"user_id": 1, "chat_id": 1}`},
			{name: "empty text", body: `{"user_id": 1, "chat_id": 1, "text": ""}`},
			{name: "zero user id", body: `{"user_id": 0, "chat_id": 1, "text": "hi"}`},
			{name: "negative chat id", body: `{"user_id": 1, "chat_id": -2, "text": "hi"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				submitted := false
				svc := &mockTaskService{
					SubmitFn: func(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error) {
						submitted = true
						return nil, nil
					},
				}

				req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", "application/json")
				rec := httptest.NewRecorder()

				testRouter(svc).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.False(t, submitted, "invalid requests must be rejected before submission")
			})
		}
	})

	t.Run("maps submission failure to 500", func(t *testing.T) {
		svc := &mockTaskService{
			SubmitFn: func(ctx context.Context, userID, chatID int64, text string) (*domain.Task, error) {
				return nil, &service.TaskServiceError{Operation: "submit", Message: "queue append failed"}
			},
		}

		body := `{"user_id": 1, "chat_id": 1, "text": "hello"}`
		req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		// The response carries the sanitized message, not the raw error.
		var resp map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotContains(t, resp["error"], "queue append")
	})
}

func TestGetTask(t *testing.T) {
	taskID := uuid.New()

	t.Run("returns status record", func(t *testing.T) {
		svc := &mockTaskService{
			GetStatusFn: func(ctx context.Context, id uuid.UUID) (*domain.StatusRecord, error) {
				assert.Equal(t, taskID, id)
				return &domain.StatusRecord{
					TaskID: id,
					Status: domain.TaskStatusComplete,
					Result: "an answer",
					ChatID: 7,
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/tasks/"+taskID.String(), nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp StatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, taskID.String(), resp.TaskID)
		assert.Equal(t, "complete", resp.Status)
		assert.Equal(t, "an answer", resp.Result)
		assert.Equal(t, int64(7), resp.ChatID)
	})

	t.Run("unknown task returns 404", func(t *testing.T) {
		svc := &mockTaskService{
			GetStatusFn: func(ctx context.Context, id uuid.UUID) (*domain.StatusRecord, error) {
				return nil, service.ErrTaskNotFound
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/tasks/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		called := false
		svc := &mockTaskService{
			GetStatusFn: func(ctx context.Context, id uuid.UUID) (*domain.StatusRecord, error) {
				called = true
				return nil, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/tasks/not-a-uuid", nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, called)
	})
}

func TestListTasks(t *testing.T) {
	t.Run("applies default limit", func(t *testing.T) {
		task, err := domain.NewTask(1, 2, "archived question")
		require.NoError(t, err)

		var gotLimit int
		svc := &mockTaskService{
			ListRecentFn: func(ctx context.Context, limit int) ([]*store.ArchivedTask, error) {
				gotLimit = limit
				return []*store.ArchivedTask{
					{Task: *task, Status: domain.TaskStatusFailed, ErrorMessage: "engine error"},
				}, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultListLimit, gotLimit)

		var resp []ArchivedTaskResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, task.ID.String(), resp[0].TaskID)
		assert.Equal(t, "failed", resp[0].Status)
		assert.Equal(t, "engine error", resp[0].ErrorMessage)
	})

	t.Run("honors explicit limit", func(t *testing.T) {
		var gotLimit int
		svc := &mockTaskService{
			ListRecentFn: func(ctx context.Context, limit int) ([]*store.ArchivedTask, error) {
				gotLimit = limit
				return nil, nil
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/tasks?limit=50", nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50, gotLimit)
	})

	t.Run("rejects out-of-range limits", func(t *testing.T) {
		for _, raw := range []string{"0", "-1", "101", "abc"} {
			t.Run(raw, func(t *testing.T) {
				svc := &mockTaskService{}

				req := httptest.NewRequest(http.MethodGet, "/tasks?limit="+raw, nil)
				rec := httptest.NewRecorder()

				testRouter(svc).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := &mockTaskService{
			HealthFn: func(ctx context.Context) service.HealthReport {
				return service.HealthReport{Healthy: true, Detail: "ok"}
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Detail)
	})

	t.Run("unhealthy", func(t *testing.T) {
		svc := &mockTaskService{
			HealthFn: func(ctx context.Context) service.HealthReport {
				return service.HealthReport{Healthy: false, Detail: "queue unreachable"}
			},
		}

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		testRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "queue unreachable", resp.Detail)
	})
}
