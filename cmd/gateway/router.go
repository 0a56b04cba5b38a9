package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/askstream/internal/api"
	apimiddleware "github.com/phrazzld/askstream/internal/api/middleware"
	"github.com/phrazzld/askstream/internal/service"
)

// setupRouter creates and configures the gateway router with all
// routes and middleware.
func setupRouter(taskService service.TaskService, appLogger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(taskService, appLogger)

	r.Post("/tasks", taskHandler.CreateTask)
	r.Get("/tasks", taskHandler.ListTasks)
	r.Get("/tasks/{id}", taskHandler.GetTask)
	r.Get("/health", taskHandler.Health)

	return r
}
