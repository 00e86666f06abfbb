package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/service"
)

// TaskHandler serves CRUD for the caller's tasks.
//
// Title, enum and ownership rules live in service.TaskService; this layer
// only decodes JSON and maps errors to status codes.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// taskRequest is shared by create and update. On update, absent fields
// are left unchanged.
type taskRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Priority    *model.Priority   `json:"priority"`
	Status      *model.TaskStatus `json:"status"`
	DueDate     *jsonTime         `json:"dueDate"`
}

// HandleList returns the caller's tasks, newest first.
//
// HTTP: GET /api/tasks
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.tasks.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleCreate creates a task owned by the caller.
//
// HTTP: POST /api/tasks
// REQUEST BODY: {"title": "Essay", "priority": "High", "dueDate": "2026-03-09"}
// RESPONSE: 201 with the stored task
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := service.TaskInput{DueDate: timePtr(req.DueDate)}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	if req.Status != nil {
		in.Status = *req.Status
	}

	task, err := h.tasks.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/tasks/{id}
// RESPONSE: 200 with the updated task; 403 if the caller isn't the owner
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), userID, chi.URLParam(r, "id"), service.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     timePtr(req.DueDate),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleDelete removes a task.
//
// HTTP: DELETE /api/tasks/{id}
// RESPONSE: 200 {"id": "..."}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.tasks.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("task deleted", slog.String("taskID", id), slog.String("userID", userID))
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
