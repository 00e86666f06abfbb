package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

type TaskService struct {
	repo   repository.TaskRepository
	logger *slog.Logger
}

func NewTaskService(repo repository.TaskRepository, logger *slog.Logger) *TaskService {
	return &TaskService{repo: repo, logger: logger}
}

// TaskInput is a full task as submitted on create. Empty Priority and
// Status take their defaults.
type TaskInput struct {
	Title       string
	Description string
	Priority    model.Priority
	Status      model.TaskStatus
	DueDate     *time.Time
}

// TaskUpdate is a partial update: only non-nil fields change.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	Status      *model.TaskStatus
	DueDate     *time.Time
}

// List returns the caller's tasks, newest first.
func (s *TaskService) List(ctx context.Context, callerID string) ([]model.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, repository.TaskFilter{UserID: callerID})
	if err != nil {
		return nil, fmt.Errorf("service/task: listing tasks for user %s: %w", callerID, err)
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, callerID string, in TaskInput) (*model.Task, error) {
	title, err := validateTaskTitle(in.Title)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		UserID:      callerID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     in.DueDate,
	}
	if task.Priority == "" {
		task.Priority = model.PriorityLow
	}
	if task.Status == "" {
		task.Status = model.TaskPending
	}
	if err := validateTaskEnums(&task.Priority, &task.Status); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("service/task: creating task for user %s: %w", callerID, err)
	}

	s.logger.Debug("task created", slog.String("taskID", task.ID), slog.String("userID", callerID))
	return task, nil
}

// Update applies a partial update to a task the caller owns.
//
// ATOMIC OWNERSHIP CHECK:
// The repository matches id AND owner in one UPDATE statement, so there is
// no window between checking ownership and writing. Only when nothing
// matched do we read the row, to tell "missing" from "someone else's".
func (s *TaskService) Update(ctx context.Context, callerID, id string, in TaskUpdate) (*model.Task, error) {
	patch := repository.TaskPatch{
		Priority: in.Priority,
		Status:   in.Status,
		DueDate:  in.DueDate,
	}
	if in.Title != nil {
		title, err := validateTaskTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		patch.Description = &desc
	}
	if err := validateTaskEnums(in.Priority, in.Status); err != nil {
		return nil, err
	}

	task, err := s.repo.UpdateTaskOwned(ctx, id, callerID, patch)
	if errors.Is(err, repository.ErrNotMatched) {
		return nil, s.explain(ctx, id, callerID)
	}
	if err != nil {
		return nil, fmt.Errorf("service/task: updating task %s: %w", id, err)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, callerID, id string) error {
	err := s.repo.DeleteTaskOwned(ctx, id, callerID)
	if errors.Is(err, repository.ErrNotMatched) {
		return s.explain(ctx, id, callerID)
	}
	if err != nil {
		return fmt.Errorf("service/task: deleting task %s: %w", id, err)
	}
	s.logger.Debug("task deleted", slog.String("taskID", id), slog.String("userID", callerID))
	return nil
}

func (s *TaskService) explain(ctx context.Context, id, callerID string) error {
	err := explainMiss(ctx, id, callerID, s.repo.GetTaskByID)
	if err == nil {
		// Owner matched on re-read: the row was changed or removed in between.
		return apperror.NotFound("Task", id)
	}
	if errors.Is(err, apperror.ErrForbidden) {
		s.logger.Warn("task ownership check failed", slog.String("taskID", id), slog.String("userID", callerID))
	}
	return err
}

func validateTaskTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apperror.ValidationFailed("title", "Task title is required")
	}
	if utf8.RuneCountInString(title) > model.MaxTaskTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("Task title must be at most %d characters", model.MaxTaskTitleLength))
	}
	return title, nil
}

func validateTaskEnums(priority *model.Priority, status *model.TaskStatus) error {
	var fields []apperror.FieldError
	if priority != nil && !priority.Valid() {
		fields = append(fields, apperror.FieldError{Field: "priority",
			Message: "Priority must be one of Critical, High, Medium, Low"})
	}
	if status != nil && !status.Valid() {
		fields = append(fields, apperror.FieldError{Field: "status",
			Message: "Status must be one of Pending, In Progress, Completed"})
	}
	if len(fields) > 0 {
		return apperror.ValidationErrors(fields...)
	}
	return nil
}
