package model

import "time"

// Priority ranks a task. Critical and High count as "urgent" on the dashboard.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// MaxTaskTitleLength bounds Task.Title (in characters, not bytes).
const MaxTaskTitleLength = 200

// Task is a to-do item owned by exactly one user.
//
// DueDate is a pointer because "no due date" is a real state, distinct from
// the zero time. It's encoded as null in JSON.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// OwnerID implements Owned.
func (t *Task) OwnerID() string { return t.UserID }

// Owned is anything with a single owning user. The service layer runs the
// same authorization predicate over every Owned resource.
type Owned interface {
	OwnerID() string
}
