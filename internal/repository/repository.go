// Package repository declares the storage contracts the service layer
// depends on. The sqlite subpackage is the only implementation; services
// and their tests see nothing but these interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/studysync/studysync-server/internal/model"
)

// ErrNotMatched is returned by the *Owned operations when no row matched
// both the id and the owner (and, for events, the date-order guard). The
// caller decides what that means by looking the row up once.
var ErrNotMatched = errors.New("repository: no row matched")

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateGoogleToken(ctx context.Context, userID string, token model.GoogleToken) error
	SetDailyGoal(ctx context.Context, userID string, minutes int) error
}

type ContactRepository interface {
	AddContact(ctx context.Context, contact *model.Contact) error
	ListContacts(ctx context.Context, userID string) ([]model.Contact, error)
}

// TaskOrder selects the sort order of ListTasks.
type TaskOrder int

const (
	TasksNewestFirst TaskOrder = iota // created_at DESC
	TasksByDueDate                    // due_date ASC
)

// TaskFilter narrows a task query. Zero fields don't filter.
// DueFrom is inclusive, DueBefore exclusive.
type TaskFilter struct {
	UserID        string
	Status        model.TaskStatus
	ExcludeStatus model.TaskStatus
	Priorities    []model.Priority
	DueFrom       *time.Time
	DueBefore     *time.Time
	UpdatedFrom   *time.Time
	OrderBy       TaskOrder
	Limit         int
}

// TaskPatch holds the fields of a partial update. nil leaves a column alone.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	Status      *model.TaskStatus
	DueDate     *time.Time
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)
	UpdateTaskOwned(ctx context.Context, id, ownerID string, patch TaskPatch) (*model.Task, error)
	DeleteTaskOwned(ctx context.Context, id, ownerID string) error
}

// EventFilter narrows an event query. Results are ordered by start time.
// StartFrom and StartTo are both inclusive.
type EventFilter struct {
	CreatorID string
	Status    model.EventStatus
	StartFrom *time.Time
	StartTo   *time.Time
	Limit     int
}

// EventPatch holds the fields of a partial event update.
// A non-nil Participants replaces the whole list.
type EventPatch struct {
	Title        *string
	Description  *string
	LocationType *model.LocationType
	Location     *string
	Start        *time.Time
	End          *time.Time
	Status       *model.EventStatus
	Participants *[]model.Participant
}

type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
	CountEvents(ctx context.Context, filter EventFilter) (int, error)
	UpdateEventOwned(ctx context.Context, id, ownerID string, patch EventPatch) (*model.Event, error)
	DeleteEventOwned(ctx context.Context, id, ownerID string) error

	// ListBusy returns the local busy intervals of one account: events it
	// created, or accepted as a participant (matched by user id or email),
	// that aren't cancelled and overlap the window.
	ListBusy(ctx context.Context, userID, email string, window model.TimeWindow) ([]model.BusyInterval, error)
}

type StudySessionRepository interface {
	CreateSession(ctx context.Context, session *model.StudySession) error

	// MinutesByDate sums minutes per date key for fromKey <= date <= toKey.
	// Days without sessions are absent from the map.
	MinutesByDate(ctx context.Context, userID, fromKey, toKey string) (map[string]int, error)
}
