package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

const (
	upcomingWindow     = 7 * 24 * time.Hour
	urgentTaskLimit    = 3
	upcomingEventLimit = 3
	deadlineLimit      = 6
)

// Dashboard is the statistics payload. Every field is recomputed from the
// stores on each call.
type Dashboard struct {
	TaskStats           TaskStats         `json:"taskStats"`
	UpcomingEventsCount int               `json:"upcomingEventsCount"`
	UrgentTasks         []model.Task      `json:"urgentTasks"`
	Tasks               []model.Task      `json:"tasks"`
	DailyProgress       int               `json:"dailyProgress"`
	WeeklyProgress      [7]int            `json:"weeklyProgress"`
	UpcomingSessions    []UpcomingSession `json:"upcomingSessions"`
	UpcomingDeadlines   []Deadline        `json:"upcomingDeadlines"`
	OverdueTasks        []model.Task      `json:"overdueTasks"`
}

type TaskStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completionRate"`
}

// UpcomingSession is a scheduled event in short form.
type UpcomingSession struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

type Deadline struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Due   time.Time `json:"due"`
}

type StatsService struct {
	tasks  repository.TaskRepository
	events repository.EventRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewStatsService(tasks repository.TaskRepository, events repository.EventRepository, logger *slog.Logger) *StatsService {
	return &StatsService{tasks: tasks, events: events, logger: logger, now: time.Now}
}

// Dashboard aggregates the caller's statistics.
//
// "Today" and the weekday buckets use the location of the injected clock,
// which is the server's local zone in production.
func (s *StatsService) Dashboard(ctx context.Context, callerID string) (*Dashboard, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekAgo := now.Add(-upcomingWindow)
	weekAhead := now.Add(upcomingWindow)

	d := &Dashboard{}

	// ---- Totals ----
	total, err := s.tasks.CountTasks(ctx, repository.TaskFilter{UserID: callerID})
	if err != nil {
		return nil, s.wrap("counting tasks", callerID, err)
	}
	completed, err := s.tasks.CountTasks(ctx, repository.TaskFilter{UserID: callerID, Status: model.TaskCompleted})
	if err != nil {
		return nil, s.wrap("counting completed tasks", callerID, err)
	}
	d.TaskStats = TaskStats{
		Total:          total,
		Completed:      completed,
		Pending:        total - completed,
		CompletionRate: percent(completed, total),
	}

	// ---- Upcoming events ----
	d.UpcomingEventsCount, err = s.events.CountEvents(ctx, repository.EventFilter{
		CreatorID: callerID,
		Status:    model.EventScheduled,
		StartFrom: &now,
		StartTo:   &weekAhead,
	})
	if err != nil {
		return nil, s.wrap("counting upcoming events", callerID, err)
	}

	// ---- Urgent ----
	d.UrgentTasks, err = s.tasks.ListTasks(ctx, repository.TaskFilter{
		UserID:        callerID,
		ExcludeStatus: model.TaskCompleted,
		Priorities:    []model.Priority{model.PriorityCritical, model.PriorityHigh},
		Limit:         urgentTaskLimit,
	})
	if err != nil {
		return nil, s.wrap("listing urgent tasks", callerID, err)
	}

	// ---- Today ----
	d.Tasks, err = s.tasks.ListTasks(ctx, repository.TaskFilter{
		UserID:    callerID,
		DueFrom:   &dayStart,
		DueBefore: &dayEnd,
	})
	if err != nil {
		return nil, s.wrap("listing today's tasks", callerID, err)
	}
	doneToday := 0
	for _, t := range d.Tasks {
		if t.Status == model.TaskCompleted {
			doneToday++
		}
	}
	d.DailyProgress = int(math.Round(percent(doneToday, len(d.Tasks))))

	// ---- Last 7 days, by weekday ----
	recent, err := s.tasks.ListTasks(ctx, repository.TaskFilter{
		UserID:      callerID,
		Status:      model.TaskCompleted,
		UpdatedFrom: &weekAgo,
	})
	if err != nil {
		return nil, s.wrap("listing recently completed tasks", callerID, err)
	}
	for _, t := range recent {
		d.WeeklyProgress[t.UpdatedAt.In(now.Location()).Weekday()]++
	}

	// ---- Next scheduled sessions ----
	sessions, err := s.events.ListEvents(ctx, repository.EventFilter{
		CreatorID: callerID,
		Status:    model.EventScheduled,
		StartFrom: &now,
		Limit:     upcomingEventLimit,
	})
	if err != nil {
		return nil, s.wrap("listing upcoming sessions", callerID, err)
	}
	d.UpcomingSessions = make([]UpcomingSession, 0, len(sessions))
	for _, e := range sessions {
		start := e.Start.In(now.Location())
		d.UpcomingSessions = append(d.UpcomingSessions, UpcomingSession{
			ID:    e.ID,
			Title: e.Title,
			Date:  model.DateKey(start),
			Time:  start.Format("15:04"),
		})
	}

	// ---- Deadlines ----
	due, err := s.tasks.ListTasks(ctx, repository.TaskFilter{
		UserID:  callerID,
		DueFrom: &now,
		OrderBy: repository.TasksByDueDate,
		Limit:   deadlineLimit,
	})
	if err != nil {
		return nil, s.wrap("listing deadlines", callerID, err)
	}
	d.UpcomingDeadlines = make([]Deadline, 0, len(due))
	for _, t := range due {
		d.UpcomingDeadlines = append(d.UpcomingDeadlines, Deadline{ID: t.ID, Title: t.Title, Due: *t.DueDate})
	}

	// ---- Overdue ----
	d.OverdueTasks, err = s.tasks.ListTasks(ctx, repository.TaskFilter{
		UserID:        callerID,
		ExcludeStatus: model.TaskCompleted,
		DueBefore:     &now,
		OrderBy:       repository.TasksByDueDate,
	})
	if err != nil {
		return nil, s.wrap("listing overdue tasks", callerID, err)
	}

	s.logger.Debug("dashboard computed",
		slog.String("userID", callerID),
		slog.Int("tasks", total),
		slog.Int("overdue", len(d.OverdueTasks)),
	)
	return d, nil
}

func (s *StatsService) wrap(step, callerID string, err error) error {
	return fmt.Errorf("service/stats: %s for user %s: %w", step, callerID, err)
}

// percent returns part/whole*100, or 0 for an empty whole.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
