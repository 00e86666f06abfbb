package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/auth"
	"github.com/studysync/studysync-server/internal/calendar"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// Hand-written in-memory fakes of the repository interfaces. Each one
// behaves like the SQLite implementation for the cases the services rely
// on, and exposes an error field to simulate a database failure.

var errDBDown = errors.New("database is down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// fixedClock returns a clock stuck at Monday 2026-03-02 12:00 UTC.
func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
}

func ptr[T any](v T) *T { return &v }

// ---- users ----

type fakeUserRepo struct {
	users     map[string]*model.User
	nextID    int
	createErr error
	getErr    error
	tokenErr  error
	tokenSets int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

// add stores a user directly and returns it.
func (f *fakeUserRepo) add(username, email string) *model.User {
	u := &model.User{
		ID:               fmt.Sprintf("user-%d", f.nextID),
		Username:         username,
		Email:            email,
		DailyGoalMinutes: model.DefaultDailyGoalMinutes,
	}
	f.nextID++
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return apperror.Conflict("user already exists")
		}
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("User", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("User", email)
}

func (f *fakeUserRepo) UpdateGoogleToken(_ context.Context, userID string, token model.GoogleToken) error {
	if f.tokenErr != nil {
		return f.tokenErr
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("User", userID)
	}
	u.Google = token
	f.tokenSets++
	return nil
}

func (f *fakeUserRepo) SetDailyGoal(_ context.Context, userID string, minutes int) error {
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("User", userID)
	}
	u.DailyGoalMinutes = minutes
	return nil
}

// ---- contacts ----

type fakeContactRepo struct {
	contacts []model.Contact
}

func (f *fakeContactRepo) AddContact(_ context.Context, c *model.Contact) error {
	for _, existing := range f.contacts {
		if existing.UserID == c.UserID && existing.Email == c.Email {
			return apperror.Conflict("Contact already exists")
		}
	}
	c.ID = fmt.Sprintf("contact-%d", len(f.contacts)+1)
	f.contacts = append(f.contacts, *c)
	return nil
}

func (f *fakeContactRepo) ListContacts(_ context.Context, userID string) ([]model.Contact, error) {
	out := []model.Contact{}
	for _, c := range f.contacts {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ---- tasks ----

type fakeTaskRepo struct {
	tasks   []*model.Task
	listErr error
	clock   time.Time
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// put stores a task as-is. Zero timestamps are filled from an internal
// clock that advances one second per task.
func (f *fakeTaskRepo) put(t model.Task) *model.Task {
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", len(f.tasks)+1)
	}
	f.clock = f.clock.Add(time.Second)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = f.clock
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	f.tasks = append(f.tasks, &t)
	return &t
}

func (f *fakeTaskRepo) CreateTask(_ context.Context, task *model.Task) error {
	*task = *f.put(*task)
	return nil
}

func (f *fakeTaskRepo) GetTaskByID(_ context.Context, id string) (*model.Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			copied := *t
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("Task", id)
}

func (f *fakeTaskRepo) match(t *model.Task, q repository.TaskFilter) bool {
	switch {
	case q.UserID != "" && t.UserID != q.UserID,
		q.Status != "" && t.Status != q.Status,
		q.ExcludeStatus != "" && t.Status == q.ExcludeStatus,
		len(q.Priorities) > 0 && !slices.Contains(q.Priorities, t.Priority),
		q.UpdatedFrom != nil && t.UpdatedAt.Before(*q.UpdatedFrom):
		return false
	}
	if q.DueFrom != nil || q.DueBefore != nil {
		if t.DueDate == nil {
			return false
		}
		if q.DueFrom != nil && t.DueDate.Before(*q.DueFrom) {
			return false
		}
		if q.DueBefore != nil && !t.DueDate.Before(*q.DueBefore) {
			return false
		}
	}
	return true
}

func (f *fakeTaskRepo) ListTasks(_ context.Context, q repository.TaskFilter) ([]model.Task, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Task{}
	for _, t := range f.tasks {
		if f.match(t, q) {
			out = append(out, *t)
		}
	}
	if q.OrderBy == repository.TasksByDueDate {
		slices.SortStableFunc(out, func(a, b model.Task) int { return a.DueDate.Compare(*b.DueDate) })
	} else {
		slices.SortStableFunc(out, func(a, b model.Task) int { return b.CreatedAt.Compare(a.CreatedAt) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeTaskRepo) CountTasks(ctx context.Context, q repository.TaskFilter) (int, error) {
	tasks, err := f.ListTasks(ctx, q)
	return len(tasks), err
}

func (f *fakeTaskRepo) UpdateTaskOwned(_ context.Context, id, ownerID string, p repository.TaskPatch) (*model.Task, error) {
	for _, t := range f.tasks {
		if t.ID != id || t.UserID != ownerID {
			continue
		}
		if p.Title != nil {
			t.Title = *p.Title
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Priority != nil {
			t.Priority = *p.Priority
		}
		if p.Status != nil {
			t.Status = *p.Status
		}
		if p.DueDate != nil {
			t.DueDate = p.DueDate
		}
		copied := *t
		return &copied, nil
	}
	return nil, repository.ErrNotMatched
}

func (f *fakeTaskRepo) DeleteTaskOwned(_ context.Context, id, ownerID string) error {
	for i, t := range f.tasks {
		if t.ID == id && t.UserID == ownerID {
			f.tasks = slices.Delete(f.tasks, i, i+1)
			return nil
		}
	}
	return repository.ErrNotMatched
}

// ---- events ----

type fakeEventRepo struct {
	events    []*model.Event
	busy      map[string][]model.BusyInterval // keyed by user ID
	busyCalls []string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{busy: make(map[string][]model.BusyInterval)}
}

func (f *fakeEventRepo) put(e model.Event) *model.Event {
	if e.ID == "" {
		e.ID = fmt.Sprintf("event-%d", len(f.events)+1)
	}
	if e.Participants == nil {
		e.Participants = []model.Participant{}
	}
	f.events = append(f.events, &e)
	return &e
}

func (f *fakeEventRepo) CreateEvent(_ context.Context, e *model.Event) error {
	*e = *f.put(*e)
	return nil
}

func (f *fakeEventRepo) GetEventByID(_ context.Context, id string) (*model.Event, error) {
	for _, e := range f.events {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("Event", id)
}

func (f *fakeEventRepo) ListEvents(_ context.Context, q repository.EventFilter) ([]model.Event, error) {
	out := []model.Event{}
	for _, e := range f.events {
		switch {
		case q.CreatorID != "" && e.CreatorID != q.CreatorID,
			q.Status != "" && e.Status != q.Status,
			q.StartFrom != nil && e.Start.Before(*q.StartFrom),
			q.StartTo != nil && e.Start.After(*q.StartTo):
			continue
		}
		out = append(out, *e)
	}
	slices.SortStableFunc(out, func(a, b model.Event) int { return a.Start.Compare(b.Start) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeEventRepo) CountEvents(ctx context.Context, q repository.EventFilter) (int, error) {
	events, err := f.ListEvents(ctx, q)
	return len(events), err
}

func (f *fakeEventRepo) UpdateEventOwned(_ context.Context, id, ownerID string, p repository.EventPatch) (*model.Event, error) {
	for _, e := range f.events {
		if e.ID != id || e.CreatorID != ownerID {
			continue
		}
		start, end := e.Start, e.End
		if p.Start != nil {
			start = *p.Start
		}
		if p.End != nil {
			end = *p.End
		}
		if end.Before(start) {
			return nil, repository.ErrNotMatched
		}
		e.Start, e.End = start, end
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.LocationType != nil {
			e.LocationType = *p.LocationType
		}
		if p.Location != nil {
			e.Location = *p.Location
		}
		if p.Status != nil {
			e.Status = *p.Status
		}
		if p.Participants != nil {
			e.Participants = *p.Participants
		}
		copied := *e
		return &copied, nil
	}
	return nil, repository.ErrNotMatched
}

func (f *fakeEventRepo) DeleteEventOwned(_ context.Context, id, ownerID string) error {
	for i, e := range f.events {
		if e.ID == id && e.CreatorID == ownerID {
			f.events = slices.Delete(f.events, i, i+1)
			return nil
		}
	}
	return repository.ErrNotMatched
}

func (f *fakeEventRepo) ListBusy(_ context.Context, userID, _ string, _ model.TimeWindow) ([]model.BusyInterval, error) {
	f.busyCalls = append(f.busyCalls, userID)
	out := []model.BusyInterval{}
	return append(out, f.busy[userID]...), nil
}

// ---- study sessions ----

type fakeSessionRepo struct {
	sessions []model.StudySession
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.StudySession) error {
	s.ID = fmt.Sprintf("session-%d", len(f.sessions)+1)
	f.sessions = append(f.sessions, *s)
	return nil
}

func (f *fakeSessionRepo) MinutesByDate(_ context.Context, userID, fromKey, toKey string) (map[string]int, error) {
	out := make(map[string]int)
	for _, s := range f.sessions {
		if s.UserID == userID && s.Date >= fromKey && s.Date <= toKey {
			out[s.Date] += s.Minutes
		}
	}
	return out, nil
}

// ---- google ----

type fakeOAuth struct {
	token    *oauth2.Token
	err      error
	gotCodes []string
}

func (f *fakeOAuth) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.gotCodes = append(f.gotCodes, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeCalendarAPI struct {
	busy     map[string][]model.BusyInterval // keyed by user ID
	failFor  map[string]bool
	events   []model.ExternalEvent
	listErr  error
	busyHits []string
}

func (f *fakeCalendarAPI) BusyIntervals(_ context.Context, acct calendar.Account, _ model.TimeWindow) ([]model.BusyInterval, error) {
	f.busyHits = append(f.busyHits, acct.UserID)
	if f.failFor[acct.UserID] {
		return nil, errors.New("googleapi: Error 503")
	}
	return f.busy[acct.UserID], nil
}

func (f *fakeCalendarAPI) ListEvents(_ context.Context, _ calendar.Account, _ model.TimeWindow) ([]model.ExternalEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

// Compile-time checks that the fakes satisfy the interfaces.
var (
	_ repository.UserRepository         = (*fakeUserRepo)(nil)
	_ repository.ContactRepository      = (*fakeContactRepo)(nil)
	_ repository.TaskRepository         = (*fakeTaskRepo)(nil)
	_ repository.EventRepository        = (*fakeEventRepo)(nil)
	_ repository.StudySessionRepository = (*fakeSessionRepo)(nil)
	_ OAuthProvider                     = (*fakeOAuth)(nil)
	_ CalendarAPI                       = (*fakeCalendarAPI)(nil)
)

// assertSentinel fails unless err wraps want.
func assertSentinel(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}
