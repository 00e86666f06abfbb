package service

import (
	"context"
	"testing"

	"github.com/studysync/studysync-server/internal/model"
)

func newTestProgressService() (*ProgressService, *fakeUserRepo, *fakeSessionRepo) {
	users := newFakeUserRepo()
	sessions := &fakeSessionRepo{}
	svc := NewProgressService(users, sessions, testLogger())
	svc.now = fixedClock()
	return svc, users, sessions
}

// =========================================================================
// GOAL AND SESSION TESTS
// =========================================================================

func TestSetDailyGoal_Clamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{90, 90},
		{1, 1},
		{0, 1},
		{-30, 1},
	}

	for _, tt := range tests {
		svc, users, _ := newTestProgressService()
		ann := users.add("ann", "ann@example.com")

		got, err := svc.SetDailyGoal(context.Background(), ann.ID, tt.in)
		if err != nil {
			t.Fatalf("SetDailyGoal(%d) error = %v", tt.in, err)
		}
		if got != tt.want || users.users[ann.ID].DailyGoalMinutes != tt.want {
			t.Errorf("SetDailyGoal(%d) = %d, stored %d; want %d", tt.in, got, users.users[ann.ID].DailyGoalMinutes, tt.want)
		}
	}
}

func TestAddSession_DatedTodayAndClamped(t *testing.T) {
	svc, _, sessions := newTestProgressService()

	s, err := svc.AddSession(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("AddSession() error = %v", err)
	}
	if s.Date != "2026-03-02" || s.Minutes != 1 {
		t.Errorf("session = %+v, want 2026-03-02 with 1 minute", s)
	}
	if len(sessions.sessions) != 1 {
		t.Errorf("stored sessions = %d, want 1", len(sessions.sessions))
	}
}

// =========================================================================
// WEEKLY TESTS
// =========================================================================

func TestWeekly(t *testing.T) {
	svc, users, sessions := newTestProgressService()
	ann := users.add("ann", "ann@example.com")
	ann.DailyGoalMinutes = 45

	sessions.sessions = []model.StudySession{
		{UserID: ann.ID, Date: "2026-03-02", Minutes: 30},
		{UserID: ann.ID, Date: "2026-03-02", Minutes: 15},
		{UserID: ann.ID, Date: "2026-02-24", Minutes: 20},
		{UserID: ann.ID, Date: "2026-02-23", Minutes: 99}, // eight days ago
		{UserID: "someone-else", Date: "2026-03-01", Minutes: 50},
	}

	got, err := svc.Weekly(context.Background(), ann.ID)
	if err != nil {
		t.Fatalf("Weekly() error = %v", err)
	}

	if len(got.Weekly) != 7 {
		t.Fatalf("len(Weekly) = %d, want 7", len(got.Weekly))
	}
	if got.DailyGoalMinutes != 45 {
		t.Errorf("DailyGoalMinutes = %d, want 45", got.DailyGoalMinutes)
	}

	wantDays := []string{"TUE", "WED", "THR", "FRI", "SAT", "SUN", "MON"}
	wantMinutes := []int{20, 0, 0, 0, 0, 0, 45}
	for i, entry := range got.Weekly {
		if entry.Day != wantDays[i] || entry.StudiedMinutes != wantMinutes[i] || entry.GoalMinutes != 45 {
			t.Errorf("Weekly[%d] = %+v, want %s with %d minutes", i, entry, wantDays[i], wantMinutes[i])
		}
	}
	if got.Weekly[6].Date != "2026-03-02" {
		t.Errorf("last entry date = %q, want today", got.Weekly[6].Date)
	}
}

func TestWeekly_UnknownUser(t *testing.T) {
	svc, _, _ := newTestProgressService()
	if _, err := svc.Weekly(context.Background(), "ghost"); err == nil {
		t.Fatal("Weekly() error = nil, want not found")
	}
}
