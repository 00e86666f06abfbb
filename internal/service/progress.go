package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

// weekdayLabels is indexed by time.Weekday.
var weekdayLabels = [7]string{"SUN", "MON", "TUE", "WED", "THR", "FRI", "SAT"}

// DayProgress is one entry of the weekly chart.
type DayProgress struct {
	Day            string `json:"day"`
	Date           string `json:"date"`
	StudiedMinutes int    `json:"studiedMinutes"`
	GoalMinutes    int    `json:"goalMinutes"`
}

type WeeklyProgress struct {
	Weekly           []DayProgress `json:"weekly"`
	DailyGoalMinutes int           `json:"dailyGoalMinutes"`
}

// ProgressService tracks study sessions against the user's daily goal.
type ProgressService struct {
	users    repository.UserRepository
	sessions repository.StudySessionRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewProgressService(users repository.UserRepository, sessions repository.StudySessionRepository, logger *slog.Logger) *ProgressService {
	return &ProgressService{users: users, sessions: sessions, logger: logger, now: time.Now}
}

// SetDailyGoal stores the goal, raising anything below one minute to one,
// and returns the stored value.
func (s *ProgressService) SetDailyGoal(ctx context.Context, callerID string, minutes int) (int, error) {
	minutes = max(1, minutes)
	if err := s.users.SetDailyGoal(ctx, callerID, minutes); err != nil {
		return 0, fmt.Errorf("service/progress: setting goal for user %s: %w", callerID, err)
	}
	s.logger.Debug("daily goal set", slog.String("userID", callerID), slog.Int("minutes", minutes))
	return minutes, nil
}

// AddSession records a session dated with today's local date key.
func (s *ProgressService) AddSession(ctx context.Context, callerID string, minutes int) (*model.StudySession, error) {
	session := &model.StudySession{
		UserID:  callerID,
		Date:    model.DateKey(s.now()),
		Minutes: max(1, minutes),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/progress: saving session for user %s: %w", callerID, err)
	}
	return session, nil
}

// Weekly returns exactly seven entries, oldest first, ending today. Days
// without sessions report zero minutes.
func (s *ProgressService) Weekly(ctx context.Context, callerID string) (*WeeklyProgress, error) {
	user, err := s.users.GetUserByID(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("service/progress: loading user %s: %w", callerID, err)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	first := today.AddDate(0, 0, -6)

	minutes, err := s.sessions.MinutesByDate(ctx, callerID, model.DateKey(first), model.DateKey(today))
	if err != nil {
		return nil, fmt.Errorf("service/progress: summing sessions for user %s: %w", callerID, err)
	}

	out := &WeeklyProgress{
		Weekly:           make([]DayProgress, 0, 7),
		DailyGoalMinutes: user.DailyGoalMinutes,
	}
	for i := 0; i < 7; i++ {
		day := first.AddDate(0, 0, i)
		key := model.DateKey(day)
		out.Weekly = append(out.Weekly, DayProgress{
			Day:            weekdayLabels[day.Weekday()],
			Date:           key,
			StudiedMinutes: minutes[key],
			GoalMinutes:    user.DailyGoalMinutes,
		})
	}
	return out, nil
}
