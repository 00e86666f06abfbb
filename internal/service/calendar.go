package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/auth"
	"github.com/studysync/studysync-server/internal/calendar"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

// OAuthProvider builds consent URLs and exchanges authorization codes.
// auth.GoogleProvider implements it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// CalendarAPI reads a linked account's Google calendar.
// calendar.Client implements it.
type CalendarAPI interface {
	BusyIntervals(ctx context.Context, acct calendar.Account, window model.TimeWindow) ([]model.BusyInterval, error)
	ListEvents(ctx context.Context, acct calendar.Account, window model.TimeWindow) ([]model.ExternalEvent, error)
}

// CalendarService links accounts to Google Calendar and aggregates
// availability.
//
// UPSTREAM POLICY:
// Read paths (free/busy, event listing) degrade when Google fails: the
// failure is logged and the response carries whatever local data exists.
// The one write path, the code exchange, surfaces the failure as an
// upstream error, since a half-linked account would be worse than none.
type CalendarService struct {
	users  repository.UserRepository
	events repository.EventRepository
	oauth  OAuthProvider
	api    CalendarAPI
	tokens *auth.TokenService
	logger *slog.Logger
	now    func() time.Time
}

func NewCalendarService(
	users repository.UserRepository,
	events repository.EventRepository,
	oauth OAuthProvider,
	api CalendarAPI,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *CalendarService {
	return &CalendarService{
		users:  users,
		events: events,
		oauth:  oauth,
		api:    api,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// AuthURL returns the Google consent URL for the caller. The state
// parameter is a signed, short-lived token naming the caller, which is how
// the public callback knows whose account to link.
func (s *CalendarService) AuthURL(callerID string) (string, error) {
	state, err := s.tokens.GenerateState(callerID)
	if err != nil {
		return "", fmt.Errorf("service/calendar: signing state for user %s: %w", callerID, err)
	}
	return s.oauth.AuthURL(state), nil
}

// HandleCallback completes the consent flow and stores the credentials on
// the user named by state. It returns that user's ID.
func (s *CalendarService) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if code == "" {
		return "", apperror.ValidationFailed("code", "authorization code is required")
	}
	userID, err := s.tokens.ValidateState(state)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired state")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("service/calendar: loading user %s: %w", userID, err)
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("google code exchange failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return "", apperror.Upstream("google token exchange failed", err)
	}

	next := model.GoogleTokenFrom(tok)
	if next.RefreshToken == "" {
		s.logger.Warn("google returned no refresh token, keeping the stored one",
			slog.String("userID", userID),
			slog.Bool("hasStored", user.Google.RefreshToken != ""),
		)
		next.RefreshToken = user.Google.RefreshToken
	}

	if err := s.users.UpdateGoogleToken(ctx, userID, next); err != nil {
		return "", fmt.Errorf("service/calendar: storing google token for user %s: %w", userID, err)
	}

	s.logger.Info("google calendar linked", slog.String("userID", userID))
	return userID, nil
}

// FreeBusy aggregates busy intervals for the caller and the given
// participant emails over window.
//
// AGGREGATION ORDER:
//  1. The caller first, then participants in the order given.
//  2. Emails are compared case-insensitively; a repeat (including the
//     caller's own email) is skipped.
//  3. An email with no account maps to an empty list.
//  4. Each account gets its local intervals, then, if linked, one Google
//     free/busy query. A Google failure leaves only the local intervals.
//
// Accounts are processed one after another.
func (s *CalendarService) FreeBusy(ctx context.Context, caller *model.User, emails []string, window model.TimeWindow) (map[string][]model.BusyInterval, error) {
	if err := window.Validate(); err != nil {
		return nil, apperror.ValidationFailed("timeMin", err.Error())
	}

	result := make(map[string][]model.BusyInterval, len(emails)+1)
	seen := make(map[string]bool, len(emails)+1)

	queue := append([]string{caller.Email}, emails...)
	for i, raw := range queue {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		user := caller
		if i > 0 {
			u, err := s.users.GetByEmail(ctx, email)
			if errors.Is(err, apperror.ErrNotFound) {
				result[email] = []model.BusyInterval{}
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("service/calendar: resolving %s: %w", email, err)
			}
			user = u
		}

		busy, err := s.busyFor(ctx, user, window)
		if err != nil {
			return nil, err
		}
		result[email] = busy
	}

	return result, nil
}

func (s *CalendarService) busyFor(ctx context.Context, user *model.User, window model.TimeWindow) ([]model.BusyInterval, error) {
	busy, err := s.events.ListBusy(ctx, user.ID, user.Email, window)
	if err != nil {
		return nil, fmt.Errorf("service/calendar: local busy for user %s: %w", user.ID, err)
	}
	if !user.Google.Linked() {
		return busy, nil
	}

	external, err := s.api.BusyIntervals(ctx, calendar.Account{UserID: user.ID, Token: user.Google}, window)
	if err != nil {
		s.logger.Warn("google free/busy failed, using local intervals only",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		return busy, nil
	}
	return append(busy, external...), nil
}

// ListGoogleEvents returns the caller's Google events for the next seven
// days. An upstream failure yields an empty list.
func (s *CalendarService) ListGoogleEvents(ctx context.Context, caller *model.User) ([]model.ExternalEvent, error) {
	if !caller.Google.Linked() {
		return nil, apperror.Conflict("google calendar not connected")
	}

	now := s.now()
	window := model.TimeWindow{Min: now, Max: now.Add(upcomingWindow)}

	events, err := s.api.ListEvents(ctx, calendar.Account{UserID: caller.ID, Token: caller.Google}, window)
	if err != nil {
		s.logger.Warn("google event listing failed",
			slog.String("userID", caller.ID),
			slog.String("error", err.Error()),
		)
		return []model.ExternalEvent{}, nil
	}
	return events, nil
}
