// Package calendar talks to the Google Calendar API on behalf of linked
// StudySync accounts.
//
// PER-ACCOUNT CREDENTIALS:
// A Client is built once at startup. Every call takes an explicit Account
// (user ID plus stored token), builds a token source for that account
// alone, and wraps it so a refreshed access token is written back through
// the TokenStore hook before the API request that needed it goes out.
// Nothing is shared between accounts, so one user's refresh can never leak
// into another user's request.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/studysync/studysync-server/internal/model"
)

const (
	primaryCalendar = "primary"
	maxListResults  = 100
	untitledEvent   = "Untitled Event"
)

// TokenStore persists refreshed credentials. repository.UserRepository
// satisfies it.
type TokenStore interface {
	UpdateGoogleToken(ctx context.Context, userID string, token model.GoogleToken) error
}

// Account is the credential a single call runs under.
type Account struct {
	UserID string
	Token  model.GoogleToken
}

// ErrNotLinked is returned for an account without stored credentials.
var ErrNotLinked = errors.New("calendar: account is not linked to Google")

type Client struct {
	config   *oauth2.Config
	store    TokenStore
	logger   *slog.Logger
	endpoint string
}

// NewClient builds a Client. endpoint overrides the Calendar API base URL
// and is empty outside tests.
func NewClient(config *oauth2.Config, store TokenStore, logger *slog.Logger, endpoint string) *Client {
	return &Client{
		config:   config,
		store:    store,
		logger:   logger,
		endpoint: endpoint,
	}
}

// BusyIntervals runs one free/busy query against the account's primary
// calendar and returns its busy blocks inside window.
func (c *Client) BusyIntervals(ctx context.Context, acct Account, window model.TimeWindow) ([]model.BusyInterval, error) {
	svc, err := c.service(ctx, acct)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: window.Min.Format(time.RFC3339),
		TimeMax: window.Max.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: primaryCalendar}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query for user %s: %w", acct.UserID, err)
	}

	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return []model.BusyInterval{}, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("calendar: freebusy for user %s: %s", acct.UserID, cal.Errors[0].Reason)
	}

	busy := make([]model.BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: parsing busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: parsing busy end %q: %w", period.End, err)
		}
		busy = append(busy, model.BusyInterval{Start: start, End: end, Source: model.BusyGoogle})
	}
	return busy, nil
}

// ListEvents returns single (expanded) events from the account's primary
// calendar that fall inside window, ordered by start time.
func (c *Client) ListEvents(ctx context.Context, acct Account, window model.TimeWindow) ([]model.ExternalEvent, error) {
	svc, err := c.service(ctx, acct)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List(primaryCalendar).
		TimeMin(window.Min.Format(time.RFC3339)).
		TimeMax(window.Max.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxListResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: listing events for user %s: %w", acct.UserID, err)
	}

	events := make([]model.ExternalEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toExternalEvent(item, acct.UserID))
	}
	return events, nil
}

// service builds a Calendar API client bound to one account.
func (c *Client) service(ctx context.Context, acct Account) (*gcal.Service, error) {
	if !acct.Token.Linked() {
		return nil, ErrNotLinked
	}

	current := acct.Token.OAuth2()
	src := &persistingTokenSource{
		src:     c.config.TokenSource(ctx, current),
		current: current,
		persist: func(t *oauth2.Token) error {
			return c.store.UpdateGoogleToken(ctx, acct.UserID, mergeRefreshed(acct.Token, t))
		},
		logger: c.logger.With(slog.String("userID", acct.UserID)),
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: creating service: %w", err)
	}
	return svc, nil
}

// persistingTokenSource hands out tokens from src and, whenever the access
// token differs from the last one seen, stores it before returning.
//
// A failed write is logged, not returned: the refreshed token is still
// good for this request, and the next call will refresh again.
type persistingTokenSource struct {
	mu      sync.Mutex
	src     oauth2.TokenSource
	current *oauth2.Token
	persist func(*oauth2.Token) error
	logger  *slog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != s.current.AccessToken {
		s.current = t
		if err := s.persist(t); err != nil {
			s.logger.Warn("failed to persist refreshed google token", slog.String("error", err.Error()))
		} else {
			s.logger.Debug("persisted refreshed google token")
		}
	}
	return t, nil
}

// mergeRefreshed keeps the stored refresh token when the refresh response
// doesn't carry a new one, which is Google's usual behaviour.
func mergeRefreshed(stored model.GoogleToken, t *oauth2.Token) model.GoogleToken {
	next := model.GoogleTokenFrom(t)
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}
	return next
}

func toExternalEvent(item *gcal.Event, userID string) model.ExternalEvent {
	title := item.Summary
	if title == "" {
		title = untitledEvent
	}
	locType := model.LocationOnline
	if item.Location != "" {
		locType = model.LocationOffline
	}
	return model.ExternalEvent{
		ID:           item.Id,
		Title:        title,
		Description:  item.Description,
		Start:        eventTime(item.Start),
		End:          eventTime(item.End),
		Location:     item.Location,
		LocationType: locType,
		Status:       model.EventScheduled,
		Source:       "google",
		Creator:      userID,
	}
}

// eventTime reads a timed event's DateTime or an all-day event's Date.
// An unparseable value yields the zero time.
func eventTime(dt *gcal.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	}
	if dt.Date != "" {
		if t, err := time.Parse(model.DateKeyLayout, dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
