package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/service"
)

// CalendarHandler serves the Google Calendar integration.
//
// OAUTH FLOW:
//  1. GET /api/google-calendar/auth-url (bearer) → {"url": consent URL}
//     The URL carries a signed state naming the caller.
//  2. The browser visits Google and consents.
//  3. Google redirects to GET /api/google-calendar/auth/callback?code&state.
//     This route is public: the signed state, not a bearer header,
//     identifies the user. It always ends in a redirect back to the web
//     client, with ?googleConnected=true or ?error=<reason>.
type CalendarHandler struct {
	calendar    *service.CalendarService
	frontendURL string
	logger      *slog.Logger
}

func NewCalendarHandler(calendar *service.CalendarService, frontendURL string, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, frontendURL: frontendURL, logger: logger}
}

// HandleAuthURL returns the consent URL for the caller.
//
// HTTP: GET /api/google-calendar/auth-url
func (h *CalendarHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	authURL, err := h.calendar.AuthURL(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

// HandleCallback completes the consent flow.
//
// HTTP: GET /api/google-calendar/auth/callback?code=xxx&state=yyy
func (h *CalendarHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("google consent denied", slog.String("error", denied))
		h.redirect(w, r, "error", "access_denied")
		return
	}

	userID, err := h.calendar.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.logger.Warn("google callback failed", slog.String("error", err.Error()))
		h.redirect(w, r, "error", callbackReason(err))
		return
	}

	h.logger.Info("google callback completed", slog.String("userID", userID))
	h.redirect(w, r, "googleConnected", "true")
}

func (h *CalendarHandler) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.frontendURL)
	if err != nil {
		writeError(w, err)
		return
	}
	params := target.Query()
	params.Set(key, value)
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func callbackReason(err error) string {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return "missing_code"
	case errors.Is(err, apperror.ErrUnauthorized):
		return "invalid_state"
	case errors.Is(err, apperror.ErrNotFound):
		return "user_not_found"
	}
	return "oauth_failed"
}

type freeBusyRequest struct {
	Emails  []string `json:"emails" validate:"dive,required,email"`
	TimeMin jsonTime `json:"timeMin" validate:"required"`
	TimeMax jsonTime `json:"timeMax" validate:"required"`
}

type busyList struct {
	Busy []model.BusyInterval `json:"busy"`
}

type freeBusyResponse struct {
	TimeMin   time.Time           `json:"timeMin"`
	TimeMax   time.Time           `json:"timeMax"`
	Calendars map[string]busyList `json:"calendars"`
}

// HandleFreeBusy aggregates busy intervals for the caller and the listed
// participants.
//
// HTTP: POST /api/google-calendar/freebusy
// REQUEST BODY: {"emails": ["bob@example.com"], "timeMin": "...", "timeMax": "..."}
// RESPONSE:
//
//	{"timeMin": "...", "timeMax": "...",
//	 "calendars": {"ann@example.com": {"busy": [{"start", "end", "source"}]}, ...}}
func (h *CalendarHandler) HandleFreeBusy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req freeBusyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	window := model.TimeWindow{Min: req.TimeMin.Time, Max: req.TimeMax.Time}
	busy, err := h.calendar.FreeBusy(r.Context(), user, req.Emails, window)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := freeBusyResponse{
		TimeMin:   window.Min,
		TimeMax:   window.Max,
		Calendars: make(map[string]busyList, len(busy)),
	}
	for email, intervals := range busy {
		resp.Calendars[email] = busyList{Busy: intervals}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListEvents returns the caller's Google events for the next week.
//
// HTTP: GET /api/google-calendar/events
// RESPONSE: 409 when the account isn't linked
func (h *CalendarHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	events, err := h.calendar.ListGoogleEvents(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
