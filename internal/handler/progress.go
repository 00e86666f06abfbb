package handler

import (
	"log/slog"
	"net/http"

	"github.com/studysync/studysync-server/internal/service"
)

// ProgressHandler serves the study goal, session logging and the weekly
// chart.
type ProgressHandler struct {
	progress *service.ProgressService
	logger   *slog.Logger
}

func NewProgressHandler(progress *service.ProgressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, logger: logger}
}

// minutesRequest is the body of both POST endpoints. Values below one are
// raised to one by the service, so only presence is checked here.
type minutesRequest struct {
	Minutes *int `json:"minutes" validate:"required"`
}

// HandleSetGoal stores the caller's daily goal.
//
// HTTP: POST /api/progress/goal
// REQUEST BODY: {"minutes": 90}
// RESPONSE: {"dailyGoalMinutes": 90}
func (h *ProgressHandler) HandleSetGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req minutesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	minutes, err := h.progress.SetDailyGoal(r.Context(), userID, *req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"dailyGoalMinutes": minutes})
}

// HandleAddSession logs a study session for today.
//
// HTTP: POST /api/progress/session
// REQUEST BODY: {"minutes": 25}
func (h *ProgressHandler) HandleAddSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req minutesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.progress.AddSession(r.Context(), userID, *req.Minutes)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("study session saved",
		slog.String("userID", userID),
		slog.String("date", session.Date),
		slog.Int("minutes", session.Minutes),
	)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Session saved", "session": session})
}

// HandleWeekly returns seven days of studied minutes against the goal.
//
// HTTP: GET /api/progress/weekly
// RESPONSE: {"weekly": [{"day": "MON", "studiedMinutes": 30, "goalMinutes": 60}, ...], "dailyGoalMinutes": 60}
func (h *ProgressHandler) HandleWeekly(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	weekly, err := h.progress.Weekly(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}
