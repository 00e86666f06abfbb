package handler

import (
	"log/slog"
	"net/http"

	"github.com/studysync/studysync-server/internal/service"
)

type StatsHandler struct {
	stats  *service.StatsService
	logger *slog.Logger
}

func NewStatsHandler(stats *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// HandleDashboard returns the caller's dashboard statistics.
//
// HTTP: GET /api/stats
func (h *StatsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	dashboard, err := h.stats.Dashboard(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
