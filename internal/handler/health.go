// Package handler contains the HTTP handlers of the StudySync API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, JSON body)
//  2. Call the service layer
//  3. Write the response through writeJSON / writeError
//
// Handlers hold no business rules. They are the glue between HTTP and the
// services.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
// repository/sqlite.DB implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HandleHealth reports liveness and database reachability.
//
// HTTP: GET /healthz
// RESPONSE: 200 {"status": "ok"} or 503 {"status": "unavailable"}
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
