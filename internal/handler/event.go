package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/service"
)

type EventHandler struct {
	events *service.EventService
	logger *slog.Logger
}

func NewEventHandler(events *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type participantRequest struct {
	Name   string                  `json:"name"`
	Email  string                  `json:"email"`
	Avatar string                  `json:"avatar"`
	Status model.ParticipantStatus `json:"status"`
}

// eventRequest is shared by create and update. On update, absent fields
// are left unchanged and a present participants array replaces the list.
type eventRequest struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	LocationType *model.LocationType  `json:"locationType"`
	Location     *string              `json:"location"`
	Start        *jsonTime            `json:"start"`
	End          *jsonTime            `json:"end"`
	Participants []participantRequest `json:"participants"`
	Status       *model.EventStatus   `json:"status"`
}

func (req eventRequest) participants() []model.Participant {
	if req.Participants == nil {
		return nil
	}
	out := make([]model.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		out = append(out, model.Participant{Name: p.Name, Email: p.Email, Avatar: p.Avatar, Status: p.Status})
	}
	return out
}

// HandleList returns the events the caller created, by start time.
//
// HTTP: GET /api/events
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	events, err := h.events.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleCreate creates an event with the caller as creator.
//
// HTTP: POST /api/events
// REQUEST BODY:
//
//	{"title": "Study group", "start": "2026-03-02T09:00:00Z", "end": "2026-03-02T10:00:00Z",
//	 "participants": [{"name": "Bob", "email": "bob@example.com"}]}
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := service.EventInput{Participants: req.participants()}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.LocationType != nil {
		in.LocationType = *req.LocationType
	}
	if req.Location != nil {
		in.Location = *req.Location
	}
	if req.Start != nil {
		in.Start = req.Start.Time
	}
	if req.End != nil {
		in.End = req.End.Time
	}
	if req.Status != nil {
		in.Status = *req.Status
	}

	event, err := h.events.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// HandleUpdate applies a partial update. Moving either end so that the
// event would end before it starts is a 400 and leaves it unchanged.
//
// HTTP: PUT /api/events/{id}
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	update := service.EventUpdate{
		Title:        req.Title,
		Description:  req.Description,
		LocationType: req.LocationType,
		Location:     req.Location,
		Start:        timePtr(req.Start),
		End:          timePtr(req.End),
		Status:       req.Status,
	}
	if ps := req.participants(); ps != nil {
		update.Participants = &ps
	}

	event, err := h.events.Update(r.Context(), userID, chi.URLParam(r, "id"), update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HandleDelete removes an event and its participant list.
//
// HTTP: DELETE /api/events/{id}
// RESPONSE: 200 {"id": "...", "message": "Event removed"}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.events.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("event deleted", slog.String("eventID", id), slog.String("userID", userID))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": "Event removed"})
}
