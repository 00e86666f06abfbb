package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

var errEndBeforeStart = apperror.ValidationFailed("end", "end must not be before start")

type EventService struct {
	repo   repository.EventRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewEventService(repo repository.EventRepository, users repository.UserRepository, logger *slog.Logger) *EventService {
	return &EventService{repo: repo, users: users, logger: logger}
}

type EventInput struct {
	Title        string
	Description  string
	LocationType model.LocationType
	Location     string
	Start        time.Time
	End          time.Time
	Participants []model.Participant
	Status       model.EventStatus
}

// EventUpdate is a partial update. A non-nil Participants replaces the
// whole list.
type EventUpdate struct {
	Title        *string
	Description  *string
	LocationType *model.LocationType
	Location     *string
	Start        *time.Time
	End          *time.Time
	Participants *[]model.Participant
	Status       *model.EventStatus
}

// List returns the events the caller created, ordered by start.
func (s *EventService) List(ctx context.Context, callerID string) ([]model.Event, error) {
	events, err := s.repo.ListEvents(ctx, repository.EventFilter{CreatorID: callerID})
	if err != nil {
		return nil, fmt.Errorf("service/event: listing events for user %s: %w", callerID, err)
	}
	return events, nil
}

func (s *EventService) Create(ctx context.Context, callerID string, in EventInput) (*model.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "Event title is required")
	}
	if in.Start.IsZero() {
		return nil, apperror.ValidationFailed("start", "start is required")
	}
	if in.End.IsZero() {
		return nil, apperror.ValidationFailed("end", "end is required")
	}
	if in.End.Before(in.Start) {
		return nil, errEndBeforeStart
	}

	event := &model.Event{
		CreatorID:    callerID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		LocationType: in.LocationType,
		Location:     strings.TrimSpace(in.Location),
		Start:        in.Start,
		End:          in.End,
		Status:       in.Status,
	}
	if event.LocationType == "" {
		event.LocationType = model.LocationOnline
	}
	if event.Status == "" {
		event.Status = model.EventDraft
	}
	if err := validateEventEnums(&event.LocationType, &event.Status); err != nil {
		return nil, err
	}

	participants, err := s.normalizeParticipants(ctx, in.Participants)
	if err != nil {
		return nil, err
	}
	event.Participants = participants

	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("service/event: creating event for user %s: %w", callerID, err)
	}

	s.logger.Debug("event created",
		slog.String("eventID", event.ID),
		slog.String("userID", callerID),
		slog.Int("participants", len(event.Participants)),
	)
	return event, nil
}

// Update applies a partial update to an event the caller created.
//
// DATE ORDER ON PARTIAL UPDATES:
// A patch may move only one end of the event. When both ends are in the
// patch they are compared here; otherwise the comparison against the
// stored value happens inside the repository's conditional UPDATE, so a
// concurrent edit can't slip an inverted range past us. A miss where the
// caller does own the row means that guard failed.
func (s *EventService) Update(ctx context.Context, callerID, id string, in EventUpdate) (*model.Event, error) {
	patch := repository.EventPatch{
		LocationType: in.LocationType,
		Start:        in.Start,
		End:          in.End,
		Status:       in.Status,
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "Event title is required")
		}
		patch.Title = &title
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		patch.Description = &desc
	}
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		patch.Location = &loc
	}
	if in.Start != nil && in.End != nil && in.End.Before(*in.Start) {
		return nil, errEndBeforeStart
	}
	if err := validateEventEnums(in.LocationType, in.Status); err != nil {
		return nil, err
	}
	if in.Participants != nil {
		participants, err := s.normalizeParticipants(ctx, *in.Participants)
		if err != nil {
			return nil, err
		}
		patch.Participants = &participants
	}

	event, err := s.repo.UpdateEventOwned(ctx, id, callerID, patch)
	if errors.Is(err, repository.ErrNotMatched) {
		if err := explainMiss(ctx, id, callerID, s.repo.GetEventByID); err != nil {
			s.logMiss(err, id, callerID)
			return nil, err
		}
		return nil, errEndBeforeStart
	}
	if err != nil {
		return nil, fmt.Errorf("service/event: updating event %s: %w", id, err)
	}
	return event, nil
}

func (s *EventService) Delete(ctx context.Context, callerID, id string) error {
	err := s.repo.DeleteEventOwned(ctx, id, callerID)
	if errors.Is(err, repository.ErrNotMatched) {
		if err := explainMiss(ctx, id, callerID, s.repo.GetEventByID); err != nil {
			s.logMiss(err, id, callerID)
			return err
		}
		return apperror.NotFound("Event", id)
	}
	if err != nil {
		return fmt.Errorf("service/event: deleting event %s: %w", id, err)
	}
	s.logger.Debug("event deleted", slog.String("eventID", id), slog.String("userID", callerID))
	return nil
}

func (s *EventService) logMiss(err error, id, callerID string) {
	if errors.Is(err, apperror.ErrForbidden) {
		s.logger.Warn("event ownership check failed", slog.String("eventID", id), slog.String("userID", callerID))
	}
}

// normalizeParticipants validates each entry, lower-cases emails, defaults
// the status to Pending and links entries to registered accounts.
func (s *EventService) normalizeParticipants(ctx context.Context, in []model.Participant) ([]model.Participant, error) {
	out := make([]model.Participant, 0, len(in))
	var fields []apperror.FieldError

	for i, p := range in {
		field := fmt.Sprintf("participants[%d]", i)
		email := strings.ToLower(strings.TrimSpace(p.Email))
		if _, err := mail.ParseAddress(email); err != nil || email == "" {
			fields = append(fields, apperror.FieldError{Field: field + ".email", Message: "Please provide a valid email address"})
			continue
		}
		if p.Status == "" {
			p.Status = model.ParticipantPending
		}
		if !p.Status.Valid() {
			fields = append(fields, apperror.FieldError{Field: field + ".status",
				Message: "Participant status must be one of Pending, Accepted, Declined"})
			continue
		}

		p.Email = email
		p.Name = strings.TrimSpace(p.Name)
		if p.UserID == "" {
			user, err := s.users.GetByEmail(ctx, email)
			switch {
			case err == nil:
				p.UserID = user.ID
			case !errors.Is(err, apperror.ErrNotFound):
				return nil, fmt.Errorf("service/event: resolving participant %s: %w", email, err)
			}
		}
		out = append(out, p)
	}

	if len(fields) > 0 {
		return nil, apperror.ValidationErrors(fields...)
	}
	return out, nil
}

func validateEventEnums(locType *model.LocationType, status *model.EventStatus) error {
	var fields []apperror.FieldError
	if locType != nil && !locType.Valid() {
		fields = append(fields, apperror.FieldError{Field: "locationType",
			Message: "Location type must be online or offline"})
	}
	if status != nil && !status.Valid() {
		fields = append(fields, apperror.FieldError{Field: "status",
			Message: "Status must be one of Draft, Scheduled, Cancelled, Completed"})
	}
	if len(fields) > 0 {
		return apperror.ValidationErrors(fields...)
	}
	return nil
}
