package model

import "time"

type EventStatus string

const (
	EventDraft     EventStatus = "Draft"
	EventScheduled EventStatus = "Scheduled"
	EventCancelled EventStatus = "Cancelled"
	EventCompleted EventStatus = "Completed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventScheduled, EventCancelled, EventCompleted:
		return true
	}
	return false
}

type LocationType string

const (
	LocationOnline  LocationType = "online"
	LocationOffline LocationType = "offline"
)

func (l LocationType) Valid() bool {
	return l == LocationOnline || l == LocationOffline
}

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "Pending"
	ParticipantAccepted ParticipantStatus = "Accepted"
	ParticipantDeclined ParticipantStatus = "Declined"
)

func (s ParticipantStatus) Valid() bool {
	switch s {
	case ParticipantPending, ParticipantAccepted, ParticipantDeclined:
		return true
	}
	return false
}

// Participant references an invitee by email. UserID is filled in when the
// email belongs to a registered account.
type Participant struct {
	UserID string            `json:"userId,omitempty"`
	Name   string            `json:"name"`
	Email  string            `json:"email"`
	Avatar string            `json:"avatar,omitempty"`
	Status ParticipantStatus `json:"status"`
}

// Event is a calendar entry. Only the creator may change or delete it;
// participants are read-only references.
//
// Invariant: Start <= End. It is checked by the service on create and on
// every update, and again inside the conditional UPDATE statement.
type Event struct {
	ID           string        `json:"id"`
	CreatorID    string        `json:"creator"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	LocationType LocationType  `json:"locationType"`
	Location     string        `json:"location"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Participants []Participant `json:"participants"`
	Status       EventStatus   `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// OwnerID implements Owned.
func (e *Event) OwnerID() string { return e.CreatorID }
