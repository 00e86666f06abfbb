package model

import (
	"errors"
	"time"
)

// TimeWindow is the closed interval [Min, Max] used for availability queries.
type TimeWindow struct {
	Min time.Time `json:"timeMin"`
	Max time.Time `json:"timeMax"`
}

var (
	errWindowMissing  = errors.New("timeMin and timeMax are required")
	errWindowReversed = errors.New("timeMax must not be before timeMin")
)

// Validate rejects zero bounds and reversed windows.
func (w TimeWindow) Validate() error {
	if w.Min.IsZero() || w.Max.IsZero() {
		return errWindowMissing
	}
	if w.Max.Before(w.Min) {
		return errWindowReversed
	}
	return nil
}

// Overlaps applies the four-case interval test with inclusive bounds:
// the interval starts inside the window, ends inside it, or spans it.
// An interval lying wholly inside the window satisfies the first case.
func (w TimeWindow) Overlaps(start, end time.Time) bool {
	startsInside := !start.Before(w.Min) && !start.After(w.Max)
	endsInside := !end.Before(w.Min) && !end.After(w.Max)
	spans := !start.After(w.Min) && !end.Before(w.Max)
	return startsInside || endsInside || spans
}

// BusySource tells where a busy interval came from.
type BusySource string

const (
	BusyLocal  BusySource = "local"
	BusyGoogle BusySource = "google"
)

// BusyInterval is a transient range during which someone is unavailable.
type BusyInterval struct {
	Start  time.Time  `json:"start"`
	End    time.Time  `json:"end"`
	Source BusySource `json:"source"`
}

// ExternalEvent is an event read from Google Calendar, reshaped to match
// the app's own event payload.
type ExternalEvent struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	Location     string       `json:"location"`
	LocationType LocationType `json:"locationType"`
	Status       EventStatus  `json:"status"`
	Source       string       `json:"source"`
	Creator      string       `json:"creator"`
}
