package model

import "time"

// DateKeyLayout formats a local calendar day as used by StudySession.Date.
const DateKeyLayout = "2006-01-02"

// DateKey returns the "YYYY-MM-DD" key for t in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// StudySession records minutes studied on one local calendar day.
// Several sessions can share a date; the progress view sums them.
type StudySession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Date      string    `json:"date"`
	Minutes   int       `json:"minutes"`
	CreatedAt time.Time `json:"createdAt"`
}
