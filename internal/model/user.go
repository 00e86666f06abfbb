// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"golang.org/x/oauth2"
)

// DefaultDailyGoalMinutes is the study goal given to new accounts.
const DefaultDailyGoalMinutes = 60

// User represents a registered StudySync account.
//
// Email is stored lower-cased so lookups by participant email (free/busy)
// are case-insensitive without a special collation.
//
// WHY PasswordHash HAS json:"-"?
// The User struct is returned directly from /api/users/me. The tag keeps the
// bcrypt hash out of every JSON response, no matter which handler encodes it.
type User struct {
	ID               string      `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	PasswordHash     string      `json:"-"`
	DailyGoalMinutes int         `json:"dailyGoalMinutes"`
	Google           GoogleToken `json:"-"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// GoogleConnected reports whether the account has linked Google Calendar.
func (u *User) GoogleConnected() bool {
	return u.Google.Linked()
}

// GoogleToken is the OAuth credential triple persisted on the user record.
type GoogleToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Linked is true once either credential has been stored.
func (g GoogleToken) Linked() bool {
	return g.AccessToken != "" || g.RefreshToken != ""
}

// OAuth2 converts the stored triple into the shape x/oauth2 works with.
func (g GoogleToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		Expiry:       g.Expiry,
		TokenType:    "Bearer",
	}
}

// GoogleTokenFrom copies the persisted fields out of an oauth2 token.
func GoogleTokenFrom(t *oauth2.Token) GoogleToken {
	if t == nil {
		return GoogleToken{}
	}
	return GoogleToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
}

// Contact is an entry in a user's address book.
// A user can't hold two contacts with the same email.
type Contact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}
