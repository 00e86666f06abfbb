package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// calendarFreeBusyScope lets the app read free/busy blocks without seeing
// event details.
const calendarFreeBusyScope = "https://www.googleapis.com/auth/calendar.freebusy"

// GoogleProvider wraps golang.org/x/oauth2 for the Google Authorization
// Code flow used to link a StudySync account to Google Calendar.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The client asks /api/google-calendar/auth-url for a consent URL
//  2. The user approves on Google's consent screen
//  3. Google redirects to the callback with a short-lived "code"
//  4. The server exchanges the code for access + refresh tokens
//  5. Later calendar calls refresh the access token from the refresh token
//
// OFFLINE ACCESS + CONSENT PROMPT:
// Google only returns a refresh token when access_type=offline, and only on
// the first consent unless prompt=consent forces the screen again. Without
// a refresh token the link dies when the first access token expires.
type GoogleProvider struct {
	config *oauth2.Config
}

// NewGoogleProvider creates a GoogleProvider for the given OAuth client.
// redirectURL must match the one registered in the Google Cloud console.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarReadonlyScope, calendarFreeBusyScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// Config exposes the OAuth2 config. The calendar client uses it to build
// refreshing token sources.
func (p *GoogleProvider) Config() *oauth2.Config {
	return p.config
}

// AuthURL returns the consent-screen URL. state is echoed back to the
// callback untouched.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token. The returned token
// may lack a RefreshToken when Google decides not to issue a new one.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google OAuth code: %w", err)
	}
	return tok, nil
}
