package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysync/studysync-server/internal/apperror"
)

func TestCallbackReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing code", apperror.ValidationFailed("code", "authorization code is required"), "missing_code"},
		{"bad state", apperror.Unauthorized("invalid or expired state"), "invalid_state"},
		{"user gone", apperror.NotFound("User", "u1"), "user_not_found"},
		{"exchange failed", apperror.Upstream("google token exchange failed", errors.New("500")), "oauth_failed"},
		{"anything else", errors.New("boom"), "oauth_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callbackReason(tt.err))
		})
	}
}

func TestHandleCallback_ConsentDenied(t *testing.T) {
	// The denial is handled before the service is consulted.
	h := NewCalendarHandler(nil, "http://localhost:5173/CalendarSync?tab=sync", testLogger())

	rr := httptest.NewRecorder()
	h.HandleCallback(rr, httptest.NewRequest(http.MethodGet, "/api/google-calendar/auth/callback?error=access_denied", nil))

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/CalendarSync", loc.Path)
	assert.Equal(t, "access_denied", loc.Query().Get("error"))
	assert.Equal(t, "sync", loc.Query().Get("tab"))
}
