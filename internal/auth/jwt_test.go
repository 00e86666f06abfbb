package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService(t *testing.T) {
	if _, err := NewTokenService("short", time.Hour); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}

	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error: %v", err)
	}
	if ts.ttl != DefaultTokenTTL {
		t.Errorf("ttl = %v, want default %v", ts.ttl, DefaultTokenTTL)
	}
}

// =========================================================================
// ACCESS TOKEN TESTS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("token has %d dots, want 2", n)
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("Validate() userID = %q, want %q", got, "user-abc-123")
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Generate("user-123")

	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)
	foreign, _ := other.Generate("user-123")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"signed with a different key", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Fatal("Validate() should return an error")
			}
		})
	}
}

// =========================================================================
// OAUTH STATE TESTS
// =========================================================================

func TestState_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	state, err := ts.GenerateState("user-42")
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}

	got, err := ts.ValidateState(state)
	if err != nil {
		t.Fatalf("ValidateState() error = %v", err)
	}
	if got != "user-42" {
		t.Errorf("ValidateState() = %q, want %q", got, "user-42")
	}
}

func TestState_NotInterchangeableWithAccessToken(t *testing.T) {
	ts := newTestTokenService(t)

	state, _ := ts.GenerateState("user-42")
	if _, err := ts.Validate(state); err == nil {
		t.Error("Validate() accepted an OAuth state value as an access token")
	}

	access, _ := ts.Generate("user-42")
	if _, err := ts.ValidateState(access); err == nil {
		t.Error("ValidateState() accepted an access token as a state value")
	}
}
