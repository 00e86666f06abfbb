// Package auth provides credentials for the StudySync API: JWT access tokens,
// bcrypt password hashing, the bearer-token middleware and the Google OAuth
// provider.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client POSTs /api/users/register or /api/users/login
//  2. Server verifies the password and issues a signed JWT
//  3. Client sends "Authorization: Bearer <jwt>" on every protected call
//  4. RequireAuth validates the JWT, resolves the user and stores both in
//     the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"userID","iss":"studysync","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "studysync"

	// DefaultTokenTTL matches the 30-day session the web client expects.
	DefaultTokenTTL = 30 * 24 * time.Hour

	// StateTTL bounds how long a Google consent screen may stay open.
	StateTTL = 10 * time.Minute

	purposeAccess = ""
	purposeState  = "oauth_state"
)

// ErrTokenExpired lets callers tell an expired token from a forged one.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and access
// token lifetime. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload.
//
// PURPOSE CLAIM:
// The same key signs two kinds of token: access tokens and OAuth state
// tokens. Purpose keeps them apart, so a leaked state value (it travels
// through Google's redirect in the query string) can never be replayed as
// a bearer token, and an access token can't stand in for a state.
type claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose,omitempty"`
}

// Generate signs an access token for userID with the configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, s.ttl, purposeAccess)
}

// GenerateWithDuration signs an access token with a custom lifetime.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(userID, d, purposeAccess)
}

// GenerateState signs the OAuth "state" value naming the user who started
// the Google consent flow.
func (s *TokenService) GenerateState(userID string) (string, error) {
	return s.sign(userID, StateTTL, purposeState)
}

// Validate verifies an access token and returns the userID in its subject.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	return s.parse(tokenStr, purposeAccess)
}

// ValidateState verifies a state value produced by GenerateState.
func (s *TokenService) ValidateState(state string) (string, error) {
	return s.parse(state, purposeState)
}

func (s *TokenService) sign(userID string, d time.Duration, purpose string) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Purpose: purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// parse runs the checks shared by both token kinds.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (a token signed with another key fails here)
//   - Token is not expired, and an expiry is present at all
//   - Issuer matches "studysync"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) parse(tokenStr, purpose string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Purpose != purpose {
		return "", fmt.Errorf("auth: token has wrong purpose %q", c.Purpose)
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
