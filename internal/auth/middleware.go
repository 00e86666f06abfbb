package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/studysync/studysync-server/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// values this package stores in a request context.
type contextKey string

const (
	userIDKey contextKey = "userID"
	userKey   contextKey = "user"
)

// UserResolver loads the account a token names. It's satisfied by
// service.AuthService; the interface lives here so auth doesn't import the
// service layer.
type UserResolver interface {
	ResolveUser(ctx context.Context, id string) (*model.User, error)
}

var errNoBearer = errors.New("auth: missing bearer token")

// RequireAuth rejects the request with 401 unless it carries a valid
// "Authorization: Bearer <jwt>" header naming an existing user.
//
// Rejected: absent or malformed header, a token that fails signature,
// issuer or expiry checks, and a token whose user has since disappeared.
// On success both the user ID and the resolved *model.User are put in the
// request context.
func RequireAuth(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, err := bearerToken(r)
			if err != nil {
				unauthorized(w, "no token provided")
				return
			}

			userID, err := tokens.Validate(tokenStr)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					unauthorized(w, "token expired")
					return
				}
				unauthorized(w, "invalid token")
				return
			}

			user, err := users.ResolveUser(r.Context(), userID)
			if err != nil || user == nil {
				unauthorized(w, "user not found")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, user.ID)
			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user's ID.
// ("", false) means RequireAuth did not run for this request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// UserFromContext returns the user resolved by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// WithUser stores user in ctx the same way RequireAuth does. Handler tests
// use it to skip token plumbing.
func WithUser(ctx context.Context, user *model.User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, user.ID)
	return context.WithValue(ctx, userKey, user)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNoBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNoBearer
	}
	return token, nil
}

// unauthorized writes the same JSON error shape the handler package uses.
// It is written by hand because auth must not import handler.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
