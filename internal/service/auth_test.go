package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/auth"
)

// newTestAuthService returns an AuthService wired with fake dependencies.
func newTestAuthService(t *testing.T, users *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens := newTestTokens(t)
	// Cost 4 is the bcrypt minimum; it keeps the tests fast.
	return NewAuthService(users, &fakeContactRepo{}, tokens, auth.NewPasswordService(4), testLogger()), tokens
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	users := newFakeUserRepo()
	svc, tokens := newTestAuthService(t, users)

	result, err := svc.Register(context.Background(), RegisterInput{
		Username: "  ann  ",
		Email:    "Ann@Example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == "" || result.Token == "" {
		t.Fatalf("Register() = %+v, want user ID and token", result)
	}
	if result.User.Username != "ann" || result.User.Email != "ann@example.com" {
		t.Errorf("user = %q <%s>, want trimmed username and lower-cased email", result.User.Username, result.User.Email)
	}
	if result.User.PasswordHash == "" || result.User.PasswordHash == "secret123" {
		t.Error("password was not hashed")
	}
	if result.User.DailyGoalMinutes != 60 {
		t.Errorf("DailyGoalMinutes = %d, want 60", result.User.DailyGoalMinutes)
	}

	id, err := tokens.Validate(result.Token)
	if err != nil || id != result.User.ID {
		t.Errorf("token validates to %q (err %v), want %q", id, err, result.User.ID)
	}
}

func TestRegister_DuplicateEmailAnyCase(t *testing.T) {
	users := newFakeUserRepo()
	svc, _ := newTestAuthService(t, users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "ann", Email: "ann@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Username: "ann2", Email: "ANN@example.com", Password: "secret123"})
	assertSentinel(t, err, apperror.ErrConflict)

	if len(users.users) != 1 {
		t.Errorf("users stored = %d, want 1", len(users.users))
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		in        RegisterInput
		wantField string
	}{
		{"short username", RegisterInput{Username: "a", Email: "a@b.co", Password: "secret123"}, "username"},
		{"blank email", RegisterInput{Username: "ann", Email: "  ", Password: "secret123"}, "email"},
		{"short password", RegisterInput{Username: "ann", Email: "a@b.co", Password: "12345"}, "password"},
		{"long password", RegisterInput{Username: "ann", Email: "a@b.co", Password: strings.Repeat("x", 73)}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t, newFakeUserRepo())
			_, err := svc.Register(context.Background(), tt.in)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("error = %v, want validation error", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestRegister_RepositoryError(t *testing.T) {
	users := newFakeUserRepo()
	users.createErr = errDBDown
	svc, _ := newTestAuthService(t, users)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "ann", Email: "a@b.co", Password: "secret123"})
	if !errors.Is(err, errDBDown) {
		t.Fatalf("error = %v, want wrapped database error", err)
	}
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin(t *testing.T) {
	users := newFakeUserRepo()
	svc, _ := newTestAuthService(t, users)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Username: "ann", Email: "ann@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("correct credentials", func(t *testing.T) {
		result, err := svc.Login(ctx, "ann@example.com", "secret123")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if result.User.ID != registered.User.ID || result.Token == "" {
			t.Errorf("Login() = %+v", result)
		}
	})

	for _, tc := range []struct{ name, email, password string }{
		{"wrong password", "ann@example.com", "nope-nope"},
		{"unknown email", "bob@example.com", "secret123"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.email, tc.password)
			assertSentinel(t, err, apperror.ErrUnauthorized)
			if err.Error() != "invalid credentials" {
				t.Errorf("message = %q, want the same message for every failure", err.Error())
			}
		})
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	users := newFakeUserRepo()
	ann := users.add("ann", "ann@example.com")
	svc, _ := newTestAuthService(t, users)
	ctx := context.Background()

	got, err := svc.ResolveUser(ctx, ann.ID)
	if err != nil || got.ID != ann.ID {
		t.Fatalf("ResolveUser() = %v, %v", got, err)
	}

	_, err = svc.GetUserByID(ctx, "")
	assertSentinel(t, err, apperror.ErrValidation)

	_, err = svc.GetUserByID(ctx, "missing")
	assertSentinel(t, err, apperror.ErrNotFound)
}

// =========================================================================
// CONTACT TESTS
// =========================================================================

func TestAddContact(t *testing.T) {
	users := newFakeUserRepo()
	ann := users.add("ann", "ann@example.com")
	svc, _ := newTestAuthService(t, users)
	ctx := context.Background()

	list, err := svc.AddContact(ctx, ann.ID, ContactInput{Name: " Bob ", Email: "Bob@Example.com"})
	if err != nil {
		t.Fatalf("AddContact() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "Bob" || list[0].Email != "bob@example.com" {
		t.Fatalf("AddContact() = %+v", list)
	}

	_, err = svc.AddContact(ctx, ann.ID, ContactInput{Name: "Bobby", Email: "bob@example.com"})
	assertSentinel(t, err, apperror.ErrConflict)

	_, err = svc.AddContact(ctx, ann.ID, ContactInput{Email: "cat@example.com"})
	assertSentinel(t, err, apperror.ErrValidation)

	others, err := svc.ListContacts(ctx, "someone-else")
	if err != nil || len(others) != 0 {
		t.Errorf("ListContacts(other) = %v, %v; want empty", others, err)
	}
}
