// Package service holds the business rules of StudySync.
//
// Every service sits between the HTTP handlers and the repositories:
//
//	Handler (HTTP) → Service (rules, validation) → Repository (SQLite)
//
// Services never see an http.Request and never pick a status code. They
// return *apperror.AppError values and the handler package maps those.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/auth"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/repository"
)

const (
	MinUsernameLength = 2
	MinPasswordLength = 6
)

// AuthService handles registration, login, identity lookups and the
// user's contact list.
type AuthService struct {
	users     repository.UserRepository
	contacts  repository.ContactRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	contacts repository.ContactRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		contacts:  contacts,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT.
type AuthResult struct {
	User  *model.User
	Token string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an account and signs the new user in.
// A second registration with the same email (in any letter case) or the
// same username fails with a conflict and creates nothing.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var fields []apperror.FieldError
	if utf8.RuneCountInString(username) < MinUsernameLength {
		fields = append(fields, apperror.FieldError{Field: "username",
			Message: fmt.Sprintf("Username must be at least %d characters long", MinUsernameLength)})
	}
	if email == "" {
		fields = append(fields, apperror.FieldError{Field: "email", Message: "Please provide a valid email address"})
	}
	if len(in.Password) < MinPasswordLength {
		fields = append(fields, apperror.FieldError{Field: "password",
			Message: fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength)})
	}
	if len(fields) > 0 {
		return nil, apperror.ValidationErrors(fields...)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
		}
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		DailyGoalMinutes: model.DefaultDailyGoalMinutes,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration rejected: duplicate account", slog.String("email", email))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("email", email))
	return s.issue(user)
}

// Login checks email and password. An unknown email and a wrong password
// produce the same error so the response doesn't reveal which accounts
// exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid credentials")

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ResolveUser implements auth.UserResolver for the bearer-token middleware.
func (s *AuthService) ResolveUser(ctx context.Context, id string) (*model.User, error) {
	return s.GetUserByID(ctx, id)
}

// =========================================================================
// CONTACTS
// =========================================================================

type ContactInput struct {
	Name   string
	Email  string
	Avatar string
}

// AddContact stores a contact for the caller and returns the updated list.
func (s *AuthService) AddContact(ctx context.Context, callerID string, in ContactInput) ([]model.Contact, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if name == "" {
		return nil, apperror.ValidationFailed("name", "Contact name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Please provide a valid email address")
	}

	contact := &model.Contact{
		UserID: callerID,
		Name:   name,
		Email:  email,
		Avatar: strings.TrimSpace(in.Avatar),
	}
	if err := s.contacts.AddContact(ctx, contact); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: adding contact for user %s: %w", callerID, err)
	}

	s.logger.Info("contact added", slog.String("userID", callerID), slog.String("contactID", contact.ID))
	return s.ListContacts(ctx, callerID)
}

func (s *AuthService) ListContacts(ctx context.Context, callerID string) ([]model.Contact, error) {
	contacts, err := s.contacts.ListContacts(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing contacts for user %s: %w", callerID, err)
	}
	return contacts, nil
}
