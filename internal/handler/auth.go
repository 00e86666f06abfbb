package handler

import (
	"log/slog"
	"net/http"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/auth"
	"github.com/studysync/studysync-server/internal/model"
	"github.com/studysync/studysync-server/internal/service"
)

// AuthHandler serves account registration, login, the current user's
// profile and their contact list.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and return a bearer token
//   - HandleLogin    → check credentials and return a bearer token
//   - HandleMe       → return the authenticated user's profile
//   - HandleListContacts / HandleAddContact → the user's address book
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// authResponse is what register and login return. The token goes in the
// Authorization header of later requests: "Bearer <token>".
type authResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

func newAuthResponse(r *service.AuthResult) authResponse {
	return authResponse{
		ID:       r.User.ID,
		Username: r.User.Username,
		Email:    r.User.Email,
		Token:    r.Token,
	}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/register
// REQUEST BODY: {"username": "ann", "email": "ann@example.com", "password": "secret1"}
// RESPONSE: 201 {"id": "...", "username": "ann", "email": "...", "token": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAuthResponse(result))
}

// HandleLogin exchanges email and password for a bearer token.
//
// HTTP: POST /api/users/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAuthResponse(result))
}

type meResponse struct {
	*model.User
	GoogleConnected bool `json:"googleConnected"`
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/users/me
// Auth: required. RequireAuth has already resolved the user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, GoogleConnected: user.GoogleConnected()})
}

type contactRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

// HandleListContacts returns the caller's contacts.
//
// HTTP: GET /api/users/contacts
func (h *AuthHandler) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contacts, err := h.auth.ListContacts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleAddContact adds a contact and returns the full list.
//
// HTTP: POST /api/users/contacts
// RESPONSE: 201 with the updated contact list
func (h *AuthHandler) HandleAddContact(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	contacts, err := h.auth.AddContact(r.Context(), userID, service.ContactInput{
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contacts)
}

// currentUserID reads the caller set by auth.RequireAuth. On a protected
// route it's always present; the 401 only guards against wiring mistakes.
func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not authorized"))
	}
	return id, ok
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not authorized"))
	}
	return user, ok
}
