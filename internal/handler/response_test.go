package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysync/studysync-server/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("title", "Task title is required"), http.StatusBadRequest, "validation_error", "Task title is required"},
		{"unauthorized", apperror.Unauthorized("invalid credentials"), http.StatusUnauthorized, "unauthorized", "invalid credentials"},
		{"forbidden", apperror.Forbidden("not authorized to modify this resource"), http.StatusForbidden, "forbidden", "not authorized to modify this resource"},
		{"not found", apperror.NotFound("Task", "abc"), http.StatusNotFound, "not_found", "Task not found with id abc"},
		{"conflict", apperror.Conflict("email already registered"), http.StatusConflict, "conflict", "email already registered"},
		{"upstream", apperror.Upstream("google token exchange failed", errors.New("timeout")), http.StatusBadGateway, "upstream_error", "google token exchange failed"},
		{"wrapped", fmt.Errorf("service/task: %w", apperror.NotFound("Task", "x")), http.StatusNotFound, "not_found", "Task not found with id x"},
		{"unknown", errors.New("database is locked"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestWriteError_IncludesFieldList(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.ValidationErrors(
		apperror.FieldError{Field: "email", Message: "Please provide a valid email address"},
		apperror.FieldError{Field: "password", Message: "password is required"},
	))

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Message)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "email", resp.Errors[0].Field)
	assert.Equal(t, "password", resp.Errors[1].Field)
}

func TestWriteError_OmitsEmptyFieldList(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.NotFound("Event", "e1"))

	assert.NotContains(t, rr.Body.String(), `"errors"`)
}
