package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/studysync/studysync-server/internal/apperror"
	"github.com/studysync/studysync-server/internal/model"
)

const maxBodyBytes = 1 << 20

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every handler.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names ("dueDate"), not Go names ("DueDate").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and runs the struct's validate
// tags. Every failure comes back as an apperror validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("%s has the wrong type", typeErr.Field))
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("handler: validating request: %w", err)
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return apperror.ValidationErrors(fields...)
}

// fieldPath drops the top-level struct name: "createTaskRequest.title"
// becomes "title", "eventRequest.participants[0].email" keeps its index.
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "email":
		return "Please provide a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, strings.ReplaceAll(fe.Param(), "'", ""))
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", name, lowerFirst(fe.Param()))
	}
	return fmt.Sprintf("%s is invalid", name)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// jsonTime accepts RFC 3339 timestamps and bare "2006-01-02" dates, which
// the date pickers of the web client send. A bare date means local
// midnight.
type jsonTime struct {
	time.Time
}

func (t *jsonTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(model.DateKeyLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid time %q", s)
	}
	t.Time = parsed
	return nil
}

// timePtr unwraps an optional jsonTime.
func timePtr(t *jsonTime) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}
