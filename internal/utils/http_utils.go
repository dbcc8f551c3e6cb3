package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"expertene/internal/contextutils"
	"expertene/internal/models"
	"expertene/internal/services"
)

// MaxJSONBody caps request bodies decoded by DecodeJSON. Documents carry
// their whole block list, so the cap is generous.
const MaxJSONBody = 2 << 20

// DecodeJSON decodes a single JSON object from the request body into dst.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return services.NewValidationError("request body is required", err)
		case errors.As(err, &maxErr):
			return services.NewValidationError("request body is too large", err)
		default:
			return services.NewValidationError("invalid request body format", err)
		}
	}
	if dec.More() {
		return services.NewValidationError("request body must contain a single JSON object", nil)
	}
	return nil
}

// PathID reads a positive integer route variable.
func PathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewFieldValidationError("invalid "+name,
			services.FieldError{Field: name, Message: name + " must be a positive integer", Code: "numeric"})
	}
	return id, nil
}

// PathString reads a non-empty route variable.
func PathString(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(mux.Vars(r)[name])
	if v == "" {
		return "", services.NewFieldValidationError("missing "+name,
			services.FieldError{Field: name, Message: name + " is required", Code: "required"})
	}
	return v, nil
}

// QueryInt reads an optional integer query parameter.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, services.NewFieldValidationError("invalid "+name,
			services.FieldError{Field: name, Message: name + " must be an integer", Code: "numeric"})
	}
	return n, nil
}

// QueryBool reads an optional boolean query parameter.
func QueryBool(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// RequireUser returns the authenticated user or an unauthorized error.
func RequireUser(r *http.Request) (*models.User, error) {
	if u := contextutils.GetUser(r.Context()); u != nil {
		return u, nil
	}
	return nil, services.NewUnauthorizedError("authentication required")
}
