package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
)

const maxBodyBytes = 1 << 20

var errInvalidID = errors.New("invalid id")

// ErrorResponse is the body of every non-OAuth error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeFieldError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, ErrorResponse{Error: message, Field: field})
}

// writeServiceError maps service error kinds to responses. Anything it
// does not recognise is logged and reported as fallback with a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var missing *services.MissingFieldError
	var invalid *services.ValidationError

	switch {
	case errors.As(err, &missing):
		writeFieldError(w, http.StatusBadRequest, missing.Error(), missing.Field)
	case errors.As(err, &invalid):
		writeFieldError(w, http.StatusBadRequest, invalid.Message, invalid.Field)
	case errors.Is(err, services.ErrDuplicateUsername):
		writeFieldError(w, http.StatusBadRequest, "Username already exists", "username")
	case errors.Is(err, services.ErrInvalidCredential):
		writeFieldError(w, http.StatusUnauthorized, "Invalid username/email or password", "username")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		logger.ErrorContext(r.Context(), fallback,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func parseID(r *http.Request, param string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, param)))
	if err != nil || id < 1 {
		return 0, errInvalidID
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
