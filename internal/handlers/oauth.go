package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/todo-app/apiserver/internal/services"
)

const grantTypePassword = "password"

// OAuthHandler implements the token endpoint for the password grant.
type OAuthHandler struct {
	oauthService *services.OAuthService
	logger       *slog.Logger
}

func NewOAuthHandler(oauthService *services.OAuthService, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		logger:       logger,
	}
}

// OAuthRouter registers /o routes on the given router.
func OAuthRouter(r chi.Router, handler *OAuthHandler) {
	r.Post("/token", handler.Token)
}

// OAuthErrorResponse is the RFC 6749 section 5.2 error body.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Token issues an access token. Client credentials are read from HTTP Basic
// auth, falling back to the client_id and client_secret form fields.
func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	switch grantType {
	case "":
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return
	case grantTypePassword:
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}

	token, err := h.oauthService.PasswordGrant(r.Context(), services.PasswordGrantInput{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
	})
	if err != nil {
		var missing *services.MissingFieldError
		switch {
		case errors.Is(err, services.ErrInvalidClient):
			w.Header().Set("WWW-Authenticate", `Basic realm="todoapi"`)
			writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "")
		case errors.As(err, &missing):
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", missing.Error())
		case errors.Is(err, services.ErrInvalidCredential):
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid credentials given.")
		default:
			h.logger.ErrorContext(r.Context(), "failed to issue oauth token", slog.Any("error", err))
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, OAuthErrorResponse{Error: code, ErrorDescription: description})
}
