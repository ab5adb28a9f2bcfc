package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/types"
)

// UserHandler exposes read-only user listings to authenticated clients.
type UserHandler struct {
	userService *services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UserRouter registers user routes. The router must already be behind
// RequireAuth.
func UserRouter(r chi.Router, handler *UserHandler) {
	r.Get("/", handler.ListUsers)
	r.Get("/{userID}", handler.GetUser)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list users")
		return
	}

	resp := make([]types.PublicUser, 0, len(users))
	for _, user := range users {
		resp = append(resp, user.Public())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "userID")
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
