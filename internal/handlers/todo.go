package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/types"
)

// TodoHandler provides HTTP handlers for the requester's todos.
type TodoHandler struct {
	todoService *services.TodoService
	logger      *slog.Logger
}

// NewTodoHandler constructs a TodoHandler.
func NewTodoHandler(todoService *services.TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		todoService: todoService,
		logger:      logger,
	}
}

// TodoRouter registers todo routes on the given router. The router must
// already be behind RequireAuth.
func TodoRouter(r chi.Router, handler *TodoHandler) {
	r.Get("/", handler.ListTodos)
	r.Post("/", handler.CreateTodo)
	r.Route("/{todoID}", func(r chi.Router) {
		r.Get("/", handler.GetTodo)
		r.Put("/", handler.ReplaceTodo)
		r.Patch("/", handler.PatchTodo)
		r.Delete("/", handler.DeleteTodo)
	})
}

// TodoRequest is the body accepted by create, replace and patch.
// Any owner or id supplied by the client is ignored.
type TodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (req TodoRequest) input() types.TodoInput {
	input := types.TodoInput{}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Completed != nil {
		input.Completed = *req.Completed
	}
	return input
}

func (req TodoRequest) patch() types.TodoPatch {
	return types.TodoPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
}

func (h *TodoHandler) ListTodos(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	todos, err := h.todoService.List(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list todos")
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (h *TodoHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Title == nil {
		writeFieldError(w, http.StatusBadRequest, "title is required", "title")
		return
	}

	todo, err := h.todoService.Create(r.Context(), ownerID, req.input())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to create todo")
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (h *TodoHandler) GetTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	todo, err := h.todoService.Get(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to fetch todo")
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// ReplaceTodo handles PUT. The title must be present; omitted optional
// fields keep their stored values.
func (h *TodoHandler) ReplaceTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Title == nil {
		writeFieldError(w, http.StatusBadRequest, "title is required", "title")
		return
	}

	h.update(w, r, ownerID, id, req.patch())
}

func (h *TodoHandler) PatchTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var req TodoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	h.update(w, r, ownerID, id, req.patch())
}

func (h *TodoHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.target(w, r)
	if !ok {
		return
	}

	deleted, err := h.todoService.Delete(r.Context(), ownerID, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to delete todo")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TodoHandler) update(w http.ResponseWriter, r *http.Request, ownerID, id int, patch types.TodoPatch) {
	todo, err := h.todoService.Update(r.Context(), ownerID, id, patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to update todo")
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// target resolves the requester and the todo id. A malformed id is
// reported as not found, the same as a missing or foreign todo.
func (h *TodoHandler) target(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	ownerID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return 0, 0, false
	}
	id, err := parseID(r, "todoID")
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return 0, 0, false
	}
	return ownerID, id, true
}
