package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

const maxTitleLength = 200

// TodoRepository defines owner-scoped persistence operations for todos.
type TodoRepository interface {
	List(ctx context.Context, ownerID int) ([]types.Todo, error)
	Get(ctx context.Context, ownerID, id int) (types.Todo, error)
	Create(ctx context.Context, ownerID int, input types.TodoInput) (types.Todo, error)
	Update(ctx context.Context, ownerID, id int, patch types.TodoPatch) (types.Todo, error)
	Delete(ctx context.Context, ownerID, id int) error
}

// EventPublisher receives todo lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event types.TodoEvent) error
}

// TodoService encapsulates todo use-cases. Every method is scoped to the
// owner passed in; a todo owned by someone else behaves as if it did not
// exist.
type TodoService struct {
	repo   TodoRepository
	events EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

// NewTodoService constructs a TodoService. events may be nil.
func NewTodoService(repo TodoRepository, events EventPublisher, logger *slog.Logger) *TodoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TodoService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *TodoService) List(ctx context.Context, ownerID int) ([]types.Todo, error) {
	if ownerID < 1 {
		return nil, auth.ErrUnauthorized
	}
	return s.repo.List(ctx, ownerID)
}

func (s *TodoService) Get(ctx context.Context, ownerID, id int) (types.Todo, error) {
	if ownerID < 1 {
		return types.Todo{}, auth.ErrUnauthorized
	}
	return s.repo.Get(ctx, ownerID, id)
}

// Create stores a new todo owned by ownerID.
func (s *TodoService) Create(ctx context.Context, ownerID int, input types.TodoInput) (types.Todo, error) {
	if ownerID < 1 {
		return types.Todo{}, auth.ErrUnauthorized
	}
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return types.Todo{}, err
	}
	input.Title = title

	todo, err := s.repo.Create(ctx, ownerID, input)
	if err != nil {
		return types.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	s.publish(ctx, types.TodoCreated, todo.ID, ownerID)
	return todo, nil
}

// Update applies the non-nil fields of patch. Concurrent updates to
// different fields do not overwrite each other.
func (s *TodoService) Update(ctx context.Context, ownerID, id int, patch types.TodoPatch) (types.Todo, error) {
	if ownerID < 1 {
		return types.Todo{}, auth.ErrUnauthorized
	}
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return types.Todo{}, err
		}
		patch.Title = &title
	}
	if patch.Empty() {
		return s.repo.Get(ctx, ownerID, id)
	}

	todo, err := s.repo.Update(ctx, ownerID, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Todo{}, err
		}
		return types.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	s.publish(ctx, types.TodoUpdated, todo.ID, ownerID)
	return todo, nil
}

// Delete removes the todo and reports whether anything was deleted.
// Missing and foreign todos both yield false without an error.
func (s *TodoService) Delete(ctx context.Context, ownerID, id int) (bool, error) {
	if ownerID < 1 {
		return false, auth.ErrUnauthorized
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete todo: %w", err)
	}
	s.publish(ctx, types.TodoDeleted, id, ownerID)
	return true, nil
}

func (s *TodoService) publish(ctx context.Context, eventType types.TodoEventType, todoID, ownerID int) {
	if s.events == nil {
		return
	}
	event := types.TodoEvent{
		Type:       eventType,
		TodoID:     todoID,
		OwnerID:    ownerID,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish todo event",
			slog.String("type", string(eventType)),
			slog.Int("todo_id", todoID),
			slog.Any("error", err),
		)
	}
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "Title cannot be empty"}
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", &ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("Title must be at most %d characters", maxTitleLength),
		}
	}
	return title, nil
}
