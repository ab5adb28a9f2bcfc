// Package graph serves the GraphQL API over the same services as REST.
// Requests must reach it through auth middleware; every resolver reads the
// requester from the context.
package graph

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
)

//go:embed schema.graphql
var schemaSDL string

var (
	errNotFound     = errors.New("todo not found")
	errUnauthorized = errors.New("unauthorized")
	errInternal     = errors.New("internal server error")
)

// Resolver is the root resolver for queries and mutations.
type Resolver struct {
	todos  *services.TodoService
	users  *services.UserService
	logger *slog.Logger
}

func NewResolver(todos *services.TodoService, users *services.UserService, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		todos:  todos,
		users:  users,
		logger: logger,
	}
}

// NewSchema parses the embedded schema against resolver.
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaSDL, resolver, graphql.MaxDepth(8))
}

// NewHandler returns an HTTP handler executing POSTed GraphQL requests.
func NewHandler(resolver *Resolver) (http.Handler, error) {
	schema, err := NewSchema(resolver)
	if err != nil {
		return nil, err
	}
	return &relay.Handler{Schema: schema}, nil
}

// publicError converts a service error into one safe to show clients.
func (r *Resolver) publicError(ctx context.Context, err error) error {
	var invalid *services.ValidationError
	switch {
	case errors.As(err, &invalid):
		return invalid
	case errors.Is(err, store.ErrNotFound):
		return errNotFound
	case errors.Is(err, auth.ErrUnauthorized):
		return errUnauthorized
	default:
		r.logger.ErrorContext(ctx, "graphql resolver failed", slog.Any("error", err))
		return errInternal
	}
}

func requester(ctx context.Context) (int, error) {
	userID, err := auth.UserIDFromContext(ctx)
	if err != nil {
		return 0, errUnauthorized
	}
	return userID, nil
}

func parseID(id graphql.ID) (int, bool) {
	parsed, err := strconv.Atoi(string(id))
	if err != nil || parsed < 1 {
		return 0, false
	}
	return parsed, true
}
