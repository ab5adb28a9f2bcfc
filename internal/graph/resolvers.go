package graph

import (
	"context"
	"strconv"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/todo-app/apiserver/types"
)

func (r *Resolver) Todos(ctx context.Context) ([]*todoResolver, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	todos, err := r.todos.List(ctx, ownerID)
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return r.wrapTodos(todos), nil
}

func (r *Resolver) Todo(ctx context.Context, args struct{ ID graphql.ID }) (*todoResolver, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := parseID(args.ID)
	if !ok {
		return nil, errNotFound
	}
	todo, err := r.todos.Get(ctx, ownerID, id)
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return &todoResolver{todo: todo, root: r}, nil
}

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	userID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return &userResolver{user: user.Public(), root: r}, nil
}

type createTodoArgs struct {
	Title       string
	Description *string
	Completed   *bool
}

func (r *Resolver) CreateTodo(ctx context.Context, args createTodoArgs) (*todoPayload, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	input := types.TodoInput{Title: args.Title}
	if args.Description != nil {
		input.Description = *args.Description
	}
	if args.Completed != nil {
		input.Completed = *args.Completed
	}

	todo, err := r.todos.Create(ctx, ownerID, input)
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return &todoPayload{todo: &todoResolver{todo: todo, root: r}}, nil
}

type updateTodoArgs struct {
	ID          graphql.ID
	Title       *string
	Description *string
	Completed   *bool
}

func (r *Resolver) UpdateTodo(ctx context.Context, args updateTodoArgs) (*todoPayload, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := parseID(args.ID)
	if !ok {
		return nil, errNotFound
	}

	todo, err := r.todos.Update(ctx, ownerID, id, types.TodoPatch{
		Title:       args.Title,
		Description: args.Description,
		Completed:   args.Completed,
	})
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return &todoPayload{todo: &todoResolver{todo: todo, root: r}}, nil
}

// DeleteTodo reports success=false for a missing or foreign todo instead
// of failing.
func (r *Resolver) DeleteTodo(ctx context.Context, args struct{ ID graphql.ID }) (*deletePayload, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := parseID(args.ID)
	if !ok {
		return &deletePayload{}, nil
	}
	deleted, err := r.todos.Delete(ctx, ownerID, id)
	if err != nil {
		return nil, r.publicError(ctx, err)
	}
	return &deletePayload{success: deleted}, nil
}

func (r *Resolver) wrapTodos(todos []types.Todo) []*todoResolver {
	out := make([]*todoResolver, 0, len(todos))
	for _, todo := range todos {
		out = append(out, &todoResolver{todo: todo, root: r})
	}
	return out
}

// todoPayload backs both CreateTodoPayload and UpdateTodoPayload.
type todoPayload struct {
	todo *todoResolver
}

func (p *todoPayload) Todo() *todoResolver {
	return p.todo
}

type deletePayload struct {
	success bool
}

func (p *deletePayload) Success() bool {
	return p.success
}

type todoResolver struct {
	todo types.Todo
	root *Resolver
}

func (t *todoResolver) ID() graphql.ID {
	return graphql.ID(strconv.Itoa(t.todo.ID))
}

func (t *todoResolver) Title() string {
	return t.todo.Title
}

func (t *todoResolver) Description() string {
	return t.todo.Description
}

func (t *todoResolver) Completed() bool {
	return t.todo.Completed
}

func (t *todoResolver) CreatedAt() string {
	return t.todo.CreatedAt.UTC().Format(time.RFC3339)
}

func (t *todoResolver) User() *userResolver {
	return &userResolver{user: t.todo.Owner, root: t.root}
}

type userResolver struct {
	user types.PublicUser
	root *Resolver
}

func (u *userResolver) ID() graphql.ID {
	return graphql.ID(strconv.Itoa(u.user.ID))
}

func (u *userResolver) Username() string {
	return u.user.Username
}

func (u *userResolver) Email() string {
	return u.user.Email
}

// Todos lists the user's todos. Only the requester's own list is visible;
// any other user reports none.
func (u *userResolver) Todos(ctx context.Context) ([]*todoResolver, error) {
	ownerID, err := requester(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != u.user.ID {
		return []*todoResolver{}, nil
	}
	todos, err := u.root.todos.List(ctx, ownerID)
	if err != nil {
		return nil, u.root.publicError(ctx, err)
	}
	return u.root.wrapTodos(todos), nil
}
