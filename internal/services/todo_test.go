package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todo-app/apiserver/internal/auth"
	"github.com/todo-app/apiserver/internal/services"
	"github.com/todo-app/apiserver/internal/store"
	"github.com/todo-app/apiserver/types"
)

func ptr[T any](v T) *T {
	return &v
}

func TestTodoCreate_TrimsTitle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw", "")

	todo, err := env.todos.Create(context.Background(), alice.ID, types.TodoInput{
		Title:       "  buy milk  ",
		Description: "2 litres",
	})
	require.NoError(t, err)
	assert.Equal(t, "buy milk", todo.Title)
	assert.Equal(t, "2 litres", todo.Description)
	assert.False(t, todo.Completed)
	assert.Equal(t, alice.ID, todo.Owner.ID)
	assert.False(t, todo.CreatedAt.IsZero())
}

func TestTodoCreate_RejectsBlankTitle(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice", "pw", "")

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := env.todos.Create(context.Background(), alice.ID, types.TodoInput{Title: title})
		var invalid *services.ValidationError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "title", invalid.Field)
	}

	todos, err := env.todos.List(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestTodo_OwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")
	bob := env.register(t, "bob", "pw", "")

	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "secret plan"})
	require.NoError(t, err)

	_, err = env.todos.Get(ctx, bob.ID, todo.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.todos.Update(ctx, bob.ID, todo.ID, types.TodoPatch{Completed: ptr(true)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	deleted, err := env.todos.Delete(ctx, bob.ID, todo.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	bobs, err := env.todos.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobs)

	unchanged, err := env.todos.Get(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.Completed)
}

func TestTodo_RequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.todos.List(ctx, 0)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = env.todos.Create(ctx, 0, types.TodoInput{Title: "x"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	_, err = env.todos.Delete(ctx, 0, 1)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestTodoUpdate_PartialKeepsOtherFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")

	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "write report", Description: "Q3 numbers"})
	require.NoError(t, err)

	updated, err := env.todos.Update(ctx, alice.ID, todo.ID, types.TodoPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "write report", updated.Title)
	assert.Equal(t, "Q3 numbers", updated.Description)
	assert.True(t, todo.CreatedAt.Equal(updated.CreatedAt))
}

func TestTodoUpdate_ValidatesTitle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")
	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "original"})
	require.NoError(t, err)

	var invalid *services.ValidationError
	_, err = env.todos.Update(ctx, alice.ID, todo.ID, types.TodoPatch{Title: ptr("  ")})
	require.ErrorAs(t, err, &invalid)

	updated, err := env.todos.Update(ctx, alice.ID, todo.ID, types.TodoPatch{Title: ptr("  renamed ")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
}

func TestTodoUpdate_EmptyPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")
	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "same"})
	require.NoError(t, err)

	got, err := env.todos.Update(ctx, alice.ID, todo.ID, types.TodoPatch{})
	require.NoError(t, err)
	assert.Equal(t, todo.ID, got.ID)

	_, err = env.todos.Update(ctx, alice.ID, todo.ID+100, types.TodoPatch{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTodoDelete_Twice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")
	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "ephemeral"})
	require.NoError(t, err)

	deleted, err := env.todos.Delete(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = env.todos.Delete(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = env.todos.Get(ctx, alice.ID, todo.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTodo_PublishesEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "pw", "")

	todo, err := env.todos.Create(ctx, alice.ID, types.TodoInput{Title: "observe me"})
	require.NoError(t, err)
	_, err = env.todos.Update(ctx, alice.ID, todo.ID, types.TodoPatch{Completed: ptr(true)})
	require.NoError(t, err)
	_, err = env.todos.Delete(ctx, alice.ID, todo.ID)
	require.NoError(t, err)
	_, err = env.todos.Delete(ctx, alice.ID, todo.ID)
	require.NoError(t, err)

	require.Len(t, env.events.events, 3)
	assert.Equal(t, types.TodoCreated, env.events.events[0].Type)
	assert.Equal(t, types.TodoUpdated, env.events.events[1].Type)
	assert.Equal(t, types.TodoDeleted, env.events.events[2].Type)
	for _, event := range env.events.events {
		assert.Equal(t, todo.ID, event.TodoID)
		assert.Equal(t, alice.ID, event.OwnerID)
	}
}

func TestTodo_PublishFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.events.err = errBrokerDown
	alice := env.register(t, "alice", "pw", "")

	todo, err := env.todos.Create(context.Background(), alice.ID, types.TodoInput{Title: "still saved"})
	require.NoError(t, err)
	assert.Positive(t, todo.ID)
}
