package types

import "time"

// Todo is a single todo item. Every todo belongs to exactly one user.
type Todo struct {
	// ID is the unique identifier of the todo.
	ID int `json:"id" db:"id"`

	// Title is the trimmed, non-empty headline of the todo.
	Title string `json:"title" db:"title"`

	// Description is optional free-form text.
	Description string `json:"description" db:"description"`

	// Completed reports whether the todo is done.
	Completed bool `json:"completed" db:"completed"`

	// CreatedAt is assigned by the server on creation and never changes.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Owner is the user the todo belongs to. It is set to the requester
	// on creation and is immutable afterwards.
	Owner PublicUser `json:"user"`
}

// TodoInput carries the client-supplied fields for a new todo.
// There is intentionally no owner field.
type TodoInput struct {
	Title       string
	Description string
	Completed   bool
}

// TodoPatch lists the fields a client may change on an existing todo.
// A nil field is left unchanged.
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Empty reports whether the patch changes nothing.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// Apply overwrites the supplied fields on todo, one field at a time.
func (p TodoPatch) Apply(todo *Todo) {
	if p.Title != nil {
		todo.Title = *p.Title
	}
	if p.Description != nil {
		todo.Description = *p.Description
	}
	if p.Completed != nil {
		todo.Completed = *p.Completed
	}
}
