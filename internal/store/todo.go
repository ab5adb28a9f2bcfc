package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/todo-app/apiserver/internal/db"
	"github.com/todo-app/apiserver/types"
)

// TodoRepository handles persistence for todos. Every statement is
// restricted to a single owner; there is no unscoped access path.
type TodoRepository struct {
	db *db.Conn
}

func NewTodoRepository(conn *db.Conn) *TodoRepository {
	return &TodoRepository{db: conn}
}

const todoSelect = `
	SELECT t.id, t.title, t.description, t.completed, t.created_at, u.id, u.username, u.email
	FROM todos t
	JOIN users u ON u.id = t.owner_id`

func (r *TodoRepository) List(ctx context.Context, ownerID int) ([]types.Todo, error) {
	query := todoSelect + `
	WHERE t.owner_id = ?
	ORDER BY t.created_at DESC, t.id DESC`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]types.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return todos, nil
}

func (r *TodoRepository) Get(ctx context.Context, ownerID, id int) (types.Todo, error) {
	query := todoSelect + `
	WHERE t.id = ? AND t.owner_id = ?`
	todo, err := scanTodo(r.db.QueryRowContext(ctx, r.db.Rebind(query), id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Todo{}, ErrNotFound
		}
		return types.Todo{}, err
	}
	return todo, nil
}

func (r *TodoRepository) Create(ctx context.Context, ownerID int, input types.TodoInput) (types.Todo, error) {
	const query = `
		INSERT INTO todos (title, description, completed, created_at, owner_id)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	var id int
	if err := r.db.QueryRowContext(
		ctx,
		r.db.Rebind(query),
		input.Title,
		input.Description,
		input.Completed,
		time.Now().UTC(),
		ownerID,
	).Scan(&id); err != nil {
		return types.Todo{}, err
	}
	return r.Get(ctx, ownerID, id)
}

// Update overwrites the supplied patch fields. Unsupplied fields keep the
// value currently stored, so concurrent patches of different fields do not
// clobber each other.
func (r *TodoRepository) Update(ctx context.Context, ownerID, id int, patch types.TodoPatch) (types.Todo, error) {
	const query = `
		UPDATE todos
		SET title = COALESCE(?, title),
			description = COALESCE(?, description),
			completed = COALESCE(?, completed)
		WHERE id = ? AND owner_id = ?`
	result, err := r.db.ExecContext(
		ctx,
		r.db.Rebind(query),
		nullString(patch.Title),
		nullString(patch.Description),
		nullBool(patch.Completed),
		id,
		ownerID,
	)
	if err != nil {
		return types.Todo{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Todo{}, err
	}
	if affected == 0 {
		return types.Todo{}, ErrNotFound
	}
	return r.Get(ctx, ownerID, id)
}

func (r *TodoRepository) Delete(ctx context.Context, ownerID, id int) error {
	const query = `DELETE FROM todos WHERE id = ? AND owner_id = ?`
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), id, ownerID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (types.Todo, error) {
	var todo types.Todo
	err := row.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Description,
		&todo.Completed,
		&todo.CreatedAt,
		&todo.Owner.ID,
		&todo.Owner.Username,
		&todo.Owner.Email,
	)
	return todo, err
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullBool(value *bool) sql.NullBool {
	if value == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *value, Valid: true}
}
