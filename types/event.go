package types

import "time"

// TodoEventType names a todo lifecycle transition.
type TodoEventType string

const (
	TodoCreated TodoEventType = "todo.created"
	TodoUpdated TodoEventType = "todo.updated"
	TodoDeleted TodoEventType = "todo.deleted"
)

// TodoEvent is published to the message queue after a todo mutation.
type TodoEvent struct {
	Type       TodoEventType `json:"type"`
	TodoID     int           `json:"todo_id"`
	OwnerID    int           `json:"owner_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}
