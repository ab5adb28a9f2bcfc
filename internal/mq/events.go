package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/todo-app/apiserver/types"
)

const (
	attrEventType = "event_type"
	attrOwnerID   = "owner_id"
)

// TodoEvents publishes and consumes todo lifecycle events on one channel.
type TodoEvents struct {
	mq      *MQ
	channel string
}

// NewTodoEvents binds the todo event stream to channel.
func NewTodoEvents(mq *MQ, channel string) *TodoEvents {
	return &TodoEvents{mq: mq, channel: channel}
}

// Channel returns the channel events are published on.
func (e *TodoEvents) Channel() string {
	return e.channel
}

// Publish encodes event as JSON and sends it.
func (e *TodoEvents) Publish(ctx context.Context, event types.TodoEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode todo event: %w", err)
	}
	attrs := map[string]string{
		attrEventType: string(event.Type),
		attrOwnerID:   strconv.Itoa(event.OwnerID),
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Consume decodes every message on the channel and passes it to fn until
// ctx is cancelled. Undecodable messages are rejected.
func (e *TodoEvents) Consume(ctx context.Context, fn func(context.Context, types.TodoEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event types.TodoEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return fmt.Errorf("decode todo event %s: %w", msg.ID, err)
		}
		return fn(ctx, event)
	})
}
