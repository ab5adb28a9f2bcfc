package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/todo-app/apiserver/config"
)

// RabbitMQClient publishes on a single confirm-mode channel and opens a
// dedicated channel per subscription.
type RabbitMQClient struct {
	conn          *amqp.Connection
	durable       bool
	autoDelete    bool
	prefetchCount int

	// mu serializes publishes; an amqp channel is not safe for concurrent
	// publishing with confirms.
	mu       sync.Mutex
	pub      *amqp.Channel
	declared map[string]struct{}
}

// NewRabbitMQClient dials the broker and puts the publish channel into
// confirm mode.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitMQClient{
		conn:          conn,
		durable:       cfg.QueueDurable,
		autoDelete:    cfg.QueueAutoDelete,
		prefetchCount: cfg.PrefetchCount,
		pub:           pub,
		declared:      make(map[string]struct{}),
	}, nil
}

// Publish sends data to the queue named channel and waits for the broker
// to confirm it.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	}
	if r.durable {
		msg.DeliveryMode = amqp.Persistent
	}

	confirmation, err := r.publish(ctx, channel, msg)
	if err != nil {
		return "", err
	}
	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return "", fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return "", fmt.Errorf("broker rejected message %s", msg.MessageId)
	}
	return msg.MessageId, nil
}

func (r *RabbitMQClient) publish(ctx context.Context, queue string, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.declared[queue]; !ok {
		if err := r.declare(r.pub, queue); err != nil {
			return nil, err
		}
		r.declared[queue] = struct{}{}
	}

	confirmation, err := r.pub.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", queue, err)
	}
	return confirmation, nil
}

// Subscribe consumes the queue named channel until ctx is done. A message
// whose handler fails is requeued once and dropped on the second failure.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	defer ch.Close()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}
	if err := r.declare(ch, channel); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, channel, "todoapi-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", channel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			err := handler(ctx, Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			})
			if err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publish channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.pub.Close()
	return r.conn.Close()
}

func (r *RabbitMQClient) declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, r.durable, r.autoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
