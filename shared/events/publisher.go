package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eaglebank/ledger-service/shared/utils"
	"github.com/redis/go-redis/v9"
)

// EventPublisher delivers a domain event to a named stream.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// NewEvent wraps data in the common envelope.
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        utils.GenerateID("evt"),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher appends events to Redis streams.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	event := NewEvent(eventType, data)

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
