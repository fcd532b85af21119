package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	kafkaBatchTimeout = 10 * time.Millisecond
	kafkaWriteTimeout = 5 * time.Second
)

// KafkaPublisher writes events to Kafka, using the stream name as the topic
// and keying each message by event type. Writes are synchronous and flush
// after kafkaBatchTimeout, so Publish returns once the broker has acked.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           kafkaBatchTimeout,
			WriteTimeout:           kafkaWriteTimeout,
			RequiredAcks:           kafka.RequireOne,
			MaxAttempts:            3,
			AllowAutoTopicCreation: true,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Error(fmt.Sprintf(msg, args...))
			}),
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	event := NewEvent(eventType, data)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: stream,
		Key:   []byte(eventType),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to topic %s: %w", stream, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
