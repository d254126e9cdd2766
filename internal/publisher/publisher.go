// Package publisher announces completed orders and submitted requests on Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/inviteu/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic = "storefront-events"

	EventOrderCompleted   = "order.completed"
	EventRequestSubmitted = "request.submitted"
)

// Writer is the part of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes one message per event; the key is the record id so events of one record stay ordered.
type Kafka struct {
	writer Writer
	logger *zap.Logger
}

func NewKafka(topic string, logger *zap.Logger, brokers ...string) *Kafka {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return NewWithWriter(w, logger)
}

func NewWithWriter(w Writer, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Kafka{writer: w, logger: logger}
}

func (k *Kafka) PublishOrderCompleted(ctx context.Context, order domain.Order) error {
	return k.publish(ctx, EventOrderCompleted, order.ID.String(), order)
}

func (k *Kafka) PublishRequestSubmitted(ctx context.Context, record domain.RequestRecord) error {
	return k.publish(ctx, EventRequestSubmitted, record.ID.String(), record)
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func (k *Kafka) publish(ctx context.Context, eventType, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s %s: %w", eventType, key, err)
	}
	k.logger.Debug("event published", zap.String("event_type", eventType), zap.String("key", key))
	return nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishOrderCompleted(context.Context, domain.Order) error { return nil }

func (Nop) PublishRequestSubmitted(context.Context, domain.RequestRecord) error { return nil }

func (Nop) Close() error { return nil }
