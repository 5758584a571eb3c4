// Package kafka implements pkg/eventstream's Publisher on top of a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/papercomputeco/spool/pkg/eventstream"
)

// writer is the slice of kafka.Writer the publisher depends on.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the bootstrap broker list as host:port pairs. Required.
	Brokers []string

	// Topic is the topic mutation events are published to. Required.
	Topic string
}

// Publisher publishes record mutation events to a Kafka topic. Messages are
// keyed by record id so a record's events land on one partition in order.
type Publisher struct {
	writer writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher from the given config.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: w,
		logger: logger,
	}, nil
}

// PublishMutation JSON-encodes the event and writes it to the topic.
func (p *Publisher) PublishMutation(ctx context.Context, event *eventstream.RecordMutationEvent) error {
	if event == nil {
		return eventstream.ErrNilMutationEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling mutation event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RecordID),
		Value: value,
		Time:  event.EmittedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing mutation event %s: %w", event.EventID, err)
	}

	p.logger.Debug("published mutation event",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"collection", event.Collection,
		"record_id", event.RecordID,
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
