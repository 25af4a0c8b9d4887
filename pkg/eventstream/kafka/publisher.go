// Package kafka publishes report events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/splice/pkg/eventstream"
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers are the bootstrap broker addresses.
	Brokers []string

	// Topic receives one message per report.
	Topic string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes report events keyed by run id, so every event of one run
// lands on the same partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a Kafka publisher. No connection is made until the
// first publish.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka publisher initialized",
		"brokers", c.Brokers,
		"topic", c.Topic,
	)

	return newPublisher(w, c, logger), nil
}

func newPublisher(w messageWriter, c Config, logger *slog.Logger) *Publisher {
	timeout := c.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{
		writer:  w,
		topic:   c.Topic,
		timeout: timeout,
		logger:  logger,
	}
}

// PublishReport encodes the event as JSON and writes it to the topic.
func (p *Publisher) PublishReport(ctx context.Context, event *eventstream.ReportCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilReport
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding report event: %w", err)
	}

	key := event.EventID
	if event.Report != nil && event.Report.RunID != "" {
		key = event.Report.RunID
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: fmt.Appendf(nil, "%d", event.SchemaVersion)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing report event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published report event",
		"topic", p.topic,
		"event_id", event.EventID,
		"bytes", len(payload),
	)

	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
