package kafka

import (
	"log/slog"
)

// MessageWriter exposes the writer seam for tests.
type MessageWriter = messageWriter

// NewPublisherWithWriter builds a publisher around a fake writer.
func NewPublisherWithWriter(w MessageWriter, c Config, logger *slog.Logger) *Publisher {
	return newPublisher(w, c, logger)
}
