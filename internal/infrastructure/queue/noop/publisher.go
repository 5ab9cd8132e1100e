package noop

import (
	"context"
	"log/slog"
)

// Publisher drops document events when no broker is configured.
type Publisher struct {
	logger *slog.Logger
}

func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) PublishDocumentIngested(_ context.Context, documentID int64) error {
	p.logger.Debug("event_dropped", "document_id", documentID, "reason", "nats disabled")
	return nil
}
