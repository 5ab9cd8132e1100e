package nats

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
	"github.com/kirillkom/purchase-insights/internal/infrastructure/resilience"
)

// classifyPublishError sorts failures of the event sent after a document is
// stored. Only broker trouble that can clear on its own is retried; an event
// the broker refuses outright is not the broker's failure.
func classifyPublishError(err error) resilience.Outcome {
	switch {
	case errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.Transient
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining):
		return resilience.Unavailable
	default:
		return resilience.Rejected
	}
}

// publishFailure marks failures a later publish could overcome as temporary.
// The stored document is unaffected either way.
func publishFailure(documentID int64, err error) error {
	err = fmt.Errorf("document %d: %w", documentID, err)
	if resilience.IsCircuitOpen(err) || classifyPublishError(err) != resilience.Rejected {
		return domain.WrapError(domain.ErrTemporary, "publish document ingested", err)
	}
	return fmt.Errorf("publish document ingested: %w", err)
}
