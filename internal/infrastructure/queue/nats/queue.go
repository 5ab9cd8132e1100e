package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/purchase-insights/internal/infrastructure/resilience"
)

// DocumentIngestedEvent is the payload published after a document is stored.
type DocumentIngestedEvent struct {
	DocumentID int64     `json:"document_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// publishOperation names the breaker guarding event publishes.
const publishOperation = "nats.publish.document_ingested"

type Queue struct {
	conn         *nats.Conn
	subject      string
	group        string
	flushTimeout time.Duration
	executor     *resilience.Executor
	logger       *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	// FlushTimeout bounds the server round trip that confirms a publish.
	FlushTimeout         time.Duration
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	flushTimeout := options.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	group := options.QueueGroup
	if group == "" {
		group = "extraction-audit"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("purchase-insights"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", fmt.Sprint(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		subject:      subject,
		group:        group,
		flushTimeout: flushTimeout,
		executor:     options.ResilienceExecutor,
		logger:       logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID int64) error {
	payload, err := encodeEvent(DocumentIngestedEvent{DocumentID: documentID, OccurredAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	call := func(ctx context.Context) error {
		return q.publishConfirmed(ctx, payload)
	}
	if q.executor != nil {
		err = q.executor.Do(ctx, publishOperation, classifyPublishError, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		q.logger.Warn("nats_publish_failed",
			"document_id", documentID,
			"outcome", classifyPublishError(err).String(),
			"error", err.Error(),
		)
		return publishFailure(documentID, err)
	}
	return nil
}

// publishConfirmed publishes and flushes so the server has the event before
// the ingest request returns. A flush that outlives flushTimeout while ctx is
// still live is reported as nats.ErrTimeout.
func (q *Queue) publishConfirmed(ctx context.Context, payload []byte) error {
	if err := q.conn.Publish(q.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	flushCtx, cancel := context.WithTimeout(ctx, q.flushTimeout)
	defer cancel()
	if err := q.conn.FlushWithContext(flushCtx); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("nats flush: %w", nats.ErrTimeout)
		}
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// SubscribeDocumentIngested blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, int64) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		event, err := decodeEvent(msg.Data)
		if err != nil {
			q.logger.Warn("nats_event_malformed", "subject", msg.Subject, "error", err.Error())
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event.DocumentID); err != nil {
			q.logger.Error("worker_handler_failed", "document_id", event.DocumentID, "error", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(event DocumentIngestedEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (DocumentIngestedEvent, error) {
	var event DocumentIngestedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return DocumentIngestedEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if event.DocumentID <= 0 {
		return DocumentIngestedEvent{}, fmt.Errorf("decode event: document_id %d", event.DocumentID)
	}
	return event, nil
}
