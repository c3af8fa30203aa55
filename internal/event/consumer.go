package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalogsearch/internal/domain"
	pkgkafka "github.com/utafrali/catalogsearch/pkg/kafka"
)

// Applier applies an envelope to the search index.
type Applier interface {
	Apply(ctx context.Context, env domain.Envelope) error
}

// Consumer handles catalog item events read from Kafka.
type Consumer struct {
	applier Applier
	logger  *slog.Logger
}

// NewConsumer creates a consumer that feeds applier.
func NewConsumer(applier Applier, logger *slog.Logger) *Consumer {
	return &Consumer{
		applier: applier,
		logger:  logger,
	}
}

// Handle decodes the event and applies it. Unknown event types are ignored.
func (c *Consumer) Handle(ctx context.Context, msg *pkgkafka.Event) error {
	switch msg.EventType {
	case domain.EventItemCreated, domain.EventItemDeleted:
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", msg.EventType),
			slog.String("event_id", msg.EventID),
		)
		return nil
	}

	env, err := DecodeEnvelope(msg)
	if err != nil {
		return fmt.Errorf("decode %s event %s: %w", msg.EventType, msg.EventID, err)
	}

	if err := c.applier.Apply(ctx, env); err != nil {
		return fmt.Errorf("apply %s event %s: %w", msg.EventType, msg.EventID, err)
	}

	c.logger.DebugContext(ctx, "applied event from kafka",
		slog.String("event_type", msg.EventType),
		slog.String("item_id", msg.AggregateID),
		slog.Int64("seq", msg.Sequence),
	)
	return nil
}

// Handler returns Handle guarded against redelivered messages.
func (c *Consumer) Handler(store pkgkafka.IdempotencyStore) pkgkafka.Handler {
	return pkgkafka.IdempotentHandler(store, c.Handle, c.logger)
}
