package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/catalogsearch/internal/domain"
	pkgkafka "github.com/utafrali/catalogsearch/pkg/kafka"
	"github.com/utafrali/catalogsearch/pkg/logger"
)

// AggregateTypeItem is the aggregate type of catalog item events.
const AggregateTypeItem = "catalog_item"

// SourceCatalogService identifies events originating from this service.
const SourceCatalogService = "catalog-service"

// DefaultTopic carries every catalog item event, keyed by item id.
var DefaultTopic = pkgkafka.Topic("item", "changed")

// EventPublisher is the part of *pkgkafka.Producer used by the forwarder.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Forwarder publishes committed events to Kafka. Register Forwarder.Publish
// on the bus to fan events out to the indexer consumers.
type Forwarder struct {
	producer EventPublisher
	topic    string
	logger   *slog.Logger
}

// NewForwarder creates a forwarder writing to topic.
func NewForwarder(producer EventPublisher, topic string, logger *slog.Logger) *Forwarder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Forwarder{producer: producer, topic: topic, logger: logger}
}

// Publish sends env to Kafka.
func (f *Forwarder) Publish(ctx context.Context, env domain.Envelope) error {
	msg, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		msg.WithCorrelationID(id)
	}

	if err := f.producer.Publish(ctx, f.topic, msg); err != nil {
		return fmt.Errorf("forward %s for item %s: %w", msg.EventType, msg.AggregateID, err)
	}
	return nil
}

// EncodeEnvelope converts an envelope into a Kafka event. The outbox
// sequence travels in Event.Sequence.
func EncodeEnvelope(env domain.Envelope) (*pkgkafka.Event, error) {
	if env.Event == nil {
		return nil, fmt.Errorf("encode envelope %d: missing event", env.Seq)
	}
	msg, err := pkgkafka.NewEvent(
		env.Event.EventType(),
		env.Event.AggregateID(),
		AggregateTypeItem,
		SourceCatalogService,
		env.Event,
	)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", env.Event.EventType(), err)
	}
	if !env.OccurredAt.IsZero() {
		msg.Timestamp = env.OccurredAt.UTC()
	}
	return msg.WithSequence(env.Seq), nil
}

// DecodeEnvelope is the inverse of EncodeEnvelope.
func DecodeEnvelope(msg *pkgkafka.Event) (domain.Envelope, error) {
	ev, err := domain.UnmarshalEvent(msg.EventType, msg.Data)
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.Envelope{
		Seq:        msg.Sequence,
		OccurredAt: msg.Timestamp,
		Event:      ev,
	}, nil
}
