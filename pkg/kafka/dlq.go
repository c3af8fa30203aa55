package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is the default prefix for dead-letter queue topics.
const DLQTopicPrefix = "catalog.dlq"

// DeadLetter is a message the consumer gave up on. Event is nil when the
// value could not be decoded; Attempts is then zero.
type DeadLetter struct {
	Message       kafka.Message
	Event         *Event
	Err           error
	Attempts      int
	ConsumerGroup string
}

// DLQProducer parks dead letters on DLQTopic(original topic).
type DLQProducer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

var _ DeadLetterPublisher = (*DLQProducer)(nil)

// NewDLQProducer creates a DLQ producer. Parked messages are keyed by
// aggregate id, so every dead letter of one item sits on one partition in
// sequence order and can be replayed without reordering.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &DLQProducer{writer: w, logger: logger, now: time.Now}
}

// DLQTopic constructs the DLQ topic name for a given source topic.
func DLQTopic(originalTopic string) string {
	return fmt.Sprintf("%s.%s", DLQTopicPrefix, originalTopic)
}

// deadLetterMessage keeps the original value and headers and appends the
// failure context under the dlq. prefix.
func (d *DLQProducer) deadLetterMessage(dl DeadLetter) kafka.Message {
	orig := dl.Message
	key := orig.Key
	headers := make([]kafka.Header, 0, len(orig.Headers)+10)
	headers = append(headers, orig.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq.original_topic", Value: []byte(orig.Topic)},
		kafka.Header{Key: "dlq.original_partition", Value: []byte(strconv.Itoa(orig.Partition))},
		kafka.Header{Key: "dlq.original_offset", Value: []byte(strconv.FormatInt(orig.Offset, 10))},
		kafka.Header{Key: "dlq.consumer_group", Value: []byte(dl.ConsumerGroup)},
		kafka.Header{Key: "dlq.attempts", Value: []byte(strconv.Itoa(dl.Attempts))},
		kafka.Header{Key: "dlq.failed_at", Value: []byte(d.now().UTC().Format(time.RFC3339Nano))},
	)
	if dl.Err != nil {
		headers = append(headers, kafka.Header{Key: "dlq.error", Value: []byte(dl.Err.Error())})
	}

	if ev := dl.Event; ev != nil {
		key = []byte(ev.AggregateID)
		headers = append(headers,
			kafka.Header{Key: "dlq.event_id", Value: []byte(ev.EventID)},
			kafka.Header{Key: "dlq.event_type", Value: []byte(ev.EventType)},
		)
		if ev.Sequence > 0 {
			headers = append(headers, kafka.Header{Key: "dlq.sequence", Value: []byte(strconv.FormatInt(ev.Sequence, 10))})
		}
	}

	return kafka.Message{
		Topic:   DLQTopic(orig.Topic),
		Key:     key,
		Value:   orig.Value,
		Headers: headers,
	}
}

// Publish writes dl to its dead-letter topic.
func (d *DLQProducer) Publish(ctx context.Context, dl DeadLetter) error {
	msg := d.deadLetterMessage(dl)
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to DLQ %s: %w", msg.Topic, err)
	}

	attrs := []any{
		slog.String("dlq_topic", msg.Topic),
		slog.String("original_topic", dl.Message.Topic),
		slog.Int("partition", dl.Message.Partition),
		slog.Int64("offset", dl.Message.Offset),
		slog.String("consumer_group", dl.ConsumerGroup),
		slog.Int("attempts", dl.Attempts),
	}
	if dl.Event != nil {
		attrs = append(attrs,
			slog.String("aggregate_id", dl.Event.AggregateID),
			slog.Int64("sequence", dl.Event.Sequence),
		)
	}
	d.logger.WarnContext(ctx, "message sent to DLQ", attrs...)

	return nil
}

// Close closes the DLQ producer.
func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
