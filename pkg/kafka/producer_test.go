package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// --- Event ---

func TestNewEvent_Fields(t *testing.T) {
	type itemData struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	}

	event, err := NewEvent("item.created", "item-1", "item", "catalog", itemData{ID: "item-1", Price: 2})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "item.created", event.EventType)
	assert.Equal(t, "item-1", event.AggregateID)
	assert.Equal(t, "item", event.AggregateType)
	assert.Equal(t, "catalog", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var data itemData
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, int64(2), data.Price)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "a", "t", "s", make(chan int))
	require.Error(t, err)
}

func TestEvent_SequenceSurvivesMarshal(t *testing.T) {
	event, err := NewEvent("item.deleted", "item-9", "item", "catalog", map[string]string{"id": "item-9"})
	require.NoError(t, err)
	event.WithSequence(17).WithCorrelationID("corr-1")

	raw, err := event.Marshal()
	require.NoError(t, err)
	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(17), restored.Sequence)
	assert.Equal(t, "corr-1", restored.CorrelationID)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"not json", `not json`, "invalid event envelope"},
		{"missing id", `{"event_type":"item.created","aggregate_id":"a"}`, "missing event_id"},
		{"missing type", `{"event_id":"e","aggregate_id":"a"}`, "missing event_type"},
		{"missing aggregate", `{"event_id":"e","event_type":"item.created"}`, "missing aggregate_id"},
		{"newer schema", `{"event_id":"e","event_type":"item.created","aggregate_id":"a","version":2}`, "unsupported version 2"},
		{"negative sequence", `{"event_id":"e","event_type":"item.created","aggregate_id":"a","sequence":-1}`, "negative sequence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.value))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidEvent)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// --- Producer ---

func TestProducer_Publish_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("item.created", "item-1", "item", "catalog", nil)
	require.NoError(t, err)
	event.WithSequence(42).WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(context.Background(), "catalog.items.changed", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "catalog.items.changed", msg.Topic)
	assert.Equal(t, []byte("item-1"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "item.created", carrier.Get("event_type"))
	assert.Equal(t, "catalog", carrier.Get("source"))
	assert.Equal(t, "corr-7", carrier.Get("correlation_id"))
	assert.Equal(t, "42", carrier.Get("sequence"))
}

func TestProducer_Publish_UnorderedEventHasNoSequenceHeader(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	event, err := NewEvent("item.deleted", "item-2", "item", "catalog", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), "t", event))

	require.Len(t, w.msgs, 1)
	assert.Empty(t, NewHeaderCarrier(&w.msgs[0].Headers).Get("sequence"))
}

func TestProducer_Publish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	event, err := NewEvent("item.created", "item-1", "item", "catalog", nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "t", event))

	require.Len(t, w.msgs, 1)
	traceparent := NewHeaderCarrier(&w.msgs[0].Headers).Get("traceparent")
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestProducer_Publish_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("no leader")}, logger: testLogger()}
	event, err := NewEvent("item.created", "item-1", "item", "catalog", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "catalog.items.changed", event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.items.changed")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "catalog.items.changed", Topic("items", "changed"))
}
