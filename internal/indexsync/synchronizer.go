// Package indexsync keeps the search index in step with committed catalog
// mutations.
package indexsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
)

// DefaultSequenceTTL bounds how long the last applied sequence of an item is
// remembered.
const DefaultSequenceTTL = time.Hour

// Dispatcher marks outbox entries as applied.
type Dispatcher interface {
	MarkDispatched(ctx context.Context, seq int64) error
}

// Synchronizer applies committed domain events to the index store.
//
// Events for the same item are serialized, and an envelope whose Seq is not
// newer than the last one applied for that item is dropped, so a replayed
// create cannot resurrect a deleted document. Events for different items
// run concurrently. Failures are returned to the caller and never retried
// here; the outbox entry then stays pending for the relay.
type Synchronizer struct {
	index      engine.IndexStore
	dispatcher Dispatcher
	logger     *slog.Logger

	locks *keyedMutex
	seen  *seqTable
}

// New creates a Synchronizer. dispatcher may be nil when no outbox backs the
// envelopes. A non-positive ttl selects DefaultSequenceTTL.
func New(index engine.IndexStore, dispatcher Dispatcher, ttl time.Duration, logger *slog.Logger) *Synchronizer {
	if ttl <= 0 {
		ttl = DefaultSequenceTTL
	}
	return &Synchronizer{
		index:      index,
		dispatcher: dispatcher,
		logger:     logger,
		locks:      newKeyedMutex(),
		seen:       newSeqTable(ttl),
	}
}

// Apply upserts or deletes the document affected by env. Envelopes with a
// zero Seq are applied without sequence tracking.
func (s *Synchronizer) Apply(ctx context.Context, env domain.Envelope) error {
	if env.Event == nil {
		return errors.New("apply envelope: missing event")
	}
	eventType := env.Event.EventType()
	id := env.Event.AggregateID()

	unlock := s.locks.Lock(id)
	defer unlock()

	if env.Seq > 0 {
		if last, ok := s.seen.last(id); ok && env.Seq <= last {
			EventsSkipped.WithLabelValues(eventType).Inc()
			s.logger.DebugContext(ctx, "skipping stale event",
				slog.String("event_type", eventType),
				slog.String("item_id", id),
				slog.Int64("seq", env.Seq),
				slog.Int64("last_seq", last),
			)
			s.markDispatched(ctx, env)
			return nil
		}
	}

	start := time.Now()
	err := s.apply(ctx, env.Event)
	ApplyDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	if err != nil {
		EventsFailed.WithLabelValues(eventType).Inc()
		s.logger.WarnContext(ctx, "failed to apply event to search index",
			slog.String("event_type", eventType),
			slog.String("item_id", id),
			slog.Int64("seq", env.Seq),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("apply %s for item %s: %w", eventType, id, err)
	}

	if env.Seq > 0 {
		s.seen.record(id, env.Seq)
	}
	EventsApplied.WithLabelValues(eventType).Inc()
	s.markDispatched(ctx, env)
	return nil
}

func (s *Synchronizer) apply(ctx context.Context, event domain.DomainEvent) error {
	switch e := event.(type) {
	case domain.ItemCreated:
		return s.index.Upsert(ctx, e.Item.ID, domain.NewSearchDocument(e.Item))
	case domain.ItemDeleted:
		return s.index.Delete(ctx, e.ID)
	default:
		return fmt.Errorf("unsupported event %T", event)
	}
}

// markDispatched closes the outbox entry. The index already reflects the
// event, so a failure here only means the relay will replay an envelope the
// sequence check then drops.
func (s *Synchronizer) markDispatched(ctx context.Context, env domain.Envelope) {
	if s.dispatcher == nil || env.Seq <= 0 {
		return
	}
	if err := s.dispatcher.MarkDispatched(ctx, env.Seq); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark outbox entry dispatched",
			slog.Int64("seq", env.Seq),
			slog.String("error", err.Error()),
		)
	}
}
