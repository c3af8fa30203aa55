package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/pkg/database"
)

const (
	insertOutboxQuery = `
		INSERT INTO outbox (aggregate_id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING seq`

	pendingOutboxQuery = `
		SELECT o.seq, o.event_type, o.payload, o.occurred_at
		FROM outbox o
		WHERE o.dispatched_at IS NULL AND o.occurred_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM outbox later
			WHERE later.aggregate_id = o.aggregate_id AND later.seq > o.seq)
		ORDER BY o.seq
		LIMIT $2`

	discardSupersededQuery = `
		UPDATE outbox o SET dispatched_at = NOW()
		WHERE o.dispatched_at IS NULL
		  AND EXISTS (
			SELECT 1 FROM outbox later
			WHERE later.aggregate_id = o.aggregate_id AND later.seq > o.seq)`

	markDispatchedQuery = `
		UPDATE outbox SET dispatched_at = NOW()
		WHERE seq = $1 AND dispatched_at IS NULL`
)

// Record appends the event to the outbox inside the current transaction.
// The sequence number comes from the outbox's BIGSERIAL key.
func (u *unitOfWork) Record(ctx context.Context, event domain.DomainEvent) (domain.Envelope, error) {
	payload, err := domain.MarshalEvent(event)
	if err != nil {
		return domain.Envelope{}, err
	}

	occurredAt := time.Now().UTC()
	var seq int64
	err = u.tx.QueryRow(ctx, insertOutboxQuery,
		event.AggregateID(),
		event.EventType(),
		payload,
		occurredAt,
	).Scan(&seq)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("record %s: %w", event.EventType(), err)
	}

	return domain.Envelope{Seq: seq, OccurredAt: occurredAt, Event: event}, nil
}

// PendingOutbox returns undispatched entries older than olderThan.
func (s *Store) PendingOutbox(ctx context.Context, olderThan time.Time, limit int) (_ []domain.Envelope, err error) {
	ctx, end := database.TraceQuery(ctx, "PendingOutbox", pendingOutboxQuery)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, pendingOutboxQuery, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var envelopes []domain.Envelope
	for rows.Next() {
		var (
			seq        int64
			eventType  string
			payload    []byte
			occurredAt time.Time
		)
		if err := rows.Scan(&seq, &eventType, &payload, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		event, err := domain.UnmarshalEvent(eventType, payload)
		if err != nil {
			return nil, fmt.Errorf("decode outbox row %d: %w", seq, err)
		}
		envelopes = append(envelopes, domain.Envelope{Seq: seq, OccurredAt: occurredAt, Event: event})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return envelopes, nil
}

// MarkDispatched flags the entry as applied. Marking an entry twice is a
// no-op.
func (s *Store) MarkDispatched(ctx context.Context, seq int64) error {
	if _, err := s.pool.Exec(ctx, markDispatchedQuery, seq); err != nil {
		return fmt.Errorf("mark outbox %d dispatched: %w", seq, err)
	}
	return nil
}

// DiscardSuperseded closes pending entries that a later entry for the same
// item has overtaken.
func (s *Store) DiscardSuperseded(ctx context.Context) (_ int64, err error) {
	ctx, end := database.TraceQuery(ctx, "DiscardSuperseded", discardSupersededQuery)
	defer func() { end(err) }()

	tag, err := s.pool.Exec(ctx, discardSupersededQuery)
	if err != nil {
		return 0, fmt.Errorf("discard superseded outbox entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
