package repository

import (
	"context"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
)

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, uow UnitOfWork) error

// Hook runs after the unit of work that registered it has committed.
type Hook func(ctx context.Context) error

// Store is the authoritative item store.
type Store interface {
	// WithinTx runs fn in a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise. Hooks registered through
	// UnitOfWork.AfterCommit run only after a successful commit; their
	// failures are reported as *AfterCommitError.
	WithinTx(ctx context.Context, fn TxFunc) error

	// FindPage returns items ordered by creation time then id.
	FindPage(ctx context.Context, offset, limit int) ([]domain.CatalogItem, error)

	// Count returns the number of stored items.
	Count(ctx context.Context) (int64, error)

	// Each visits every item in creation order, batchSize items at a time.
	Each(ctx context.Context, batchSize int, fn func([]domain.CatalogItem) error) error

	// PendingOutbox returns undispatched outbox entries that occurred before
	// olderThan, in sequence order. Entries superseded by a later entry for
	// the same item are never returned.
	PendingOutbox(ctx context.Context, olderThan time.Time, limit int) ([]domain.Envelope, error)

	// DiscardSuperseded marks every undispatched entry that has a later entry
	// for the same item as dispatched and returns how many it closed. The
	// latest entry of an item carries its final state, so replaying an older
	// one could only move the index backwards.
	DiscardSuperseded(ctx context.Context) (int64, error)

	// MarkDispatched records that the outbox entry has been applied.
	MarkDispatched(ctx context.Context, seq int64) error
}

// UnitOfWork is the transactional view handed to a TxFunc.
type UnitOfWork interface {
	// Insert stores a new item.
	Insert(ctx context.Context, item domain.CatalogItem) error

	// BulkInsert stores items in order.
	BulkInsert(ctx context.Context, items []domain.CatalogItem) error

	// DeleteByID removes an item. A missing id yields apperrors.ErrNotFound.
	DeleteByID(ctx context.Context, id string) error

	// Record appends the event to the outbox and returns its envelope.
	Record(ctx context.Context, event domain.DomainEvent) (domain.Envelope, error)

	// AfterCommit registers a hook to run once the transaction commits.
	// Hooks run in registration order and are discarded on rollback.
	AfterCommit(hook Hook)
}
