package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/repository"
	apperrors "github.com/utafrali/catalogsearch/pkg/errors"
	"github.com/utafrali/catalogsearch/pkg/pagination"
)

// Publisher delivers a committed event, normally *event.Bus.
type Publisher interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

// CatalogService owns the write path of the catalog. Every mutation runs in
// one unit of work that also records its event in the outbox; the event is
// published only after the commit.
type CatalogService struct {
	store     repository.Store
	publisher Publisher
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store repository.Store, publisher Publisher, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateItemInput holds the parameters for creating an item.
type CreateItemInput struct {
	Name        string
	Description string
	Price       int64
	Rating      float64
	Category    string
}

func validateItem(in CreateItemInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.InvalidInput("item name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return apperrors.InvalidInput("item category is required")
	}
	if in.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}
	if math.IsNaN(in.Rating) || math.IsInf(in.Rating, 0) {
		return apperrors.InvalidInput("rating must be a finite number")
	}
	if in.Rating < 0 {
		return apperrors.InvalidInput("rating must not be negative")
	}
	return nil
}

func (s *CatalogService) newItem(in CreateItemInput, now time.Time) domain.CatalogItem {
	return domain.CatalogItem{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Rating:      in.Rating,
		Category:    in.Category,
		CreatedAt:   now,
	}
}

// Create stores a new item and emits ItemCreated after the commit.
func (s *CatalogService) Create(ctx context.Context, in CreateItemInput) (*domain.CatalogItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}

	item := s.newItem(in, s.nowFunc())

	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.Insert(ctx, item); err != nil {
			return err
		}
		return s.record(ctx, uow, domain.ItemCreated{Item: item})
	})
	if err != nil {
		return nil, s.mutationError(ctx, "create item", item.ID, err)
	}

	s.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID),
		slog.String("category", item.Category),
	)

	return &item, nil
}

// CreateBatch stores all items in one unit of work and emits one ItemCreated
// per item, in input order, after the commit.
func (s *CatalogService) CreateBatch(ctx context.Context, inputs []CreateItemInput) ([]domain.CatalogItem, error) {
	if len(inputs) == 0 {
		return nil, apperrors.InvalidInput("at least one item is required")
	}
	for i, in := range inputs {
		if err := validateItem(in); err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, apperrors.InvalidInput(fmt.Sprintf("item %d: %s", i, appErr.Message))
			}
			return nil, err
		}
	}

	now := s.nowFunc()
	items := make([]domain.CatalogItem, len(inputs))
	for i, in := range inputs {
		items[i] = s.newItem(in, now)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.BulkInsert(ctx, items); err != nil {
			return err
		}
		for _, item := range items {
			if err := s.record(ctx, uow, domain.ItemCreated{Item: item}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mutationError(ctx, "create item batch", "", err)
	}

	s.logger.InfoContext(ctx, "item batch created", slog.Int("count", len(items)))

	return items, nil
}

// Delete removes an item and emits ItemDeleted after the commit. Deleting an
// id the store does not hold is not an error: the event is still emitted so
// an orphaned search document is removed too.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.InvalidInput("item id is required")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		if err := uow.DeleteByID(ctx, id); err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			s.logger.DebugContext(ctx, "deleting item absent from store", slog.String("item_id", id))
		}
		return s.record(ctx, uow, domain.ItemDeleted{ID: id})
	})
	if err != nil {
		return s.mutationError(ctx, "delete item", id, err)
	}

	s.logger.InfoContext(ctx, "item deleted", slog.String("item_id", id))

	return nil
}

// List returns one page of items read from the authoritative store, ordered
// by creation time.
func (s *CatalogService) List(ctx context.Context, page, size *int) ([]domain.CatalogItem, error) {
	w := pagination.ListingPolicy.Resolve(page, size)

	items, err := s.store.FindPage(ctx, w.Offset, w.Size)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []domain.CatalogItem{}
	}
	return items, nil
}

// record writes the event to the outbox and schedules its publication for
// after the commit.
func (s *CatalogService) record(ctx context.Context, uow repository.UnitOfWork, ev domain.DomainEvent) error {
	env, err := uow.Record(ctx, ev)
	if err != nil {
		return fmt.Errorf("record %s: %w", ev.EventType(), err)
	}
	uow.AfterCommit(func(ctx context.Context) error {
		return s.publisher.Publish(ctx, env)
	})
	return nil
}

// mutationError separates "committed but not yet indexed" from "not
// persisted at all".
func (s *CatalogService) mutationError(ctx context.Context, op, id string, err error) error {
	if repository.IsAfterCommit(err) {
		s.logger.ErrorContext(ctx, "mutation committed but index sync failed",
			slog.String("op", op),
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		return apperrors.IndexSyncFailed("item", id, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
