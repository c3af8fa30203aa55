package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/pkg/database"
	apperrors "github.com/utafrali/catalogsearch/pkg/errors"
)

const itemColumns = `id, name, description, price, rating, category, created_at`

const (
	insertItemQuery = `
		INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteItemQuery = `DELETE FROM items WHERE id = $1`

	findPageQuery = `
		SELECT ` + itemColumns + `
		FROM items
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`

	countItemsQuery = `SELECT count(*) FROM items`

	itemsAfterQuery = `
		SELECT ` + itemColumns + `
		FROM items
		WHERE (created_at, id) > ($1, $2)
		ORDER BY created_at, id
		LIMIT $3`
)

// zeroUUID sorts before every generated id and seeds keyset iteration.
const zeroUUID = "00000000-0000-0000-0000-000000000000"

func (u *unitOfWork) Insert(ctx context.Context, item domain.CatalogItem) error {
	_, err := u.tx.Exec(ctx, insertItemQuery,
		item.ID,
		item.Name,
		item.Description,
		item.Price,
		item.Rating,
		item.Category,
		item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("item", "id", item.ID)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (u *unitOfWork) BulkInsert(ctx context.Context, items []domain.CatalogItem) error {
	for i, item := range items {
		if err := u.Insert(ctx, item); err != nil {
			return fmt.Errorf("bulk insert item %d: %w", i, err)
		}
	}
	return nil
}

func (u *unitOfWork) DeleteByID(ctx context.Context, id string) error {
	ct, err := u.tx.Exec(ctx, deleteItemQuery, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("item", id)
	}
	return nil
}

// FindPage returns one page of items in creation order.
func (s *Store) FindPage(ctx context.Context, offset, limit int) (_ []domain.CatalogItem, err error) {
	ctx, end := database.TraceQuery(ctx, "FindPage", findPageQuery)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, findPageQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return scanItems(rows)
}

// Count returns the total number of items.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countItemsQuery).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Each walks the table with keyset pagination so that concurrent inserts do
// not shift batches.
func (s *Store) Each(ctx context.Context, batchSize int, fn func([]domain.CatalogItem) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	afterTime, afterID := time.Time{}, zeroUUID
	for {
		rows, err := s.pool.Query(ctx, itemsAfterQuery, afterTime, afterID, batchSize)
		if err != nil {
			return fmt.Errorf("iterate items: %w", err)
		}
		batch, err := scanItems(rows)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		last := batch[len(batch)-1]
		afterTime, afterID = last.CreatedAt, last.ID
	}
}

func scanItems(rows pgx.Rows) ([]domain.CatalogItem, error) {
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var it domain.CatalogItem
		if err := rows.Scan(
			&it.ID,
			&it.Name,
			&it.Description,
			&it.Price,
			&it.Rating,
			&it.Category,
			&it.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}
	return items, nil
}

// isUniqueViolation checks whether the error is a PostgreSQL unique
// constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
