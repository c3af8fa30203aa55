package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalogsearch/internal/repository"
	"github.com/utafrali/catalogsearch/pkg/database"
)

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.UnitOfWork = (*unitOfWork)(nil)
)

// Store implements repository.Store using PostgreSQL.
type Store struct {
	pool database.DBTX
}

// NewStore creates a new PostgreSQL-backed store.
func NewStore(pool database.DBTX) *Store {
	return &Store{pool: pool}
}

// WithinTx runs fn inside one transaction and fires the registered hooks
// after commit.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	uow := &unitOfWork{tx: tx}
	if err := fn(ctx, uow); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return uow.hooks.Run(ctx)
}

// unitOfWork is the transactional view over a single pgx.Tx.
type unitOfWork struct {
	tx    pgx.Tx
	hooks repository.Hooks
}

func (u *unitOfWork) AfterCommit(hook repository.Hook) {
	u.hooks.Add(hook)
}
