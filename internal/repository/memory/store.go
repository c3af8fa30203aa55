package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/repository"
	apperrors "github.com/utafrali/catalogsearch/pkg/errors"
)

var _ repository.Store = (*Store)(nil)

type outboxEntry struct {
	env        domain.Envelope
	dispatched bool
}

// Store is an in-memory implementation of repository.Store. Units of work are
// serialized; staged changes become visible atomically on commit.
type Store struct {
	txMu sync.Mutex

	mu      sync.RWMutex
	items   map[string]domain.CatalogItem
	outbox  []outboxEntry
	lastSeq int64
	now     func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		items: make(map[string]domain.CatalogItem),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn against a staging area and applies it on success.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	s.txMu.Lock()
	uow := &unitOfWork{store: s, inserted: map[string]domain.CatalogItem{}, deleted: map[string]bool{}}
	err := fn(ctx, uow)
	if err == nil {
		s.commit(uow)
	}
	s.txMu.Unlock()

	if err != nil {
		return err
	}
	return uow.hooks.Run(ctx)
}

func (s *Store) commit(u *unitOfWork) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range u.deleted {
		delete(s.items, id)
	}
	for _, id := range u.order {
		if it, ok := u.inserted[id]; ok {
			s.items[id] = it
		}
	}
	for _, env := range u.events {
		s.outbox = append(s.outbox, outboxEntry{env: env})
		s.lastSeq = env.Seq
	}
}

// FindPage returns items ordered by creation time then id.
func (s *Store) FindPage(_ context.Context, offset, limit int) ([]domain.CatalogItem, error) {
	all := s.sorted()
	if offset >= len(all) || limit <= 0 {
		return nil, nil
	}
	end := len(all)
	if limit < end-offset {
		end = offset + limit
	}
	return all[offset:end], nil
}

// Count returns the number of stored items.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

// Each visits a snapshot of the items in creation order.
func (s *Store) Each(_ context.Context, batchSize int, fn func([]domain.CatalogItem) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	for batch := range slices.Chunk(s.sorted(), batchSize) {
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

// PendingOutbox returns undispatched entries older than olderThan, skipping
// entries superseded by a later entry for the same item.
func (s *Store) PendingOutbox(_ context.Context, olderThan time.Time, limit int) ([]domain.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := s.latestSeqs()
	var out []domain.Envelope
	for _, e := range s.outbox {
		if len(out) >= limit {
			break
		}
		if e.dispatched || !e.env.OccurredAt.Before(olderThan) {
			continue
		}
		if e.env.Seq < latest[e.env.Event.AggregateID()] {
			continue
		}
		out = append(out, e.env)
	}
	return out, nil
}

// DiscardSuperseded marks pending entries overtaken by a later entry for the
// same item as dispatched.
func (s *Store) DiscardSuperseded(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.latestSeqs()
	var n int64
	for i, e := range s.outbox {
		if !e.dispatched && e.env.Seq < latest[e.env.Event.AggregateID()] {
			s.outbox[i].dispatched = true
			n++
		}
	}
	return n, nil
}

// latestSeqs maps each item id to the sequence of its newest outbox entry.
// Callers hold s.mu.
func (s *Store) latestSeqs() map[string]int64 {
	latest := make(map[string]int64)
	for _, e := range s.outbox {
		id := e.env.Event.AggregateID()
		latest[id] = max(latest[id], e.env.Seq)
	}
	return latest
}

// MarkDispatched flags the entry as applied.
func (s *Store) MarkDispatched(_ context.Context, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, found := slices.BinarySearchFunc(s.outbox, seq, func(e outboxEntry, seq int64) int {
		return cmp.Compare(e.env.Seq, seq)
	})
	if found {
		s.outbox[i].dispatched = true
	}
	return nil
}

func (s *Store) sorted() []domain.CatalogItem {
	s.mu.RLock()
	all := make([]domain.CatalogItem, 0, len(s.items))
	for _, it := range s.items {
		all = append(all, it)
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.CatalogItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return all
}

// unitOfWork stages changes until the surrounding WithinTx commits.
type unitOfWork struct {
	store    *Store
	inserted map[string]domain.CatalogItem
	order    []string
	deleted  map[string]bool
	events   []domain.Envelope
	hooks    repository.Hooks
}

func (u *unitOfWork) exists(id string) bool {
	if _, ok := u.inserted[id]; ok {
		return true
	}
	if u.deleted[id] {
		return false
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	_, ok := u.store.items[id]
	return ok
}

func (u *unitOfWork) Insert(_ context.Context, item domain.CatalogItem) error {
	if u.exists(item.ID) {
		return apperrors.AlreadyExists("item", "id", item.ID)
	}
	u.inserted[item.ID] = item
	u.order = append(u.order, item.ID)
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

func (u *unitOfWork) DeleteByID(_ context.Context, id string) error {
	if !u.exists(id) {
		return apperrors.NotFound("item", id)
	}
	delete(u.inserted, id)
	u.deleted[id] = true
	return nil
}

func (u *unitOfWork) Record(_ context.Context, event domain.DomainEvent) (domain.Envelope, error) {
	u.store.mu.RLock()
	seq := u.store.lastSeq + int64(len(u.events)) + 1
	u.store.mu.RUnlock()

	env := domain.Envelope{Seq: seq, OccurredAt: u.store.now(), Event: event}
	u.events = append(u.events, env)
	return env, nil
}

func (u *unitOfWork) AfterCommit(hook repository.Hook) {
	u.hooks.Add(hook)
}
