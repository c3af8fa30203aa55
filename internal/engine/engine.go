package engine

import (
	"context"
	"errors"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/query"
)

// ErrUnavailable marks a search index that refuses requests right now, e.g.
// because its circuit breaker is open.
var ErrUnavailable = errors.New("search index unavailable")

// Hit is one ranked document returned by a search.
type Hit struct {
	ID        string
	Score     float64
	Document  domain.SearchDocument
	Highlight map[string][]string
}

// SearchResponse holds the hits of a search in ranking order.
type SearchResponse struct {
	Total int
	Took  time.Duration
	Hits  []Hit
}

// IndexStore is the search index holding one SearchDocument per item.
// Implementations may use Elasticsearch or in-memory storage.
type IndexStore interface {
	// Upsert creates or replaces the document stored under id.
	Upsert(ctx context.Context, id string, doc domain.SearchDocument) error

	// Delete removes the document stored under id. A missing document is
	// not an error.
	Delete(ctx context.Context, id string) error

	// Search runs the request and returns hits in relevance order.
	Search(ctx context.Context, req query.Request) (*SearchResponse, error)

	// Ping reports whether the index is reachable.
	Ping(ctx context.Context) error
}

// BulkIndexer is implemented by stores that can load many documents in one
// round trip. It is used to rebuild the index from the authoritative store.
type BulkIndexer interface {
	BulkUpsert(ctx context.Context, docs []domain.SearchDocument) error
}

// Resetter is implemented by stores that can drop and recreate their index.
type Resetter interface {
	Reset(ctx context.Context) error
}
