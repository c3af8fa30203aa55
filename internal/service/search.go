package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
	"github.com/utafrali/catalogsearch/internal/query"
	apperrors "github.com/utafrali/catalogsearch/pkg/errors"
	"github.com/utafrali/catalogsearch/pkg/pagination"
)

// Default highlight markers placed around matched terms of the name.
const (
	DefaultPreTag  = "<b>"
	DefaultPostTag = "</b>"
)

// SearchConfig holds the query-time settings of the search service.
type SearchConfig struct {
	PreTag  string
	PostTag string
}

// SearchService answers full-text search and autocomplete from the index.
type SearchService struct {
	index   engine.IndexStore
	preTag  string
	postTag string
	logger  *slog.Logger
}

// NewSearchService creates a new search service. Empty tags select
// DefaultPreTag and DefaultPostTag.
func NewSearchService(index engine.IndexStore, cfg SearchConfig, logger *slog.Logger) *SearchService {
	if cfg.PreTag == "" {
		cfg.PreTag = DefaultPreTag
	}
	if cfg.PostTag == "" {
		cfg.PostTag = DefaultPostTag
	}
	return &SearchService{
		index:   index,
		preTag:  cfg.PreTag,
		postTag: cfg.PostTag,
		logger:  logger,
	}
}

// Search runs the ranked, filtered and highlighted item query and projects
// the hits in relevance order. An inverted price range is passed through and
// simply matches nothing.
func (s *SearchService) Search(ctx context.Context, p domain.SearchParams) ([]domain.SearchResult, error) {
	text := strings.TrimSpace(p.Query)
	if text == "" {
		return nil, apperrors.InvalidInput("query is required")
	}

	minPrice, err := priceBound("min_price", p.MinPrice, domain.DefaultMinPrice)
	if err != nil {
		return nil, err
	}
	maxPrice, err := priceBound("max_price", p.MaxPrice, domain.DefaultMaxPrice)
	if err != nil {
		return nil, err
	}

	var category string
	if p.Category != nil && strings.TrimSpace(*p.Category) != "" {
		category = *p.Category
	}

	w := pagination.SearchPolicy.Resolve(p.Page, p.Size)

	req := query.SearchItems(query.ItemSearch{
		Text:     text,
		Category: category,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		From:     w.Offset,
		Size:     w.Size,
		PreTag:   s.preTag,
		PostTag:  s.postTag,
	})

	resp, err := s.index.Search(ctx, req)
	if err != nil {
		return nil, searchError("search items", err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		results = append(results, toResult(h))
	}

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", text),
		slog.Int("page", w.Page),
		slog.Int("size", w.Size),
		slog.Int("total", resp.Total),
		slog.Int64("took_ms", resp.Took.Milliseconds()),
	)

	return results, nil
}

// Suggest returns up to domain.SuggestLimit item names completing prefix, in
// ranking order. Duplicate names are kept.
func (s *SearchService) Suggest(ctx context.Context, prefix string) ([]string, error) {
	text := strings.TrimSpace(prefix)
	if text == "" {
		return nil, apperrors.InvalidInput("query is required")
	}

	resp, err := s.index.Search(ctx, query.SuggestNames(text, domain.SuggestLimit))
	if err != nil {
		return nil, searchError("suggest names", err)
	}

	names := make([]string, 0, min(len(resp.Hits), domain.SuggestLimit))
	for _, h := range resp.Hits {
		if len(names) == domain.SuggestLimit {
			break
		}
		names = append(names, h.Document.Name)
	}
	return names, nil
}

// toResult projects a hit. HighlightedName is the first name fragment, or nil
// when the index returned none.
func toResult(h engine.Hit) domain.SearchResult {
	r := domain.SearchResult{
		ID:          h.ID,
		Name:        h.Document.Name,
		Description: h.Document.Description,
		Price:       h.Document.Price,
		Rating:      h.Document.Rating,
		Category:    h.Document.Category,
	}
	if frags := h.Highlight[query.FieldName]; len(frags) > 0 {
		name := frags[0]
		r.HighlightedName = &name
	}
	return r
}

func priceBound(name string, v *float64, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, apperrors.InvalidInput(name + " must be a finite number")
	}
	return *v, nil
}

func searchError(op string, err error) error {
	if errors.Is(err, engine.ErrUnavailable) {
		return apperrors.Unavailable("search index", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
