package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
	"github.com/utafrali/catalogsearch/internal/query"
)

var (
	_ engine.IndexStore  = (*Engine)(nil)
	_ engine.BulkIndexer = (*Engine)(nil)
	_ engine.Resetter    = (*Engine)(nil)
)

// defaultSize mirrors the engine default when a request sets no size.
const defaultSize = 10

// Engine is an in-memory implementation of engine.IndexStore. It evaluates
// the same query DSL documents that are sent to Elasticsearch, covering the
// subset used by the catalog: bool, multi_match (best_fields with AUTO
// fuzziness, bool_prefix), term, range and name highlighting.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]domain.SearchDocument
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		docs: make(map[string]domain.SearchDocument),
	}
}

// Upsert adds or replaces a document.
func (e *Engine) Upsert(_ context.Context, id string, doc domain.SearchDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[id] = doc
	return nil
}

// BulkUpsert adds or replaces many documents.
func (e *Engine) BulkUpsert(_ context.Context, docs []domain.SearchDocument) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range docs {
		e.docs[d.ID] = d
	}
	return nil
}

// Delete removes a document by id. Missing ids are ignored.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// Reset removes every document.
func (e *Engine) Reset(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clear(e.docs)
	return nil
}

// Ping always succeeds.
func (e *Engine) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of stored documents.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// Get returns the document stored under id.
func (e *Engine) Get(id string) (domain.SearchDocument, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.docs[id]
	return d, ok
}

// Search evaluates the request against every stored document.
func (e *Engine) Search(_ context.Context, req query.Request) (*engine.SearchResponse, error) {
	start := time.Now()

	body, err := normalize(req.Source())
	if err != nil {
		return nil, err
	}
	q, ok := body["query"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("memory search: request has no query")
	}
	from := intField(body, "from", 0)
	size := intField(body, "size", defaultSize)

	e.mu.RLock()
	var hits []engine.Hit
	for id, doc := range e.docs {
		matched, score, err := evaluate(q, doc)
		if err != nil {
			e.mu.RUnlock()
			return nil, err
		}
		if matched {
			hits = append(hits, engine.Hit{ID: id, Score: score, Document: doc})
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(hits, func(a, b engine.Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	total := len(hits)
	hits = window(hits, from, size)

	if raw, ok := body["highlight"].(map[string]any); ok {
		hl := parseHighlight(raw)
		for i := range hits {
			hits[i].Highlight = hl.apply(q, hits[i].Document)
		}
	}

	return &engine.SearchResponse{
		Total: total,
		Took:  time.Since(start),
		Hits:  hits,
	}, nil
}

func window(hits []engine.Hit, from, size int) []engine.Hit {
	if from < 0 {
		from = 0
	}
	if from >= len(hits) || size <= 0 {
		return []engine.Hit{}
	}
	end := len(hits)
	if size < end-from {
		end = from + size
	}
	return hits[from:end]
}

// normalize round-trips the DSL through JSON so numbers, lists and objects
// have the same dynamic types Elasticsearch would parse.
func normalize(src map[string]any) (map[string]any, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("memory search: marshal query: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("memory search: unmarshal query: %w", err)
	}
	return out, nil
}

func intField(m map[string]any, key string, def int) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return def
}
