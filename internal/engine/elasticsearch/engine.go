package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
	"github.com/utafrali/catalogsearch/internal/query"
	"github.com/utafrali/catalogsearch/pkg/httpclient"
)

var (
	_ engine.IndexStore  = (*Engine)(nil)
	_ engine.BulkIndexer = (*Engine)(nil)
	_ engine.Resetter    = (*Engine)(nil)
)

// Config holds the settings of the Elasticsearch index store.
type Config struct {
	URL   string
	Index string

	// Refresh controls when writes become visible to search: "true",
	// "wait_for" or "false". Defaults to "true" so that a search issued right
	// after a committed write observes it.
	Refresh string

	// Transport carries the HTTP requests, typically a
	// httpclient.BreakerTransport. Nil uses the client default.
	Transport http.RoundTripper

	// MaxRetries is the client's retry budget for connection errors and
	// 502/503/504 responses.
	MaxRetries int
}

// Engine is an Elasticsearch-backed implementation of engine.IndexStore.
type Engine struct {
	client    *elasticsearch.Client
	indexName string
	refresh   string
	logger    *slog.Logger
}

// searchResponse is the structure used to decode Elasticsearch search responses.
type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string                `json:"_id"`
			Score     float64               `json:"_score"`
			Source    domain.SearchDocument `json:"_source"`
			Highlight map[string][]string   `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// bulkResponse is the structure used to decode Elasticsearch bulk responses.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// errorResponse is used to decode Elasticsearch error responses.
type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates an Elasticsearch engine and ensures the items index exists,
// creating it with the catalog mapping if necessary.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndexName
	}
	if cfg.Refresh == "" {
		cfg.Refresh = "true"
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{cfg.URL},
		Transport:  cfg.Transport,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}

	e := &Engine{
		client:    client,
		indexName: cfg.Index,
		refresh:   cfg.Refresh,
		logger:    logger,
	}

	if err := e.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch: ensure index: %w", err)
	}

	return e, nil
}

// IndexName returns the name of the index this engine writes to.
func (e *Engine) IndexName() string {
	return e.indexName
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return transportError("ping", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// EnsureIndex creates the items index with its mapping unless it exists.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists(
		[]string{e.indexName},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return transportError("check index exists", err)
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		e.logger.Debug("elasticsearch index already exists", slog.String("index", e.indexName))
		return nil
	}

	res, err = e.client.Indices.Create(
		e.indexName,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return transportError("create index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res)
	}

	e.logger.Info("elasticsearch index created", slog.String("index", e.indexName))
	return nil
}

// Upsert creates or replaces the document stored under id.
func (e *Engine) Upsert(ctx context.Context, id string, doc domain.SearchDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch index: marshal document: %w", err)
	}

	res, err := e.client.Index(
		e.indexName,
		bytes.NewReader(data),
		e.client.Index.WithDocumentID(id),
		e.client.Index.WithRefresh(e.refresh),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		return transportError("index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("index", res)
	}

	e.logger.DebugContext(ctx, "indexed item", slog.String("id", id))
	return nil
}

// Delete removes the document stored under id. A 404 response is treated as
// success.
func (e *Engine) Delete(ctx context.Context, id string) error {
	res, err := e.client.Delete(
		e.indexName,
		id,
		e.client.Delete.WithRefresh(e.refresh),
		e.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}

	e.logger.DebugContext(ctx, "deleted item", slog.String("id", id))
	return nil
}

// Search runs the request body produced by the query builders.
func (e *Engine) Search(ctx context.Context, req query.Request) (*engine.SearchResponse, error) {
	data, err := json.Marshal(req.Source())
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: marshal query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(bytes.NewReader(data)),
		e.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, transportError("search", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var esResp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	hits := make([]engine.Hit, 0, len(esResp.Hits.Hits))
	for _, h := range esResp.Hits.Hits {
		doc := h.Source
		if doc.ID == "" {
			doc.ID = h.ID
		}
		hits = append(hits, engine.Hit{
			ID:        h.ID,
			Score:     h.Score,
			Document:  doc,
			Highlight: h.Highlight,
		})
	}

	return &engine.SearchResponse{
		Total: esResp.Hits.Total.Value,
		Took:  time.Duration(esResp.Took) * time.Millisecond,
		Hits:  hits,
	}, nil
}

// BulkUpsert indexes many documents using the bulk NDJSON API.
func (e *Engine) BulkUpsert(ctx context.Context, docs []domain.SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		action := map[string]any{
			"index": map[string]any{
				"_index": e.indexName,
				"_id":    docs[i].ID,
			},
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode action: %w", err)
		}
		if err := enc.Encode(docs[i]); err != nil {
			return fmt.Errorf("elasticsearch bulk index: encode document: %w", err)
		}
	}

	res, err := e.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		e.client.Bulk.WithIndex(e.indexName),
		e.client.Bulk.WithRefresh(e.refresh),
		e.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return transportError("bulk index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk index", res)
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("elasticsearch bulk index: decode response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error.Type != "" {
				errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("elasticsearch bulk index: partial errors: %s", strings.Join(errMsgs, "; "))
	}

	e.logger.InfoContext(ctx, "bulk indexed items", slog.Int("count", len(docs)))
	return nil
}

// DeleteIndex removes the entire index. A 404 response is treated as success.
func (e *Engine) DeleteIndex(ctx context.Context) error {
	res, err := e.client.Indices.Delete(
		[]string{e.indexName},
		e.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return transportError("delete index", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete index", res)
	}

	e.logger.Info("elasticsearch index deleted", slog.String("index", e.indexName))
	return nil
}

// Reset drops the index and recreates it empty with the current mapping.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.DeleteIndex(ctx); err != nil {
		return err
	}
	return e.EnsureIndex(ctx)
}

// transportError wraps a failure to get any response. An open circuit is
// reported as engine.ErrUnavailable.
func transportError(op string, err error) error {
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return fmt.Errorf("elasticsearch %s: %w: %w", op, engine.ErrUnavailable, err)
	}
	return fmt.Errorf("elasticsearch %s: %w", op, err)
}

// responseError describes an error response. 503 is reported as
// engine.ErrUnavailable.
func responseError(op string, res *esapi.Response) error {
	var reason string
	var errResp errorResponse
	if err := json.NewDecoder(res.Body).Decode(&errResp); err == nil && errResp.Error.Type != "" {
		reason = errResp.Error.Type + ": " + errResp.Error.Reason
	} else {
		reason = "unexpected status " + res.Status()
	}

	if res.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("elasticsearch %s: %w: %s", op, engine.ErrUnavailable, reason)
	}
	return fmt.Errorf("elasticsearch %s: %s", op, reason)
}
