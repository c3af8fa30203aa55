package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/engine"
	memengine "github.com/utafrali/catalogsearch/internal/engine/memory"
	"github.com/utafrali/catalogsearch/internal/event"
	"github.com/utafrali/catalogsearch/internal/indexsync"
	"github.com/utafrali/catalogsearch/internal/query"
	memstore "github.com/utafrali/catalogsearch/internal/repository/memory"
	"github.com/utafrali/catalogsearch/internal/service"
	"github.com/utafrali/catalogsearch/pkg/health"
	"github.com/utafrali/catalogsearch/pkg/httputil"
	"github.com/utafrali/catalogsearch/pkg/middleware"
)

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

type testEnv struct {
	store  *memstore.Store
	index  engine.IndexStore
	bus    *event.Bus
	router http.Handler
}

type option func(*testEnv)

// withIndex replaces the in-memory search index.
func withIndex(idx engine.IndexStore) option {
	return func(e *testEnv) { e.index = idx }
}

// withSyncError makes every post-commit publication fail.
func withSyncError(err error) option {
	return func(e *testEnv) {
		e.bus.Subscribe(func(context.Context, domain.Envelope) error { return err })
	}
}

func newTestEnv(t *testing.T, opts ...option) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		store: memstore.New(),
		index: memengine.New(),
		bus:   event.NewBus(logger),
	}
	for _, opt := range opts {
		opt(env)
	}
	env.bus.Subscribe(indexsync.New(env.index, env.store, 0, logger).Apply)

	catalog := service.NewCatalogService(env.store, env.bus, logger)
	search := service.NewSearchService(env.index, service.SearchConfig{}, logger)
	env.router = NewRouter(catalog, search, health.NewHandler(), RouterConfig{
		CORS: middleware.DefaultCORSConfig(),
	}, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (e *testEnv) create(t *testing.T, body string) domain.CatalogItem {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/v1/items", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item domain.CatalogItem
	require.NoError(t, json.Unmarshal(env.Data, &item))
	return item
}

const snackBody = `{"name":"SnackA","description":"salty crunchy snack","price":150,"rating":4.5,"category":"snacks"}`

// --- Create ---

func TestCreate_ReturnsItemWithID(t *testing.T) {
	e := newTestEnv(t)

	item := e.create(t, snackBody)

	_, err := uuid.Parse(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "SnackA", item.Name)
	assert.Equal(t, "salty crunchy snack", item.Description)
	assert.Equal(t, int64(150), item.Price)
	assert.InDelta(t, 4.5, item.Rating, 0.0001)
	assert.Equal(t, "snacks", item.Category)
}

func TestCreate_MalformedJSON(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_JSON", env.Error.Code)
}

func TestCreate_UnknownFieldIsMalformed(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items", `{"name":"a","category":"b","colour":"red"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", env.Error.Code)
}

func TestCreate_ValidationErrors(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items", `{"name":"  ","price":-1,"rating":-2,"category":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "name")
	assert.Contains(t, env.Error.Fields, "price")
	assert.Contains(t, env.Error.Fields, "rating")
	assert.NotContains(t, env.Error.Fields, "category")
}

func TestCreate_RejectsNonJSONContentType(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(snackBody))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestCreate_RejectsBodyOver1MB(t *testing.T) {
	e := newTestEnv(t)
	body := `{"name":"` + strings.Repeat("x", maxItemBodyBytes+1) + `","category":"c"}`

	rec, env := e.do(t, http.MethodPost, "/api/v1/items", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", env.Error.Code)
}

func TestCreate_IndexSyncFailed(t *testing.T) {
	e := newTestEnv(t, withSyncError(errors.New("index down")))

	rec, env := e.do(t, http.MethodPost, "/api/v1/items", snackBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INDEX_SYNC_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "persisted but not yet searchable")

	n, err := e.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// --- Bulk ---

func TestCreateBulk_ReturnsItemsInOrder(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items/bulk",
		`[{"name":"First","category":"a"},{"name":"Second","category":"b","price":5}]`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var items []domain.CatalogItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Name)
	assert.Equal(t, "Second", items[1].Name)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestCreateBulk_Empty(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items/bulk", `[]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "items")
}

func TestCreateBulk_ReportsFailingElement(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items/bulk",
		`[{"name":"ok","category":"a"},{"name":"bad","category":"a","price":-3}]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "[1].price")

	n, err := e.store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateBulk_TooManyItems(t *testing.T) {
	e := newTestEnv(t)
	elems := make([]string, maxBulkItems+1)
	for i := range elems {
		elems[i] = `{"name":"n","category":"c"}`
	}

	rec, env := e.do(t, http.MethodPost, "/api/v1/items/bulk", "["+strings.Join(elems, ",")+"]")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCreateBulk_ObjectBodyIsMalformed(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodPost, "/api/v1/items/bulk", snackBody)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", env.Error.Code)
}

// --- Delete ---

func TestDelete_NoContent(t *testing.T) {
	e := newTestEnv(t)
	item := e.create(t, snackBody)

	rec, _ := e.do(t, http.MethodDelete, "/api/v1/items/"+item.ID, "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestDelete_InvalidID(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodDelete, "/api/v1/items/not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
}

func TestDelete_UnknownIDIsNoContent(t *testing.T) {
	e := newTestEnv(t)

	rec, _ := e.do(t, http.MethodDelete, "/api/v1/items/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestDelete_IsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	item := e.create(t, snackBody)

	first, _ := e.do(t, http.MethodDelete, "/api/v1/items/"+item.ID, "")
	second, _ := e.do(t, http.MethodDelete, "/api/v1/items/"+item.ID, "")

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusNoContent, second.Code)
}

// --- List ---

func TestList_Paging(t *testing.T) {
	e := newTestEnv(t)
	for i := range 12 {
		e.create(t, fmt.Sprintf(`{"name":"Item %d","category":"c"}`, i))
	}

	_, env := e.do(t, http.MethodGet, "/api/v1/items", "")
	var items []domain.CatalogItem
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 10)

	_, env = e.do(t, http.MethodGet, "/api/v1/items?page=2&size=10", "")
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 2)
}

func TestList_EmptyIsArray(t *testing.T) {
	e := newTestEnv(t)

	rec, _ := e.do(t, http.MethodGet, "/api/v1/items", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestList_BadPage(t *testing.T) {
	e := newTestEnv(t)

	rec, env := e.do(t, http.MethodGet, "/api/v1/items?page=two", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", env.Error.Code)
}

// --- Health & metrics ---

func TestRouter_HealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_SetsCorrelationID(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set(middleware.CorrelationIDHeader, "corr-42")
	rec := httptest.NewRecorder()

	e.router.ServeHTTP(rec, req)

	assert.Equal(t, "corr-42", rec.Header().Get(middleware.CorrelationIDHeader))
}

// unavailableIndex answers every search as if its circuit breaker were open.
type unavailableIndex struct {
	engine.IndexStore
}

func (unavailableIndex) Search(context.Context, query.Request) (*engine.SearchResponse, error) {
	return nil, fmt.Errorf("breaker open: %w", engine.ErrUnavailable)
}
