package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogsearch/internal/config"
)

func newMemoryApp(t *testing.T, extra map[string]string) *App {
	t.Helper()
	env := map[string]string{
		"STORE_BACKEND":        config.BackendMemory,
		"SEARCH_ENGINE":        config.EngineMemory,
		"OUTBOX_POLL_INTERVAL": "0s",
	}
	for k, v := range extra {
		env[k] = v
	}
	cfg, err := config.LoadFrom(env)
	require.NoError(t, err)

	a, err := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestApp_InlineSyncMakesItemsSearchable(t *testing.T) {
	a := newMemoryApp(t, map[string]string{"HIGHLIGHT_PRE_TAG": "<mark>", "HIGHLIGHT_POST_TAG": "</mark>"})
	h := a.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items",
		strings.NewReader(`{"name":"SnackA","description":"salty","price":150,"rating":4.5,"category":"snacks"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/search?query=snacka", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []struct {
			Name            string  `json:"name"`
			HighlightedName *string `json:"highlighted_name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Data[0].HighlightedName)
	assert.Equal(t, "<mark>SnackA</mark>", *resp.Data[0].HighlightedName)
}

func TestApp_ReadinessReportsIndex(t *testing.T) {
	a := newMemoryApp(t, nil)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"memory"`)
}
