package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/pkg/httputil"
	"github.com/utafrali/catalogsearch/pkg/pagination"
)

// Search handles GET /api/v1/items/search
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := domain.SearchParams{Query: strings.TrimSpace(q.Get("query"))}
	if params.Query == "" {
		httputil.WriteBadParameter(w, "query is required")
		return
	}

	if v := q.Get("category"); v != "" {
		params.Category = &v
	}

	var ok bool
	if params.MinPrice, ok = priceParam(w, q.Get("min_price"), "min_price"); !ok {
		return
	}
	if params.MaxPrice, ok = priceParam(w, q.Get("max_price"), "max_price"); !ok {
		return
	}

	win, err := pagination.FromRequest(r, pagination.SearchPolicy)
	if err != nil {
		httputil.WriteBadParameter(w, err.Error())
		return
	}
	params.Page, params.Size = &win.Page, &win.Size

	results, err := h.search.Search(r.Context(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: results})
}

// Suggest handles GET /api/v1/items/suggestions
func (h *ItemHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("query"))
	if prefix == "" {
		httputil.WriteBadParameter(w, "query is required")
		return
	}

	names, err := h.search.Suggest(r.Context(), prefix)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: names})
}

// priceParam parses an optional price bound. An inverted range is not an
// error here; it simply matches nothing.
func priceParam(w http.ResponseWriter, raw, name string) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		httputil.WriteBadParameter(w, name+" must be a valid number")
		return nil, false
	}
	return &v, true
}
