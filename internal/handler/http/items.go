package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalogsearch/internal/service"
	"github.com/utafrali/catalogsearch/pkg/httputil"
	"github.com/utafrali/catalogsearch/pkg/pagination"
	"github.com/utafrali/catalogsearch/pkg/validator"
)

const (
	maxItemBodyBytes = 1 << 20
	maxBulkBodyBytes = 10 << 20
	maxBulkItems     = 500
)

// ItemHandler handles HTTP requests for the catalog item endpoints.
type ItemHandler struct {
	catalog *service.CatalogService
	search  *service.SearchService
	logger  *slog.Logger
}

// NewItemHandler creates a new item HTTP handler.
func NewItemHandler(catalog *service.CatalogService, search *service.SearchService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		catalog: catalog,
		search:  search,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateItemRequest is the JSON request body for creating an item.
type CreateItemRequest struct {
	Name        string  `json:"name" validate:"notblank,max=255"`
	Description string  `json:"description" validate:"max=5000"`
	Price       int64   `json:"price" validate:"gte=0"`
	Rating      float64 `json:"rating" validate:"gte=0"`
	Category    string  `json:"category" validate:"notblank,max=100"`
}

func (r CreateItemRequest) toInput() service.CreateItemInput {
	return service.CreateItemInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Rating:      r.Rating,
		Category:    r.Category,
	}
}

// --- Handlers ---

// List handles GET /api/v1/items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	win, err := pagination.FromRequest(r, pagination.ListingPolicy)
	if err != nil {
		httputil.WriteBadParameter(w, err.Error())
		return
	}

	items, err := h.catalog.List(r.Context(), &win.Page, &win.Size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// Create handles POST /api/v1/items
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxItemBodyBytes)

	var req CreateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	item, err := h.catalog.Create(r.Context(), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: item})
}

// CreateBulk handles POST /api/v1/items/bulk
func (h *ItemHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBulkBodyBytes)

	var reqs []CreateItemRequest
	if err := validator.Decode(r, &reqs); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	if len(reqs) > maxBulkItems {
		httputil.WriteValidationError(w, r, &validator.ValidationError{Errors: []validator.FieldError{
			{Field: "items", Message: "must contain at most 500 elements"},
		}})
		return
	}
	if err := validator.ValidateEach(reqs); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	inputs := make([]service.CreateItemInput, len(reqs))
	for i, req := range reqs {
		inputs[i] = req.toInput()
	}

	items, err := h.catalog.CreateBatch(r.Context(), inputs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: items})
}

// Delete handles DELETE /api/v1/items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
