package domain

// Search defaults applied when the caller leaves a bound unset.
const (
	DefaultMinPrice = 0.0
	DefaultMaxPrice = 1e9

	// SuggestLimit caps the number of autocomplete suggestions.
	SuggestLimit = 5
)

// SearchDocument is the projection of a CatalogItem stored in the search
// index. The document id equals the item id.
type SearchDocument struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       int64   `json:"price"`
	Rating      float64 `json:"rating"`
	Category    string  `json:"category"`
}

// NewSearchDocument maps an item onto its index document field by field.
func NewSearchDocument(item CatalogItem) SearchDocument {
	return SearchDocument{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		Rating:      item.Rating,
		Category:    item.Category,
	}
}

// SearchParams holds the inputs of a full-text search. Nil pointers select
// the defaults.
type SearchParams struct {
	Query    string
	Category *string
	MinPrice *float64
	MaxPrice *float64
	Page     *int
	Size     *int
}

// SearchResult is one ranked hit. HighlightedName is nil, and omitted on the
// wire, when the index returned no highlight fragment for the name field;
// callers fall back to Name.
type SearchResult struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	HighlightedName *string `json:"highlighted_name,omitempty"`
	Description     string  `json:"description"`
	Price           int64   `json:"price"`
	Rating          float64 `json:"rating"`
	Category        string  `json:"category"`
}
