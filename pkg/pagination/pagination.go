package pagination

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

// Policy holds the defaults and bounds a caller applies to page/size input.
// Pages are 1-based.
type Policy struct {
	DefaultPage int
	MinPage     int
	DefaultSize int
	MinSize     int
	MaxSize     int
}

var (
	// SearchPolicy is used by full-text search.
	SearchPolicy = Policy{DefaultPage: 1, MinPage: 1, DefaultSize: 5, MinSize: 1, MaxSize: 100}

	// ListingPolicy is used by the authoritative-store listing endpoint.
	ListingPolicy = Policy{DefaultPage: 1, MinPage: 1, DefaultSize: 10, MinSize: 1, MaxSize: 100}
)

// Window is a normalized page request.
type Window struct {
	Page   int `json:"page"`
	Size   int `json:"size"`
	Offset int `json:"-"`
}

// Resolve applies the policy to optional page and size values. It never
// fails: nil selects the default, out-of-range values are clamped, and the
// offset saturates at math.MaxInt instead of overflowing.
func (p Policy) Resolve(page, size *int) Window {
	pg := p.DefaultPage
	if page != nil {
		pg = *page
	}
	if pg < p.MinPage {
		pg = p.MinPage
	}

	sz := p.DefaultSize
	if size != nil {
		sz = *size
	}
	if sz < p.MinSize {
		sz = p.MinSize
	}
	if sz > p.MaxSize {
		sz = p.MaxSize
	}

	return Window{Page: pg, Size: sz, Offset: offset(pg, sz)}
}

func offset(page, size int) int {
	skip := page - 1
	if skip <= 0 || size <= 0 {
		return 0
	}
	if skip > math.MaxInt/size {
		return math.MaxInt
	}
	return skip * size
}

// FromRequest reads the "page" and "size" query parameters and resolves them
// against the policy. Absent parameters take the policy defaults; parameters
// that are present but not integers are reported as errors.
func FromRequest(r *http.Request, p Policy) (Window, error) {
	q := r.URL.Query()

	page, err := optionalInt(q.Get("page"))
	if err != nil {
		return Window{}, fmt.Errorf("page: %w", err)
	}
	size, err := optionalInt(q.Get("size"))
	if err != nil {
		return Window{}, fmt.Errorf("size: %w", err)
	}

	return p.Resolve(page, size), nil
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("must be an integer, got %q", raw)
	}
	return &v, nil
}
