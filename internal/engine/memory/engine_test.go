package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/query"
)

func newTestDoc(name, description, category string, price int64, rating float64) domain.SearchDocument {
	return domain.SearchDocument{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		Price:       price,
		Rating:      rating,
		Category:    category,
	}
}

func search(text string) query.ItemSearch {
	return query.ItemSearch{Text: text, MaxPrice: domain.DefaultMaxPrice, Size: 20, PreTag: "<b>", PostTag: "</b>"}
}

func index(t *testing.T, eng *Engine, docs ...domain.SearchDocument) {
	t.Helper()
	require.NoError(t, eng.BulkUpsert(context.Background(), docs))
}

type rawQuery map[string]any

func (r rawQuery) Source() map[string]any { return r }

func TestEngine_SearchExactMatchWithHighlight(t *testing.T) {
	eng := New()
	d := newTestDoc("SnackA", "salty crunchy snack", "snacks", 150, 4.5)
	index(t, eng, d)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("SnackA")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, d, resp.Hits[0].Document)
	assert.Equal(t, []string{"<b>SnackA</b>"}, resp.Hits[0].Highlight["name"])
}

func TestEngine_SearchCaseInsensitive(t *testing.T) {
	eng := New()
	d := newTestDoc("Wireless BLUETOOTH Headphones", "audio", "audio", 9999, 4)
	index(t, eng, d)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("bluetooth")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, []string{"Wireless <b>BLUETOOTH</b> Headphones"}, resp.Hits[0].Highlight["name"])
}

func TestEngine_SearchFuzzy(t *testing.T) {
	eng := New()
	d := newTestDoc("Headphones", "noise cancelling", "audio", 9999, 4)
	index(t, eng, d)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("headphnes")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, d.ID, resp.Hits[0].ID)
	assert.Equal(t, []string{"<b>Headphones</b>"}, resp.Hits[0].Highlight["name"])
}

func TestEngine_SearchShortTermsAreNotFuzzy(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("Cap", "", "hats", 100, 3))

	resp, err := eng.Search(context.Background(), query.SearchItems(search("ca")))

	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestEngine_SearchNoMatch(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("Laptop", "fast", "electronics", 1000, 4))

	resp, err := eng.Search(context.Background(), query.SearchItems(search("keyboard")))

	require.NoError(t, err)
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Hits)
}

func TestEngine_HighlightAbsentWhenNameDidNotMatch(t *testing.T) {
	eng := New()
	d := newTestDoc("Crunchy Bar", "salty treat", "snacks", 250, 3)
	index(t, eng, d)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("salty")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Nil(t, resp.Hits[0].Highlight)
}

func TestEngine_HighlightDefaultTags(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("Desk Lamp", "", "home", 100, 3))

	s := search("lamp")
	s.PreTag, s.PostTag = "", ""
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, []string{"Desk <em>Lamp</em>"}, resp.Hits[0].Highlight["name"])
}

func TestEngine_FilterByCategory(t *testing.T) {
	eng := New()
	laptop := newTestDoc("Laptop", "a fast laptop", "electronics", 99999, 4.8)
	bag := newTestDoc("Laptop Bag", "a bag for laptops", "accessories", 2999, 4.1)
	index(t, eng, laptop, bag)

	s := search("laptop")
	s.Category = "electronics"
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, laptop.ID, resp.Hits[0].ID)
}

func TestEngine_CategoryFilterIsExact(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("Laptop", "", "Electronics", 1000, 4))

	s := search("laptop")
	s.Category = "electronics"
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
}

func TestEngine_FilterByPriceRange(t *testing.T) {
	eng := New()
	budget := newTestDoc("Budget Phone", "", "phones", 19999, 3)
	mid := newTestDoc("Mid Phone", "", "phones", 49999, 3)
	premium := newTestDoc("Premium Phone", "", "phones", 99999, 3)
	index(t, eng, budget, mid, premium)

	s := search("phone")
	s.MinPrice, s.MaxPrice = 20000, 60000
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, mid.ID, resp.Hits[0].ID)
}

func TestEngine_PriceBoundsAreInclusive(t *testing.T) {
	eng := New()
	d := newTestDoc("Edge Item", "", "misc", 500, 3)
	index(t, eng, d)

	s := search("edge")
	s.MinPrice, s.MaxPrice = 500, 500
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
}

func TestEngine_InvertedPriceRangeMatchesNothing(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("Range Item", "", "misc", 100, 1))

	s := search("range")
	s.MinPrice, s.MaxPrice = 500, 10
	resp, err := eng.Search(context.Background(), query.SearchItems(s))

	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
	assert.Equal(t, 0, resp.Total)
}

func TestEngine_HighRatingRanksFirst(t *testing.T) {
	eng := New()
	low := newTestDoc("Widget", "", "tools", 100, 3.0)
	high := newTestDoc("Widget", "", "tools", 100, 4.5)
	edge := newTestDoc("Widget", "", "tools", 100, 4.0)
	index(t, eng, low, high, edge)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("widget")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 3)
	assert.Equal(t, high.ID, resp.Hits[0].ID)
	assert.Greater(t, resp.Hits[0].Score, resp.Hits[1].Score)
	assert.Equal(t, resp.Hits[1].Score, resp.Hits[2].Score)
}

func TestEngine_NameOutranksDescription(t *testing.T) {
	eng := New()
	byName := newTestDoc("Kettle", "", "kitchen", 100, 3)
	byDescription := newTestDoc("Boiler", "an electric kettle", "kitchen", 100, 3)
	index(t, eng, byDescription, byName)

	resp, err := eng.Search(context.Background(), query.SearchItems(search("kettle")))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, byName.ID, resp.Hits[0].ID)
	assert.Equal(t, byDescription.ID, resp.Hits[1].ID)
}

func TestEngine_Pagination(t *testing.T) {
	eng := New()
	for i := range 5 {
		index(t, eng, newTestDoc("Paginated Item", "page test", "misc", int64(1000*(i+1)), 2))
	}
	ctx := context.Background()

	s := search("paginated")
	s.Size = 2
	resp, err := eng.Search(ctx, query.SearchItems(s))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Hits, 2)

	s.From = 4
	resp, err = eng.Search(ctx, query.SearchItems(s))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Hits, 1)

	s.From = 20
	resp, err = eng.Search(ctx, query.SearchItems(s))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Empty(t, resp.Hits)
}

func TestEngine_SuggestPrefix(t *testing.T) {
	eng := New()
	for i := range 7 {
		index(t, eng, newTestDoc(fmt.Sprintf("Suggestible Laptop %d", i), "", "electronics", 100, 1))
	}
	index(t, eng, newTestDoc("Unrelated", "", "misc", 1, 1))

	resp, err := eng.Search(context.Background(), query.SuggestNames("sugg", domain.SuggestLimit))

	require.NoError(t, err)
	assert.Equal(t, 7, resp.Total)
	require.Len(t, resp.Hits, domain.SuggestLimit)
	for _, h := range resp.Hits {
		assert.Contains(t, h.Document.Name, "Suggestible")
		assert.Nil(t, h.Highlight)
	}
}

func TestEngine_SuggestMultiTermPrefix(t *testing.T) {
	eng := New()
	full := newTestDoc("Wireless Headphones", "", "audio", 100, 1)
	partial := newTestDoc("Wired Headset", "", "audio", 100, 1)
	other := newTestDoc("Speaker", "", "audio", 100, 1)
	index(t, eng, partial, other, full)

	resp, err := eng.Search(context.Background(), query.SuggestNames("wireless hea", domain.SuggestLimit))

	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, full.ID, resp.Hits[0].ID)
	assert.Equal(t, partial.ID, resp.Hits[1].ID)
}

func TestEngine_UpsertReplacesExisting(t *testing.T) {
	eng := New()
	ctx := context.Background()
	d := newTestDoc("Original Name", "", "misc", 1000, 1)
	require.NoError(t, eng.Upsert(ctx, d.ID, d))

	d.Name = "Updated Name"
	require.NoError(t, eng.Upsert(ctx, d.ID, d))

	resp, err := eng.Search(ctx, query.SearchItems(search("original")))
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)

	resp, err = eng.Search(ctx, query.SearchItems(search("updated")))
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, 1, eng.Len())
}

func TestEngine_DeleteAndSearch(t *testing.T) {
	eng := New()
	ctx := context.Background()
	d := newTestDoc("Deletable Product", "", "misc", 999, 1)
	index(t, eng, d)

	require.NoError(t, eng.Delete(ctx, d.ID))

	resp, err := eng.Search(ctx, query.SearchItems(search("deletable")))
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)
	_, ok := eng.Get(d.ID)
	assert.False(t, ok)
}

func TestEngine_DeleteNonExistent(t *testing.T) {
	assert.NoError(t, New().Delete(context.Background(), "non-existent-id"))
}

func TestEngine_Reset(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("A", "", "x", 1, 1), newTestDoc("B", "", "x", 1, 1))

	require.NoError(t, eng.Reset(context.Background()))

	assert.Equal(t, 0, eng.Len())
}

func TestEngine_UnsupportedClause(t *testing.T) {
	eng := New()
	index(t, eng, newTestDoc("A", "", "x", 1, 1))

	_, err := eng.Search(context.Background(), query.NewRequest(rawQuery{"geo_shape": map[string]any{}}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported clause")
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"laptop", "laptop", 0},
		{"laptop", "lpatop", 1},
		{"headphnes", "headphones", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, editDistance(tt.a, tt.b))
		})
	}
}

func TestAllowedEdits(t *testing.T) {
	assert.Equal(t, 0, allowedEdits("ab", "AUTO"))
	assert.Equal(t, 1, allowedEdits("abc", "AUTO"))
	assert.Equal(t, 1, allowedEdits("abcde", "AUTO"))
	assert.Equal(t, 2, allowedEdits("abcdef", "AUTO"))
	assert.Equal(t, 1, allowedEdits("abcdef", "1"))
	assert.Equal(t, 0, allowedEdits("abcdef", ""))
}
