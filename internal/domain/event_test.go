package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_RoundTripThroughOutboxPayload(t *testing.T) {
	created := ItemCreated{Item: CatalogItem{
		ID:        "a1",
		Name:      "SnackA",
		Price:     150,
		Rating:    4.5,
		Category:  "snacks",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	payload, err := MarshalEvent(created)
	require.NoError(t, err)

	got, err := UnmarshalEvent(created.EventType(), payload)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "a1", got.AggregateID())
}

func TestUnmarshalEvent_Deleted(t *testing.T) {
	got, err := UnmarshalEvent(EventItemDeleted, []byte(`{"id":"x9"}`))

	require.NoError(t, err)
	assert.Equal(t, ItemDeleted{ID: "x9"}, got)
}

func TestUnmarshalEvent_UnknownType(t *testing.T) {
	_, err := UnmarshalEvent("item.updated", []byte(`{}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestUnmarshalEvent_BadPayload(t *testing.T) {
	_, err := UnmarshalEvent(EventItemCreated, []byte(`{`))

	assert.Error(t, err)
}

func TestNewSearchDocument(t *testing.T) {
	item := CatalogItem{ID: "1", Name: "n", Description: "d", Price: 10, Rating: 3.5, Category: "c", CreatedAt: time.Now()}

	doc := NewSearchDocument(item)

	assert.Equal(t, SearchDocument{ID: "1", Name: "n", Description: "d", Price: 10, Rating: 3.5, Category: "c"}, doc)
}
