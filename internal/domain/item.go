package domain

import (
	"time"
)

// CatalogItem is an item in the authoritative store. Items are never updated
// in place; they are created and deleted by id.
type CatalogItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Rating      float64   `json:"rating"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}
