// Package products serves the product catalogue: a collection that is
// fetched once and then sorted, searched and paged in memory.
package products

import (
	"time"

	"github.com/Sternrassler/shop-admin-client/pkg/money"
)

// Product is a catalogue entry as served by the shop API.
type Product struct {
	ID          string      `json:"_id"`
	Title       string      `json:"title"`
	Price       money.Cents `json:"price"`
	CreatedAt   time.Time   `json:"createdAt"`
	Image       string      `json:"image,omitempty"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category,omitempty"`
}
