package products

import (
	"cmp"

	"github.com/Sternrassler/shop-admin-client/pkg/collection"
)

// Comparators returns the orderings a Catalog supports. Ties keep fetch
// order because the collection sorts stably.
func Comparators() map[collection.SortKey]collection.Compare[Product] {
	return map[collection.SortKey]collection.Compare[Product]{
		collection.SortNewest: func(a, b Product) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		},
		collection.SortID: func(a, b Product) int {
			return cmp.Compare(a.ID, b.ID)
		},
		collection.SortTitleAsc: compareTitle,
		collection.SortTitleDesc: func(a, b Product) int {
			return compareTitle(b, a)
		},
	}
}

// compareTitle orders by raw byte value, so every upper-case title sorts
// before every lower-case one.
func compareTitle(a, b Product) int {
	return cmp.Compare(a.Title, b.Title)
}

// DeriveOptions returns the collection options for products: the
// comparators above, search on title, keyed by ID.
func DeriveOptions() collection.DeriveOptions[Product] {
	return collection.DeriveOptions[Product]{
		Comparators: Comparators(),
		SearchText:  func(p Product) string { return p.Title },
		Key:         func(p Product) string { return p.ID },
	}
}
