package collection

import (
	"fmt"
)

// SortKey selects the comparator used to order a collection.
type SortKey string

const (
	// SortNewest orders by creation time, newest first.
	SortNewest SortKey = "date_new"

	// SortID orders by identifier (oldest first for time-ordered ids).
	SortID SortKey = "date"

	// SortTitleAsc orders by title A-Z.
	SortTitleAsc SortKey = "name_a"

	// SortTitleDesc orders by title Z-A.
	SortTitleDesc SortKey = "name_d"
)

// Defaults for a freshly mounted view.
const (
	DefaultLimit = 10
	DefaultSort  = SortNewest
)

// ParseSortKey converts a user supplied value into a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNewest, SortID, SortTitleAsc, SortTitleDesc:
		return k, nil
	case "":
		return DefaultSort, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidFilter, s)
	}
}

// FilterState is the immutable query descriptor every fetch or derivation
// is computed from. Use the With* methods to obtain a modified copy; any
// change other than the page resets Page to 1.
type FilterState struct {
	// Limit is the page size (> 0).
	Limit int `json:"limit" yaml:"limit"`

	// Page is the 1-based page index.
	Page int `json:"page" yaml:"page"`

	// Search is a case-insensitive substring matched against item text.
	Search string `json:"search,omitempty" yaml:"search,omitempty"`

	// IDFilter is an id substring forwarded to the backend.
	IDFilter string `json:"id,omitempty" yaml:"id,omitempty"`

	// Sort selects the ordering.
	Sort SortKey `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// DefaultFilter returns the filter a view starts with.
func DefaultFilter() FilterState {
	return FilterState{
		Limit: DefaultLimit,
		Page:  1,
		Sort:  DefaultSort,
	}
}

// Validate reports whether the filter can drive a fetch.
func (f FilterState) Validate() error {
	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0 (got %d)", ErrInvalidFilter, f.Limit)
	}
	if f.Page < 1 {
		return fmt.Errorf("%w: page must be >= 1 (got %d)", ErrInvalidFilter, f.Page)
	}
	return nil
}

// Offset returns the number of items preceding the current page.
func (f FilterState) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// WithPage returns a copy pointing at page p (clamped to >= 1).
func (f FilterState) WithPage(p int) FilterState {
	if p < 1 {
		p = 1
	}
	f.Page = p
	return f
}

// WithLimit returns a copy with a new page size, starting from page 1.
func (f FilterState) WithLimit(limit int) FilterState {
	if f.Limit == limit {
		return f
	}
	f.Limit = limit
	f.Page = 1
	return f
}

// WithSearch returns a copy with a new search term, starting from page 1.
func (f FilterState) WithSearch(term string) FilterState {
	if f.Search == term {
		return f
	}
	f.Search = term
	f.Page = 1
	return f
}

// WithIDFilter returns a copy with a new id filter, starting from page 1.
func (f FilterState) WithIDFilter(id string) FilterState {
	if f.IDFilter == id {
		return f
	}
	f.IDFilter = id
	f.Page = 1
	return f
}

// WithSort returns a copy with a new sort key, starting from page 1.
func (f FilterState) WithSort(k SortKey) FilterState {
	if f.Sort == k {
		return f
	}
	f.Sort = k
	f.Page = 1
	return f
}
