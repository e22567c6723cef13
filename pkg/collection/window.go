package collection

// WindowRadius is how many page indices are shown on each side of the
// current page.
const WindowRadius = 3

// Window is the navigation state derived from (page, total, limit).
type Window struct {
	// CurrentPage is the page the window is centred on, clamped into
	// 1..TotalPages when there is at least one page.
	CurrentPage int `json:"current_page"`

	// TotalPages is ceil(totalItems / limit).
	TotalPages int `json:"total_pages"`

	// Pages lists the navigable indices around CurrentPage in ascending order.
	Pages []int `json:"pages"`

	CanFirst bool `json:"can_first"`
	CanPrev  bool `json:"can_prev"`
	CanNext  bool `json:"can_next"`
	CanLast  bool `json:"can_last"`
}

// ComputeWindow derives the page window. It is pure: the same triple
// always yields the same Window.
func ComputeWindow(currentPage, totalItems, limit int) Window {
	totalPages := 0
	if limit > 0 && totalItems > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}

	if currentPage < 1 {
		currentPage = 1
	}
	if totalPages > 0 && currentPage > totalPages {
		currentPage = totalPages
	}

	lo := max(1, currentPage-WindowRadius)
	hi := min(totalPages, currentPage+WindowRadius)

	var pages []int
	if hi >= lo {
		pages = make([]int, 0, hi-lo+1)
		for p := lo; p <= hi; p++ {
			pages = append(pages, p)
		}
	}

	return Window{
		CurrentPage: currentPage,
		TotalPages:  totalPages,
		Pages:       pages,
		CanFirst:    currentPage > 1,
		CanPrev:     currentPage > 1,
		CanNext:     currentPage < totalPages,
		CanLast:     currentPage < totalPages,
	}
}

// Contains reports whether p is a valid navigation target.
func (w Window) Contains(p int) bool {
	return p >= 1 && p <= w.TotalPages
}
