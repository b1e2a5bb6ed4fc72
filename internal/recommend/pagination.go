package recommend

import "math"

// Window is the slice of a candidate pool covered by one page.
type Window struct {
	Skip       int `json:"skip"`
	TotalPages int `json:"total_pages"`
}

// Paginate computes the page window over total candidates. Pages below 1
// are treated as page 1 and limits below 1 as 1. Skip saturates at
// math.MaxInt instead of wrapping, so a huge page is always beyond the last.
func Paginate(total, page, limit int) Window {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if total < 0 {
		total = 0
	}
	skip := math.MaxInt
	if page-1 <= math.MaxInt/limit {
		skip = (page - 1) * limit
	}
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return Window{Skip: skip, TotalPages: totalPages}
}

// Beyond reports whether page lies past the last page.
func (w Window) Beyond(page int) bool {
	return page > w.TotalPages
}
