package models

// Default and maximum page sizes for catalog and recommendation requests.
const (
	DefaultLimit = 8
	MaxLimit     = 50
)

// BookQuery is a catalog search request. An empty Query lists the catalog by title.
type BookQuery struct {
	Query string `json:"query"`
	Page  int    `json:"page,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Normalize clamps page to >= 1 and limit to [1, maxLimit], substituting
// defaultLimit when limit is unset or negative. Invalid input is never rejected.
func (q *BookQuery) Normalize(defaultLimit, maxLimit int) {
	q.Page, q.Limit = NormalizePage(q.Page, q.Limit, defaultLimit, maxLimit)
}

// NormalizePage applies the shared page/limit clamping rules.
func NormalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// BookPage is one page of catalog results.
type BookPage struct {
	Books      []*Book `json:"books"`
	Query      string  `json:"query,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Match      string  `json:"match,omitempty"`
	QueryTime  int64   `json:"query_time_ms"`
}
