// Package keyword provides full-text search over book titles, authors, and categories.
package keyword

import (
	"context"

	"github.com/hyperjump/bookshelf/internal/models"
)

// SearchOptions optional parameters for keyword search. Zero values use defaults.
type SearchOptions struct {
	// From is the number of hits to skip.
	From int
	// Size is the maximum number of hits returned. Defaults to 10.
	Size int
	// TitleBoost multiplies the score contribution from title matches (e.g. 3.0).
	TitleBoost float64
	// Fuzziness enables typo-tolerant matching within this edit distance (1 or 2).
	Fuzziness int
}

// Index defines keyword index operations for books.
type Index interface {
	Index(ctx context.Context, book *models.Book) error
	IndexBatch(ctx context.Context, books []*models.Book) error
	Search(ctx context.Context, query string, opts SearchOptions) (*Result, error)
	Delete(ctx context.Context, id string) error
	Close() error
	// DocCount returns the total number of books in the index.
	DocCount() (uint64, error)
}

// Result is one window of keyword hits plus the total match count.
type Result struct {
	Hits  []Hit
	Total int
}

// Hit is a single keyword search hit.
type Hit struct {
	ID    string
	Score float64
}

// IDs returns hit IDs in rank order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}
