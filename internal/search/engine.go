// Package search provides catalog browsing and full-text book search.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/bookshelf/internal/keyword"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/recommend"
	"github.com/hyperjump/bookshelf/internal/storage"
)

// How a page of results was matched.
const (
	MatchListing   = "listing"
	MatchKeyword   = "keyword"
	MatchFuzzy     = "fuzzy"
	MatchSubstring = "substring"
)

// Store is the subset of storage the engine reads.
type Store interface {
	FindBooks(ctx context.Context, filter storage.BookFilter, sort storage.SortOrder, skip, limit int) ([]*models.Book, error)
	CountBooks(ctx context.Context, filter storage.BookFilter) (int, error)
}

// Config holds search tuning.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	TitleBoost   float64
}

// Engine runs catalog search: keyword first, then fuzzy, then substring match.
type Engine struct {
	store  Store
	index  keyword.Index
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates a search engine. logger may be nil.
func NewEngine(store Store, index keyword.Index, cfg Config, logger *zap.Logger) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = models.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = models.MaxLimit
	}
	if cfg.TitleBoost <= 0 {
		cfg.TitleBoost = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, index: index, cfg: cfg, logger: logger}
}

// Search returns one page of books for query. An empty query lists the catalog by title.
func (e *Engine) Search(ctx context.Context, query *models.BookQuery) (*models.BookPage, error) {
	startTime := time.Now()
	query.Normalize(e.cfg.DefaultLimit, e.cfg.MaxLimit)
	text := strings.TrimSpace(query.Query)
	skip := recommend.Paginate(0, query.Page, query.Limit).Skip

	var (
		page *models.BookPage
		err  error
	)
	if text == "" {
		page, err = e.list(ctx, storage.BookFilter{}, skip, query.Limit)
		if page != nil {
			page.Match = MatchListing
		}
	} else {
		page, err = e.searchText(ctx, text, skip, query.Limit)
	}
	if err != nil {
		return nil, err
	}

	window := recommend.Paginate(page.Total, query.Page, query.Limit)
	if window.Beyond(query.Page) {
		page.Books = []*models.Book{}
	}
	page.Query = query.Query
	page.Page = query.Page
	page.Limit = query.Limit
	page.TotalPages = window.TotalPages
	page.QueryTime = time.Since(startTime).Milliseconds()
	return page, nil
}

func (e *Engine) searchText(ctx context.Context, text string, skip, limit int) (*models.BookPage, error) {
	attempts := []struct {
		match     string
		fuzziness int
	}{
		{MatchKeyword, 0},
		{MatchFuzzy, 1},
	}
	if e.index != nil {
		for _, a := range attempts {
			res, err := e.index.Search(ctx, text, keyword.SearchOptions{
				From:       skip,
				Size:       limit,
				TitleBoost: e.cfg.TitleBoost,
				Fuzziness:  a.fuzziness,
			})
			if err != nil {
				return nil, fmt.Errorf("keyword search failed: %w", err)
			}
			if res.Total == 0 {
				continue
			}
			books, err := e.resolve(ctx, res.IDs())
			if err != nil {
				return nil, err
			}
			return &models.BookPage{Books: books, Total: res.Total, Match: a.match}, nil
		}
	}

	e.logger.Debug("no keyword hits, falling back to substring match", zap.String("query", text))
	page, err := e.list(ctx, storage.BookFilter{TextContains: text}, skip, limit)
	if err != nil {
		return nil, err
	}
	page.Match = MatchSubstring
	return page, nil
}

// list fetches the count and the page window concurrently.
func (e *Engine) list(ctx context.Context, filter storage.BookFilter, skip, limit int) (*models.BookPage, error) {
	var (
		total int
		books []*models.Book
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.store.CountBooks(gctx, filter)
		if err != nil {
			return fmt.Errorf("count books: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		found, err := e.store.FindBooks(gctx, filter, storage.SortTitle, skip, limit)
		if err != nil {
			return fmt.Errorf("find books: %w", err)
		}
		books = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if books == nil {
		books = []*models.Book{}
	}
	return &models.BookPage{Books: books, Total: total}, nil
}

// resolve loads books for ids, keeping rank order. IDs missing from the
// store (a stale index entry) are skipped.
func (e *Engine) resolve(ctx context.Context, ids []string) ([]*models.Book, error) {
	if len(ids) == 0 {
		return []*models.Book{}, nil
	}
	found, err := e.store.FindBooks(ctx, storage.BookFilter{IDs: ids}, storage.SortNone, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("resolve hits: %w", err)
	}
	byID := make(map[string]*models.Book, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]*models.Book, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		} else {
			e.logger.Warn("keyword hit missing from store", zap.String("book_id", id))
		}
	}
	return out, nil
}
