// Package indexer writes books into storage and the keyword index, and runs
// dense-index maintenance.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/bookid"
	"github.com/hyperjump/bookshelf/internal/keyword"
	"github.com/hyperjump/bookshelf/internal/metrics"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/storage"
)

// ErrInvalidBook is returned when a book input fails validation.
var ErrInvalidBook = errors.New("invalid book")

// Indexer indexes books into storage and the keyword index.
type Indexer struct {
	storage      storage.Storage
	keywordIndex keyword.Index
	logger       *zap.Logger // optional; when set, logs debug events

	// denseMu serializes dense-index maintenance runs within this process.
	denseMu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (book indexed, book deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(store storage.Storage, keywordIndex keyword.Index, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		storage:      store,
		keywordIndex: keywordIndex,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

// prepare validates input and converts it to a Book with an ID.
func prepare(input *models.BookInput) (*models.Book, error) {
	preprocessInput(input)
	if input.DenseIndex != nil && *input.DenseIndex < 0 {
		return nil, fmt.Errorf("%w: negative dense index %d", ErrInvalidBook, *input.DenseIndex)
	}
	if input.Rating < 0 || input.PageCount < 0 || input.RatingCount < 0 {
		return nil, fmt.Errorf("%w: negative metadata for %q", ErrInvalidBook, input.Title)
	}
	if input.ID == "" {
		if input.Title != "" {
			input.ID = bookid.FromTitleAuthors(input.Title, input.Authors)
		} else {
			input.ID = uuid.New().String()
		}
	}
	return input.ToBook(), nil
}

// IndexBook creates or updates a book in storage and the keyword index.
// An existing dense index is kept when the input carries none.
func (idx *Indexer) IndexBook(ctx context.Context, input *models.BookInput) (*models.Book, error) {
	book, err := prepare(input)
	if err != nil {
		return nil, err
	}
	if err := idx.storage.UpsertBook(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to store book: %w", err)
	}
	stored, err := idx.storage.GetBook(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload book: %w", err)
	}
	if err := idx.keywordIndex.Index(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to index keywords: %w", err)
	}
	idx.logger.Debug("indexer book indexed", zap.String("id", stored.ID), zap.String("title", stored.Title))
	return stored, nil
}

// IndexBooks stores each input and indexes the batch in one keyword write.
// Invalid inputs are skipped and counted. A storage error aborts the batch;
// books stored before it are still keyword indexed and counted.
func (idx *Indexer) IndexBooks(ctx context.Context, inputs []*models.BookInput) (indexed, skipped int, err error) {
	books := make([]*models.Book, 0, len(inputs))
	var storeErr error
	for _, input := range inputs {
		book, prepErr := prepare(input)
		if prepErr != nil {
			idx.logger.Warn("indexer skipping book", zap.Error(prepErr))
			skipped++
			continue
		}
		if err := idx.storage.UpsertBook(ctx, book); err != nil {
			storeErr = fmt.Errorf("failed to store book %q: %w", book.Title, err)
			break
		}
		books = append(books, book)
	}
	if len(books) > 0 {
		if err := idx.keywordIndex.IndexBatch(ctx, books); err != nil {
			return 0, skipped, errors.Join(storeErr, fmt.Errorf("failed to index keywords: %w", err))
		}
	}
	return len(books), skipped, storeErr
}

// DeleteBook removes a book from the keyword index and storage.
func (idx *Indexer) DeleteBook(ctx context.Context, id string) error {
	idx.logger.Debug("indexer deleting book", zap.String("id", id))
	if _, err := idx.storage.GetBook(ctx, id); err != nil {
		return err
	}
	if err := idx.keywordIndex.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.storage.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

// AssignDenseIndexes gives every book lacking a dense index the next free
// integer, in title order, starting one past the current maximum (or 0).
// The whole batch commits or none of it does.
func (idx *Indexer) AssignDenseIndexes(ctx context.Context) ([]storage.DenseAssignment, error) {
	idx.denseMu.Lock()
	defer idx.denseMu.Unlock()

	missing, err := idx.storage.BooksWithoutDenseIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books without dense index: %w", err)
	}
	if len(missing) == 0 {
		idx.logger.Info("dense index maintenance: nothing to assign")
		return nil, nil
	}
	highest, ok, err := idx.storage.MaxDenseIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read max dense index: %w", err)
	}
	next := 0
	if ok {
		next = highest + 1
	}

	assignments := make([]storage.DenseAssignment, len(missing))
	for i, book := range missing {
		assignments[i] = storage.DenseAssignment{BookID: book.ID, Title: book.Title, DenseIndex: next + i}
	}
	if err := idx.storage.AssignDenseIndexes(ctx, assignments); err != nil {
		return nil, fmt.Errorf("failed to assign dense indexes: %w", err)
	}
	metrics.DenseIndexAssignedTotal.Add(float64(len(assignments)))
	idx.logger.Info("dense index maintenance complete",
		zap.Int("assigned", len(assignments)),
		zap.Int("first", next),
		zap.Int("last", next+len(assignments)-1))
	return assignments, nil
}

// RebuildKeywordIndex re-indexes every stored book, e.g. after the index
// directory was removed. Returns the number of books indexed.
func (idx *Indexer) RebuildKeywordIndex(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	total := 0
	for skip := 0; ; skip += batchSize {
		books, err := idx.storage.FindBooks(ctx, storage.BookFilter{}, storage.SortTitle, skip, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list books: %w", err)
		}
		if len(books) == 0 {
			break
		}
		if err := idx.keywordIndex.IndexBatch(ctx, books); err != nil {
			return total, fmt.Errorf("failed to index keywords: %w", err)
		}
		total += len(books)
		if len(books) < batchSize {
			break
		}
	}
	idx.logger.Info("keyword index rebuilt", zap.Int("books", total))
	return total, nil
}
