// Package storage defines the persistence interface for books, users, and saved lists.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/bookshelf/internal/models"
)

// ErrNotFound is returned when a book or user does not exist.
var ErrNotFound = errors.New("not found")

// SortOrder selects the ordering of FindBooks results.
type SortOrder int

const (
	// SortNone leaves the order to the database.
	SortNone SortOrder = iota
	// SortTitle orders by case-insensitive title, then ID.
	SortTitle
	// SortRatingDesc orders by rating descending, then rating count descending, then title.
	SortRatingDesc
)

// BookFilter restricts a book query. Zero-value fields impose no constraint.
// A non-nil but empty IDs, DenseIndexes, or Categories slice matches nothing.
type BookFilter struct {
	IDs            []string
	ExcludeIDs     []string
	DenseIndexes   []int
	Categories     []string // overlap, case-insensitive
	TitleContains  string
	AuthorContains string
	TextContains   string // title or any author
	HasDenseIndex  *bool
}

// DenseAssignment pairs a book with the dense index it should receive.
type DenseAssignment struct {
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	DenseIndex int    `json:"dense_index"`
}

// Storage defines book, user, and saved-list persistence operations.
type Storage interface {
	// Book operations
	CreateBook(ctx context.Context, book *models.Book) error
	UpsertBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	DeleteBook(ctx context.Context, id string) error

	// Queries
	FindBooks(ctx context.Context, filter BookFilter, sort SortOrder, skip, limit int) ([]*models.Book, error)
	CountBooks(ctx context.Context, filter BookFilter) (int, error)
	SampleBooks(ctx context.Context, filter BookFilter, size int) ([]*models.Book, error)

	// Dense-index maintenance
	BooksWithoutDenseIndex(ctx context.Context) ([]*models.Book, error)
	MaxDenseIndex(ctx context.Context) (int, bool, error)
	AssignDenseIndexes(ctx context.Context, assignments []DenseAssignment) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveBook(ctx context.Context, userID, bookID string) (bool, error)
	UnsaveBook(ctx context.Context, userID, bookID string) (bool, error)
	SavedBooks(ctx context.Context, userID string) ([]*models.Book, error)

	// Stats
	CountUsers(ctx context.Context) (int, error)

	Close() error
}

// BoolPtr returns a pointer to b, for BookFilter.HasDenseIndex.
func BoolPtr(b bool) *bool {
	return &b
}
