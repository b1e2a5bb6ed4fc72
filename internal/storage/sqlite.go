// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/bookshelf/internal/models"
)

const bookColumns = `b.id, b.dense_index, b.title, b.authors, b.rating, b.page_count,
	b.rating_count, b.published_year, b.created_at, b.updated_at`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		dense_index INTEGER UNIQUE,
		title TEXT NOT NULL,
		title_key TEXT NOT NULL,
		authors TEXT NOT NULL DEFAULT '[]',
		rating REAL NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		published_year INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_books_title_key ON books(title_key);
	CREATE INDEX IF NOT EXISTS idx_books_rating ON books(rating DESC);

	CREATE TABLE IF NOT EXISTS book_categories (
		book_id TEXT NOT NULL,
		category TEXT NOT NULL,
		category_key TEXT NOT NULL,
		PRIMARY KEY (book_id, category_key),
		FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_book_categories_key ON book_categories(category_key);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS saved_books (
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, book_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (book_id) REFERENCES books(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateBook inserts a book and its categories.
func (s *SQLiteStorage) CreateBook(ctx context.Context, book *models.Book) error {
	return s.writeBook(ctx, book, false)
}

// UpsertBook inserts a book or replaces the stored fields of an existing one.
// An existing dense index is kept when book.DenseIndex is nil.
func (s *SQLiteStorage) UpsertBook(ctx context.Context, book *models.Book) error {
	return s.writeBook(ctx, book, true)
}

func (s *SQLiteStorage) writeBook(ctx context.Context, book *models.Book, upsert bool) error {
	authorsJSON, err := json.Marshal(nonNil(book.Authors))
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO books (id, dense_index, title, title_key, authors, rating, page_count,
		rating_count, published_year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if upsert {
		query += ` ON CONFLICT(id) DO UPDATE SET
			dense_index = COALESCE(excluded.dense_index, books.dense_index),
			title = excluded.title,
			title_key = excluded.title_key,
			authors = excluded.authors,
			rating = excluded.rating,
			page_count = excluded.page_count,
			rating_count = excluded.rating_count,
			published_year = excluded.published_year,
			updated_at = excluded.updated_at`
	}
	_, err = tx.ExecContext(ctx, query,
		book.ID, nullInt(book.DenseIndex), book.Title, strings.ToLower(book.Title), string(authorsJSON),
		book.Rating, book.PageCount, book.RatingCount, book.PublishedYear, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_categories WHERE book_id = ?`, book.ID); err != nil {
		return err
	}
	for _, c := range book.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_categories (book_id, category, category_key) VALUES (?, ?, ?)`,
			book.ID, c, strings.ToLower(c),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetBook returns a book by ID.
func (s *SQLiteStorage) GetBook(ctx context.Context, id string) (*models.Book, error) {
	books, err := s.FindBooks(ctx, BookFilter{IDs: []string{id}}, SortNone, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, id)
	}
	return books[0], nil
}

// DeleteBook removes a book by ID. Its categories and saved references cascade.
func (s *SQLiteStorage) DeleteBook(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	return err
}

// FindBooks returns books matching filter in the given order, skipping skip and
// returning at most limit rows. limit <= 0 means no limit.
func (s *SQLiteStorage) FindBooks(ctx context.Context, filter BookFilter, sort SortOrder, skip, limit int) ([]*models.Book, error) {
	where, args, empty := filter.build()
	if empty {
		return nil, nil
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + bookColumns + ` FROM books b` + where + orderBy(sort) + ` LIMIT ? OFFSET ?`
	args = append(args, limit, skip)
	return s.queryBooks(ctx, query, args...)
}

// CountBooks returns the number of books matching filter.
func (s *SQLiteStorage) CountBooks(ctx context.Context, filter BookFilter) (int, error) {
	where, args, empty := filter.build()
	if empty {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books b`+where, args...).Scan(&count)
	return count, err
}

// SampleBooks returns up to size books matching filter, chosen uniformly at random.
func (s *SQLiteStorage) SampleBooks(ctx context.Context, filter BookFilter, size int) ([]*models.Book, error) {
	if size <= 0 {
		return nil, nil
	}
	where, args, empty := filter.build()
	if empty {
		return nil, nil
	}
	query := `SELECT ` + bookColumns + ` FROM books b` + where + ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, size)
	return s.queryBooks(ctx, query, args...)
}

// BooksWithoutDenseIndex returns all books lacking a dense index, sorted by title.
func (s *SQLiteStorage) BooksWithoutDenseIndex(ctx context.Context) ([]*models.Book, error) {
	return s.FindBooks(ctx, BookFilter{HasDenseIndex: BoolPtr(false)}, SortTitle, 0, 0)
}

// MaxDenseIndex returns the highest assigned dense index. ok is false when no book has one.
func (s *SQLiteStorage) MaxDenseIndex(ctx context.Context) (int, bool, error) {
	var highest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(dense_index) FROM books`).Scan(&highest); err != nil {
		return 0, false, err
	}
	if !highest.Valid {
		return 0, false, nil
	}
	return int(highest.Int64), true, nil
}

// AssignDenseIndexes applies all assignments in one transaction. If any book
// already has an index (or is gone) the whole batch is rolled back; the UNIQUE
// constraint on dense_index rejects collisions.
func (s *SQLiteStorage) AssignDenseIndexes(ctx context.Context, assignments []DenseAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE books SET dense_index = ?, updated_at = ? WHERE id = ? AND dense_index IS NULL`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range assignments {
		result, err := stmt.ExecContext(ctx, a.DenseIndex, now, a.BookID)
		if err != nil {
			return fmt.Errorf("assign index %d to %s: %w", a.DenseIndex, a.BookID, err)
		}
		n, _ := result.RowsAffected()
		if n == 0 {
			return fmt.Errorf("assign index %d to %s: book missing or already indexed", a.DenseIndex, a.BookID)
		}
	}
	return tx.Commit()
}

// CreateUser inserts a user.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		user.ID, user.Name, user.CreatedAt,
	)
	return err
}

// GetUser returns a user with its saved-book IDs in save order.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id FROM saved_books WHERE user_id = ? ORDER BY saved_at, rowid`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bookID string
		if err := rows.Scan(&bookID); err != nil {
			return nil, err
		}
		user.SavedBookIDs = append(user.SavedBookIDs, bookID)
	}
	return &user, rows.Err()
}

// SaveBook adds bookID to the user's saved set. added is false when it was already saved.
func (s *SQLiteStorage) SaveBook(ctx context.Context, userID, bookID string) (bool, error) {
	if err := s.ensureExists(ctx, "users", userID); err != nil {
		return false, err
	}
	if err := s.ensureExists(ctx, "books", bookID); err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO saved_books (user_id, book_id, saved_at) VALUES (?, ?, ?)`,
		userID, bookID, time.Now(),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// UnsaveBook removes bookID from the user's saved set. removed is false when it was not saved.
func (s *SQLiteStorage) UnsaveBook(ctx context.Context, userID, bookID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM saved_books WHERE user_id = ? AND book_id = ?`, userID, bookID,
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SavedBooks returns the user's saved books in save order.
func (s *SQLiteStorage) SavedBooks(ctx context.Context, userID string) ([]*models.Book, error) {
	if err := s.ensureExists(ctx, "users", userID); err != nil {
		return nil, err
	}
	return s.queryBooks(ctx,
		`SELECT `+bookColumns+` FROM books b JOIN saved_books sb ON sb.book_id = b.id
		 WHERE sb.user_id = ? ORDER BY sb.saved_at, sb.rowid`, userID,
	)
}

// CountUsers returns the total number of users.
func (s *SQLiteStorage) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) ensureExists(ctx context.Context, table, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s %s", ErrNotFound, strings.TrimSuffix(table, "s"), id)
	}
	return err
}

func (s *SQLiteStorage) queryBooks(ctx context.Context, query string, args ...interface{}) ([]*models.Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadCategories(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *SQLiteStorage) loadCategories(ctx context.Context, books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}
	byID := make(map[string]*models.Book, len(books))
	ids := make([]interface{}, 0, len(books))
	for _, b := range books {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, category FROM book_categories WHERE book_id IN (`+placeholders(len(ids))+`) ORDER BY rowid`,
		ids...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookID, category string
		if err := rows.Scan(&bookID, &category); err != nil {
			return err
		}
		if b, ok := byID[bookID]; ok {
			b.Categories = append(b.Categories, category)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	var (
		book        models.Book
		denseIndex  sql.NullInt64
		authorsJSON string
	)
	if err := row.Scan(&book.ID, &denseIndex, &book.Title, &authorsJSON, &book.Rating, &book.PageCount,
		&book.RatingCount, &book.PublishedYear, &book.CreatedAt, &book.UpdatedAt); err != nil {
		return nil, err
	}
	if denseIndex.Valid {
		idx := int(denseIndex.Int64)
		book.DenseIndex = &idx
	}
	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &book.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}
	return &book, nil
}

// build renders the filter as a WHERE clause. empty is true when the filter
// can match nothing and the query should be skipped.
func (f BookFilter) build() (where string, args []interface{}, empty bool) {
	var clauses []string
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			return "", nil, true
		}
		clauses = append(clauses, `b.id IN (`+placeholders(len(f.IDs))+`)`)
		args = appendStrings(args, f.IDs)
	}
	if len(f.ExcludeIDs) > 0 {
		clauses = append(clauses, `b.id NOT IN (`+placeholders(len(f.ExcludeIDs))+`)`)
		args = appendStrings(args, f.ExcludeIDs)
	}
	if f.DenseIndexes != nil {
		if len(f.DenseIndexes) == 0 {
			return "", nil, true
		}
		clauses = append(clauses, `b.dense_index IN (`+placeholders(len(f.DenseIndexes))+`)`)
		for _, idx := range f.DenseIndexes {
			args = append(args, idx)
		}
	}
	if f.Categories != nil {
		if len(f.Categories) == 0 {
			return "", nil, true
		}
		clauses = append(clauses, `EXISTS (SELECT 1 FROM book_categories c WHERE c.book_id = b.id AND c.category_key IN (`+
			placeholders(len(f.Categories))+`))`)
		for _, c := range f.Categories {
			args = append(args, strings.ToLower(strings.TrimSpace(c)))
		}
	}
	if f.TitleContains != "" {
		clauses = append(clauses, `b.title_key LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.TitleContains))
	}
	if f.AuthorContains != "" {
		clauses = append(clauses, `LOWER(b.authors) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(f.AuthorContains))
	}
	if f.TextContains != "" {
		clauses = append(clauses, `(b.title_key LIKE ? ESCAPE '\' OR LOWER(b.authors) LIKE ? ESCAPE '\')`)
		pattern := likePattern(f.TextContains)
		args = append(args, pattern, pattern)
	}
	if f.HasDenseIndex != nil {
		if *f.HasDenseIndex {
			clauses = append(clauses, `b.dense_index IS NOT NULL`)
		} else {
			clauses = append(clauses, `b.dense_index IS NULL`)
		}
	}
	if len(clauses) == 0 {
		return "", args, false
	}
	return ` WHERE ` + strings.Join(clauses, ` AND `), args, false
}

func orderBy(sort SortOrder) string {
	switch sort {
	case SortTitle:
		return ` ORDER BY b.title_key ASC, b.id ASC`
	case SortRatingDesc:
		return ` ORDER BY b.rating DESC, b.rating_count DESC, b.title_key ASC`
	default:
		return ``
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func appendStrings(args []interface{}, values []string) []interface{} {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

func likePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
