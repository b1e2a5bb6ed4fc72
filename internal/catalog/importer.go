// Package catalog imports book catalogs from JSON, CSV, and XLSX files.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/models"
)

// Supported catalog formats, keyed by file extension.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ErrUnsupportedFormat is returned for files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// BookIndexer stores parsed books.
type BookIndexer interface {
	IndexBooks(ctx context.Context, inputs []*models.BookInput) (indexed, skipped int, err error)
}

// Summary reports the outcome of one import.
type Summary struct {
	Path     string     `json:"path,omitempty"`
	Format   string     `json:"format"`
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
	Duration int64      `json:"duration_ms"`
}

// Importer parses catalog files and hands the books to an indexer.
type Importer struct {
	indexer BookIndexer
	logger  *zap.Logger
}

// NewImporter returns an importer. logger may be nil.
func NewImporter(indexer BookIndexer, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{indexer: indexer, logger: logger}
}

// FormatFor returns the catalog format for path's extension.
func FormatFor(path string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case FormatJSON, FormatCSV, FormatXLSX:
		return ext, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Parse reads a catalog in the given format. Rows that cannot be converted are
// returned as RowErrors; a malformed file is an error.
func Parse(r io.Reader, format string) ([]*models.BookInput, []RowError, error) {
	switch format {
	case FormatJSON:
		return parseJSON(r)
	case FormatCSV:
		return parseCSV(r)
	case FormatXLSX:
		return parseXLSX(r)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ImportFile parses the catalog at path and indexes its books.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Summary, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	summary, err := im.Import(ctx, bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	summary.Path = path
	return summary, nil
}

// Import parses r in format and indexes its books.
func (im *Importer) Import(ctx context.Context, r io.Reader, format string) (*Summary, error) {
	start := time.Now()
	inputs, rowErrs, err := Parse(r, format)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		Format: format,
		Rows:   len(inputs) + len(rowErrs),
		Errors: rowErrs,
	}
	indexed, skipped, err := im.indexer.IndexBooks(ctx, inputs)
	summary.Imported = indexed
	summary.Skipped = skipped + len(rowErrs)
	summary.Duration = time.Since(start).Milliseconds()
	if err != nil {
		return summary, err
	}
	for _, re := range rowErrs {
		im.logger.Warn("catalog row skipped", zap.Int("row", re.Row), zap.String("error", re.Err))
	}
	im.logger.Info("catalog imported",
		zap.String("format", format),
		zap.Int("rows", summary.Rows),
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}
