package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/bookshelf/internal/models"
)

// Canonical column names. Header cells are matched case-insensitively
// against these and their aliases.
const (
	colID            = "id"
	colTitle         = "title"
	colAuthors       = "authors"
	colCategories    = "categories"
	colRating        = "rating"
	colPageCount     = "page_count"
	colRatingCount   = "rating_count"
	colPublishedYear = "published_year"
	colDenseIndex    = "dense_index"
)

var columnAliases = map[string]string{
	"id":             colID,
	"title":          colTitle,
	"authors":        colAuthors,
	"author":         colAuthors,
	"categories":     colCategories,
	"category":       colCategories,
	"genres":         colCategories,
	"rating":         colRating,
	"average_rating": colRating,
	"page_count":     colPageCount,
	"pages":          colPageCount,
	"num_pages":      colPageCount,
	"rating_count":   colRatingCount,
	"ratings_count":  colRatingCount,
	"published_year": colPublishedYear,
	"year":           colPublishedYear,
	"dense_index":    colDenseIndex,
	"index":          colDenseIndex,
	"book_index":     colDenseIndex,
}

var errMissingTitle = errors.New("missing title")

// RowError describes a catalog row that could not be converted.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Err)
}

// header maps canonical column names to cell positions.
type header map[string]int

// parseHeader maps header cells to canonical columns. A title column is required.
func parseHeader(cells []string) (header, error) {
	h := make(header)
	for i, cell := range cells {
		key := strings.ToLower(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, " ", "_")
		if canon, ok := columnAliases[key]; ok {
			if _, dup := h[canon]; !dup {
				h[canon] = i
			}
		}
	}
	if _, ok := h[colTitle]; !ok {
		return nil, fmt.Errorf("catalog header has no title column: %v", cells)
	}
	return h, nil
}

func (h header) cell(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// toInput converts a tabular row. Empty numeric cells become zero.
func (h header) toInput(row []string) (*models.BookInput, error) {
	in := &models.BookInput{
		ID:            h.cell(row, colID),
		Title:         h.cell(row, colTitle),
		Authors:       SplitAuthors(h.cell(row, colAuthors)),
		CategoryField: h.cell(row, colCategories),
	}
	if in.Title == "" {
		return nil, errMissingTitle
	}
	var err error
	if in.Rating, err = parseFloat(h.cell(row, colRating), colRating); err != nil {
		return nil, err
	}
	if in.PageCount, err = parseInt(h.cell(row, colPageCount), colPageCount); err != nil {
		return nil, err
	}
	if in.RatingCount, err = parseInt(h.cell(row, colRatingCount), colRatingCount); err != nil {
		return nil, err
	}
	if in.PublishedYear, err = parseInt(h.cell(row, colPublishedYear), colPublishedYear); err != nil {
		return nil, err
	}
	if raw := h.cell(row, colDenseIndex); raw != "" {
		idx, err := parseInt(raw, colDenseIndex)
		if err != nil {
			return nil, err
		}
		in.DenseIndex = &idx
	}
	return in, nil
}

// SplitAuthors splits an author cell on semicolons; author names may contain commas.
func SplitAuthors(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(s, col string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Spreadsheets often store whole numbers as "1999.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%s: invalid integer %q", col, s)
		}
		n = int(f)
	}
	return n, nil
}

func parseFloat(s, col string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", col, s)
	}
	return f, nil
}

// parseRows converts tabular rows (header first). Row numbers in errors are 1-based
// and count the header.
func parseRows(rows [][]string) ([]*models.BookInput, []RowError, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	h, err := parseHeader(rows[0])
	if err != nil {
		return nil, nil, err
	}
	var (
		inputs []*models.BookInput
		errs   []RowError
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		in, err := h.toInput(row)
		if err != nil {
			errs = append(errs, RowError{Row: i + 2, Err: err.Error()})
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, errs, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
