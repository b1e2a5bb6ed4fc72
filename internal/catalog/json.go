package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/bookshelf/internal/models"
)

// stringList accepts either a JSON string or an array of strings.
type stringList struct {
	values []string
	raw    string
}

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.raw)
	}
	return json.Unmarshal(data, &s.values)
}

// jsonRecord is one book in a JSON catalog.
type jsonRecord struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Authors       stringList `json:"authors"`
	Author        string     `json:"author"`
	Categories    stringList `json:"categories"`
	Rating        float64    `json:"rating"`
	PageCount     int        `json:"page_count"`
	RatingCount   int        `json:"rating_count"`
	PublishedYear int        `json:"published_year"`
	DenseIndex    *int       `json:"dense_index"`
}

func (r *jsonRecord) toInput() (*models.BookInput, error) {
	if r.Title == "" {
		return nil, errMissingTitle
	}
	authors := append([]string(nil), r.Authors.values...)
	authors = append(authors, SplitAuthors(r.Authors.raw)...)
	authors = append(authors, SplitAuthors(r.Author)...)
	return &models.BookInput{
		ID:            r.ID,
		Title:         r.Title,
		Authors:       authors,
		Categories:    r.Categories.values,
		CategoryField: r.Categories.raw,
		Rating:        r.Rating,
		PageCount:     r.PageCount,
		RatingCount:   r.RatingCount,
		PublishedYear: r.PublishedYear,
		DenseIndex:    r.DenseIndex,
	}, nil
}

// parseJSON reads a JSON catalog: either an array of books or {"books": [...]}.
func parseJSON(r io.Reader) ([]*models.BookInput, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	data = bytes.TrimSpace(data)
	var records []jsonRecord
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Books []jsonRecord `json:"books"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, nil, fmt.Errorf("parse catalog: %w", err)
		}
		records = wrapped.Books
	} else if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("parse catalog: %w", err)
	}

	var (
		inputs []*models.BookInput
		errs   []RowError
	)
	for i := range records {
		in, err := records[i].toInput()
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err.Error()})
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs, errs, nil
}
