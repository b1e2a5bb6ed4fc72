// Package models defines core data structures for books, users, and recommendations.
package models

import (
	"strings"
	"time"
)

// Book represents a catalog entry. DenseIndex is nil until the maintenance
// job assigns one; books without it are reachable only through the category
// and random tiers.
type Book struct {
	ID            string    `json:"id" db:"id"`
	DenseIndex    *int      `json:"dense_index,omitempty" db:"dense_index"`
	Title         string    `json:"title" db:"title"`
	Authors       []string  `json:"authors" db:"authors"`
	Categories    []string  `json:"categories" db:"-"`
	Rating        float64   `json:"rating" db:"rating"`
	PageCount     int       `json:"page_count" db:"page_count"`
	RatingCount   int       `json:"rating_count" db:"rating_count"`
	PublishedYear int       `json:"published_year" db:"published_year"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasDenseIndex reports whether the book can be targeted by the scorer.
func (b *Book) HasDenseIndex() bool {
	return b.DenseIndex != nil
}

// BookInput is the input for creating or importing a book.
// Categories may be given as a list or as one comma-separated string in CategoryField.
type BookInput struct {
	ID            string   `json:"id,omitempty"`
	DenseIndex    *int     `json:"dense_index,omitempty"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	CategoryField string   `json:"category_field,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	RatingCount   int      `json:"rating_count,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
}

// AllCategories merges Categories and the comma-separated CategoryField,
// trimming whitespace and dropping empty and duplicate (case-insensitive) names.
// A list entry holding several comma-separated names is split like the field.
func (in *BookInput) AllCategories() []string {
	var raw []string
	for _, entry := range in.Categories {
		raw = append(raw, ParseCategories(entry)...)
	}
	raw = append(raw, ParseCategories(in.CategoryField)...)
	return dedupeFold(raw)
}

// ToBook converts the input into a Book. ID must already be set by the caller.
func (in *BookInput) ToBook() *Book {
	return &Book{
		ID:            in.ID,
		DenseIndex:    in.DenseIndex,
		Title:         strings.TrimSpace(in.Title),
		Authors:       dedupeFold(in.Authors),
		Categories:    in.AllCategories(),
		Rating:        in.Rating,
		PageCount:     in.PageCount,
		RatingCount:   in.RatingCount,
		PublishedYear: in.PublishedYear,
	}
}

// ParseCategories splits a comma-separated category field into trimmed names.
// Empty segments are dropped.
func ParseCategories(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupeFold(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
