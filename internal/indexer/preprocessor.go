package indexer

import (
	"strings"
	"unicode"

	"github.com/hyperjump/bookshelf/internal/models"
)

// Preprocess normalizes a text field for storage (trim, collapse whitespace).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// preprocessInput cleans title and author names in place.
func preprocessInput(input *models.BookInput) {
	input.Title = Preprocess(input.Title)
	authors := input.Authors[:0]
	for _, a := range input.Authors {
		if a = Preprocess(a); a != "" {
			authors = append(authors, a)
		}
	}
	input.Authors = authors
}
