// Package bookid provides deterministic identifiers for imported books.
package bookid

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/hyperjump/bookshelf/pkg/utils"
)

const prefix = "book:"

// FromTitleAuthors returns a stable book ID derived from the title and author
// list. Case, surrounding whitespace and author order do not affect the result,
// so re-importing the same catalog updates books in place.
func FromTitleAuthors(title string, authors []string) string {
	keys := make([]string, 0, len(authors))
	for _, a := range authors {
		if k := utils.NormalizeKey(a); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	normalized := utils.NormalizeKey(title) + "\x00" + strings.Join(keys, "\x1f")
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// IsDerived reports whether id has the shape produced by FromTitleAuthors.
func IsDerived(id string) bool {
	return strings.HasPrefix(id, prefix) && len(id) == len(prefix)+sha256.Size*2
}
