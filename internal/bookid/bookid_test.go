package bookid

import (
	"strings"
	"testing"
)

func TestFromTitleAuthors(t *testing.T) {
	id1 := FromTitleAuthors("Dune", []string{"Frank Herbert"})
	id2 := FromTitleAuthors("Dune", []string{"Frank Herbert"})
	if id1 != id2 {
		t.Errorf("same book should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if !IsDerived(id1) {
		t.Errorf("IsDerived(%q) = false", id1)
	}
}

func TestFromTitleAuthors_normalized(t *testing.T) {
	base := FromTitleAuthors("Good Omens", []string{"Terry Pratchett", "Neil Gaiman"})
	variants := []struct {
		title   string
		authors []string
	}{
		{"  good   omens ", []string{"Terry Pratchett", "Neil Gaiman"}},
		{"GOOD OMENS", []string{"neil gaiman", "TERRY PRATCHETT"}},
		{"Good Omens", []string{"Neil Gaiman", " ", "Terry Pratchett"}},
	}
	for _, v := range variants {
		if got := FromTitleAuthors(v.title, v.authors); got != base {
			t.Errorf("%q %v: got %q, want %q", v.title, v.authors, got, base)
		}
	}
}

func TestFromTitleAuthors_distinct(t *testing.T) {
	tests := [][2]string{
		{"Dune", "Frank Herbert"},
		{"Dune", "Brian Herbert"},
		{"Dune Messiah", "Frank Herbert"},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		id := FromTitleAuthors(tt[0], []string{tt[1]})
		if seen[id] {
			t.Errorf("collision for %v", tt)
		}
		seen[id] = true
	}
	if FromTitleAuthors("ab", []string{"c"}) == FromTitleAuthors("a", []string{"bc"}) {
		t.Error("title/author boundary must be part of the key")
	}
}

func TestIsDerived(t *testing.T) {
	for _, id := range []string{"", "book:", "book:abc", "9780441013593"} {
		if IsDerived(id) {
			t.Errorf("IsDerived(%q) = true", id)
		}
	}
}
