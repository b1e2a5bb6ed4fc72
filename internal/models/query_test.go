package models

import (
	"reflect"
	"testing"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{"defaults", 0, 0, 1, 8},
		{"negative page", -3, 5, 1, 5},
		{"negative limit", 2, -1, 2, 8},
		{"caps limit", 1, 500, 1, 50},
		{"valid input unchanged", 4, 12, 4, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := NormalizePage(tt.page, tt.limit, 8, 50)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.limit, page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestBookQuery_Normalize(t *testing.T) {
	q := &BookQuery{Query: "dune", Page: 0, Limit: 1000}
	q.Normalize(10, 100)
	if q.Page != 1 || q.Limit != 100 {
		t.Errorf("got page=%d limit=%d", q.Page, q.Limit)
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"Fiction", []string{"Fiction"}},
		{"Fiction, Science Fiction ,,Fantasy", []string{"Fiction", "Science Fiction", "Fantasy"}},
	}
	for _, tt := range tests {
		got := ParseCategories(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseCategories(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBookInput_AllCategories(t *testing.T) {
	tests := []struct {
		name string
		in   BookInput
		want []string
	}{
		{
			name: "list and field merged",
			in:   BookInput{Categories: []string{"Fiction", " fantasy "}, CategoryField: "FICTION, Horror"},
			want: []string{"Fiction", "fantasy", "Horror"},
		},
		{
			name: "comma-joined list entry",
			in:   BookInput{Categories: []string{"Fiction, Mystery", "mystery"}},
			want: []string{"Fiction", "Mystery"},
		},
		{
			name: "empty entries dropped",
			in:   BookInput{Categories: []string{"", " , ", "Art"}},
			want: []string{"Art"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.AllCategories(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllCategories() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookInput_ToBook(t *testing.T) {
	idx := 4
	in := &BookInput{ID: "b1", Title: "  Dune ", Authors: []string{"Frank Herbert", ""}, DenseIndex: &idx}
	b := in.ToBook()
	if b.Title != "Dune" {
		t.Errorf("title: got %q", b.Title)
	}
	if len(b.Authors) != 1 {
		t.Errorf("authors: got %v", b.Authors)
	}
	if !b.HasDenseIndex() || *b.DenseIndex != 4 {
		t.Errorf("dense index: got %v", b.DenseIndex)
	}
	if b.Rating != 0 || b.PageCount != 0 {
		t.Error("numeric metadata should default to zero")
	}
}

func TestSavedSet(t *testing.T) {
	s := NewSavedSet([]string{"a", "b", "a"})
	if len(s) != 2 {
		t.Errorf("expected 2 members, got %d", len(s))
	}
	if !s.Contains("a") || s.Contains("c") {
		t.Error("membership mismatch")
	}
	s.Add("c")
	if len(s.IDs()) != 3 {
		t.Errorf("IDs: got %v", s.IDs())
	}
}

func TestProvenance_IsRandom(t *testing.T) {
	if !ProvenanceRandom.IsRandom() || !ProvenanceRandomFallback.IsRandom() {
		t.Error("random variants should report IsRandom")
	}
	if ProvenanceMixed.IsRandom() || ProvenancePersonalized.IsRandom() {
		t.Error("non-random provenance reported IsRandom")
	}
}
