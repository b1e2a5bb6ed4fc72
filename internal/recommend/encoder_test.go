package recommend

import (
	"math"
	"testing"

	"github.com/hyperjump/bookshelf/internal/models"
)

func intPtr(i int) *int { return &i }

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder(2003, 1000, nil)
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func TestCategoryIndex_Lookup(t *testing.T) {
	idx := NewCategoryIndex(DefaultCategoryBase)
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Fiction", 1000, true},
		{"Science Fiction", 1010, true},
		{"science fiction", 1010, true},
		{"PHILOSOPHY", 1024, true},
		{"Non-fiction", 1001, true},
		{"Cyberpunk", -1, false},
		{"", -1, false},
	}
	for _, tt := range tests {
		slot, ok := idx.Lookup(tt.name)
		if slot != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%q) = %d, %v; want %d, %v", tt.name, slot, ok, tt.want, tt.ok)
		}
	}
	if idx.Len() != 25 {
		t.Errorf("Len = %d", idx.Len())
	}

	seen := map[int]bool{}
	for _, name := range idx.Names() {
		slot, _ := idx.Lookup(name)
		if seen[slot] {
			t.Errorf("slot %d reused", slot)
		}
		seen[slot] = true
	}
}

func TestNewEncoder_RejectsNarrowWidth(t *testing.T) {
	if _, err := NewEncoder(1010, 1000, nil); err == nil {
		t.Error("expected error when category region does not fit")
	}
	if _, err := NewEncoder(100, 0, nil); err == nil {
		t.Error("expected error for zero direct slots")
	}
}

func TestEncoder_EmptySet(t *testing.T) {
	enc := newTestEncoder(t)
	p := enc.Encode(nil)
	if len(p.Vector) != 2003 {
		t.Fatalf("width = %d", len(p.Vector))
	}
	for i, v := range p.Vector {
		if v != 0 {
			t.Fatalf("position %d = %v, want 0", i, v)
		}
	}
	if p.Diagnostics.ActiveFeatures != 0 {
		t.Errorf("ActiveFeatures = %d", p.Diagnostics.ActiveFeatures)
	}
}

func TestEncoder_Signals(t *testing.T) {
	enc := newTestEncoder(t)
	saved := []*models.Book{
		{ID: "a", Title: "A", DenseIndex: intPtr(7), Categories: []string{"Horror"}},
		{ID: "b", Title: "B", DenseIndex: intPtr(7), Categories: []string{"fiction, Mystery ", "Cyberpunk"}},
		{ID: "c", Title: "C"},
		{ID: "d", Title: "D", DenseIndex: intPtr(1500)},
		{ID: "e", Title: "E", DenseIndex: intPtr(0)},
	}
	p := enc.Encode(saved)

	if len(p.Vector) != enc.Width() {
		t.Fatalf("width = %d", len(p.Vector))
	}
	for i, v := range p.Vector {
		if v != 0 && v != 1 {
			t.Fatalf("position %d = %v, want 0 or 1", i, v)
		}
	}
	for _, pos := range []int{0, 7, 1000, 1008, 1012} {
		if p.Vector[pos] != 1 {
			t.Errorf("position %d not set", pos)
		}
	}
	if p.Vector[1500] != 0 {
		t.Error("out-of-range dense index must not reach the category region")
	}

	d := p.Diagnostics
	if d.ActiveFeatures != 5 {
		t.Errorf("ActiveFeatures = %d, want 5", d.ActiveFeatures)
	}
	if len(d.MissingDenseIndex) != 1 || d.MissingDenseIndex[0] != "C" {
		t.Errorf("MissingDenseIndex = %v", d.MissingDenseIndex)
	}
	if len(d.OutOfRange) != 1 || d.OutOfRange[0] != 1500 {
		t.Errorf("OutOfRange = %v", d.OutOfRange)
	}
	if len(d.UnknownCategories) != 1 || d.UnknownCategories[0] != "Cyberpunk" {
		t.Errorf("UnknownCategories = %v", d.UnknownCategories)
	}
}

func TestEncoder_DenseIndexIndependentOfCategories(t *testing.T) {
	enc := newTestEncoder(t)
	for _, cats := range [][]string{nil, {"Fiction"}, {"Unknown"}, {"Art", "Music"}} {
		p := enc.Encode([]*models.Book{{ID: "x", DenseIndex: intPtr(42), Categories: cats}})
		if p.Vector[42] != 1 {
			t.Errorf("categories %v: position 42 not set", cats)
		}
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		total, page, limit int
		want               Window
	}{
		{0, 1, 8, Window{Skip: 0, TotalPages: 0}},
		{8, 1, 8, Window{Skip: 0, TotalPages: 1}},
		{9, 2, 8, Window{Skip: 8, TotalPages: 2}},
		{100, 3, 8, Window{Skip: 16, TotalPages: 13}},
		{10, 0, 5, Window{Skip: 0, TotalPages: 2}},
		{10, -4, 5, Window{Skip: 0, TotalPages: 2}},
		{10, 1, 0, Window{Skip: 0, TotalPages: 10}},
		{math.MaxInt, 1, 8, Window{Skip: 0, TotalPages: math.MaxInt/8 + 1}},
		{10, math.MaxInt/4 + 1, 4, Window{Skip: (math.MaxInt / 4) * 4, TotalPages: 3}},
		{10, math.MaxInt/4 + 2, 4, Window{Skip: math.MaxInt, TotalPages: 3}},
		{10, math.MaxInt, 50, Window{Skip: math.MaxInt, TotalPages: 1}},
	}
	for _, tt := range tests {
		got := Paginate(tt.total, tt.page, tt.limit)
		if got != tt.want {
			t.Errorf("Paginate(%d, %d, %d) = %+v, want %+v", tt.total, tt.page, tt.limit, got, tt.want)
		}
		if got.Skip < 0 {
			t.Errorf("negative skip for %+v", tt)
		}
	}
	if !Paginate(10, 1, 5).Beyond(3) {
		t.Error("page 3 of 2 should be beyond")
	}
	if !Paginate(0, 1, 5).Beyond(1) {
		t.Error("any page of an empty pool should be beyond")
	}
	if !Paginate(10, math.MaxInt/4+2, 4).Beyond(math.MaxInt/4 + 2) {
		t.Error("a page whose offset overflows should be beyond")
	}
}
