package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/bookshelf/internal/catalog"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/storage"
)

func sampleBooks() []*models.Book {
	return []*models.Book{
		{ID: "b1", Title: "Dune", Authors: []string{"Frank Herbert"}, Categories: []string{"Fiction"}, Rating: 4.25, PublishedYear: 1965},
		{ID: "b2", Title: "Emma"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"compact", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteBookPage_text(t *testing.T) {
	page := &models.BookPage{Books: sampleBooks(), Query: "d", Page: 2, Limit: 2, Total: 4, TotalPages: 2, Match: "keyword", QueryTime: 3}
	var buf bytes.Buffer
	if err := WriteBookPage(&buf, page, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 4 books", "[keyword]", "page 2 of 2", "3. Dune", "by Frank Herbert", "rating 4.25", "1965", "4. Emma", "id: b2"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteBookPage_compactAndJSON(t *testing.T) {
	page := &models.BookPage{Books: sampleBooks(), Page: 1, Limit: 8, Total: 2, TotalPages: 1}
	var buf bytes.Buffer
	if err := WriteBookPage(&buf, page, OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "b1\tDune\tFrank Herbert" {
		t.Errorf("compact lines: %q", lines)
	}

	buf.Reset()
	if err := WriteBookPage(&buf, page, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.BookPage
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 2 || len(decoded.Books) != 2 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteRecommendation_text(t *testing.T) {
	rec := &models.Recommendation{
		UserID:     "u1",
		Books:      sampleBooks(),
		Provenance: models.ProvenanceMixed,
		Page:       1,
		Limit:      8,
		Total:      40,
		TotalPages: 5,
		Tiers:      models.TierCounts{Model: 1, Category: 1},
	}
	var buf bytes.Buffer
	if err := WriteRecommendation(&buf, rec, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Recommendations for u1: mixed", "page 1 of 5", "model=1 category=1 random=0", "1. Dune", "2. Emma"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteStatus(t *testing.T) {
	disk := int64(2048)
	st := &models.Status{
		Books:          10,
		BooksWithIndex: 7,
		DiskUsageBytes: &disk,
		Model:          &models.ModelStatus{InputWidth: 2003, BreakerState: "open"},
		Directories:    []string{"/srv/catalog"},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"books:              10", "books_with_index:   7", "2048", "input_width:        2003", "breaker_state:      open", "/srv/catalog"} {
		if !strings.Contains(out, sub) {
			t.Errorf("status output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteImportSummary(t *testing.T) {
	s := &catalog.Summary{Path: "books.csv", Format: "csv", Rows: 3, Imported: 2, Skipped: 1,
		Errors: []catalog.RowError{{Row: 4, Err: "missing title"}}}
	var buf bytes.Buffer
	if err := WriteImportSummary(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "Imported 2 of 3") || !strings.Contains(out, "row 4: missing title") {
		t.Errorf("summary output:\n%s", out)
	}
}

func TestWriteAssignments(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAssignments(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "already have") {
		t.Errorf("empty output: %q", buf.String())
	}

	buf.Reset()
	if err := WriteAssignments(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"assignments": []`) {
		t.Errorf("json output: %s", buf.String())
	}

	buf.Reset()
	assigned := []storage.DenseAssignment{{BookID: "b1", Title: "Dune", DenseIndex: 5}}
	if err := WriteAssignments(&buf, assigned, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Assigned 1 dense index") {
		t.Errorf("output: %s", buf.String())
	}
}
