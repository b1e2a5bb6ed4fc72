// Package cli formats bookshelf results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/bookshelf/internal/catalog"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/storage"
	"github.com/hyperjump/bookshelf/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one book per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const titleWidth = 60

// ParseFormat returns the OutputFormat named by s.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBookPage writes a catalog search page.
func WriteBookPage(w io.Writer, page *models.BookPage, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, page)
	case OutputCompact:
		writeBooksCompact(w, page.Books)
		return nil
	}
	match := ""
	if page.Match != "" {
		match = fmt.Sprintf(" [%s]", page.Match)
	}
	fmt.Fprintf(w, "\nFound %d books in %dms%s (page %d of %d)\n\n",
		page.Total, page.QueryTime, match, page.Page, page.TotalPages)
	writeBooksText(w, page.Books, (page.Page-1)*page.Limit)
	return nil
}

// WriteRecommendation writes a recommendation page.
func WriteRecommendation(w io.Writer, rec *models.Recommendation, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, rec)
	case OutputCompact:
		writeBooksCompact(w, rec.Books)
		return nil
	}
	fmt.Fprintf(w, "\nRecommendations for %s: %s (page %d of %d, %d candidates, %dms)\n",
		rec.UserID, rec.Provenance, rec.Page, rec.TotalPages, rec.Total, rec.QueryTime)
	fmt.Fprintf(w, "tiers: model=%d category=%d random=%d\n\n",
		rec.Tiers.Model, rec.Tiers.Category, rec.Tiers.Random)
	writeBooksText(w, rec.Books, (rec.Page-1)*rec.Limit)
	return nil
}

func writeBooksText(w io.Writer, books []*models.Book, offset int) {
	for i, b := range books {
		fmt.Fprintf(w, "%3d. %s\n", offset+i+1, utils.Truncate(b.Title, titleWidth))
		if len(b.Authors) > 0 {
			fmt.Fprintf(w, "     by %s\n", strings.Join(b.Authors, ", "))
		}
		details := []string{}
		if len(b.Categories) > 0 {
			details = append(details, strings.Join(b.Categories, ", "))
		}
		if b.Rating > 0 {
			details = append(details, fmt.Sprintf("rating %.2f", b.Rating))
		}
		if b.PublishedYear > 0 {
			details = append(details, fmt.Sprintf("%d", b.PublishedYear))
		}
		if line := utils.JoinNonEmpty(details, " | "); line != "" {
			fmt.Fprintf(w, "     %s\n", line)
		}
		fmt.Fprintf(w, "     id: %s\n", b.ID)
	}
}

func writeBooksCompact(w io.Writer, books []*models.Book) {
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\n", b.ID, b.Title, strings.Join(b.Authors, "; "))
	}
}

// WriteStatus writes service status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "books:              %d   # catalog size\n", st.Books)
	fmt.Fprintf(w, "books_with_index:   %d   # reachable by the scorer\n", st.BooksWithIndex)
	fmt.Fprintf(w, "users:              %d\n", st.Users)
	fmt.Fprintf(w, "keyword_index_size: %d   # books in the search index\n", st.KeywordIndexSize)
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # storage + indices on disk\n", *st.DiskUsageBytes)
	}
	if m := st.Model; m != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# model")
		if m.ModelPath != "" {
			fmt.Fprintf(w, "model_path:         %s\n", m.ModelPath)
		}
		fmt.Fprintf(w, "input_width:        %d\n", m.InputWidth)
		fmt.Fprintf(w, "output_width:       %d\n", m.OutputWidth)
		fmt.Fprintf(w, "direct_index_slots: %d\n", m.DirectIndexSlots)
		fmt.Fprintf(w, "top_k:              %d\n", m.TopK)
		if m.BreakerState != "" {
			fmt.Fprintf(w, "breaker_state:      %s\n", m.BreakerState)
		}
	}
	if len(st.Directories) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# catalog directories")
		for _, d := range st.Directories {
			fmt.Fprintln(w, d)
		}
	}
	return nil
}

// WriteImportSummary writes the outcome of a catalog import.
func WriteImportSummary(w io.Writer, s *catalog.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Imported %d of %d book(s) from %s (%d skipped, %dms)\n",
		s.Imported, s.Rows, s.Path, s.Skipped, s.Duration)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
	return nil
}

// WriteAssignments writes the result of a dense-index maintenance run.
func WriteAssignments(w io.Writer, assigned []storage.DenseAssignment, format OutputFormat) error {
	if format == OutputJSON {
		if assigned == nil {
			assigned = []storage.DenseAssignment{}
		}
		return writeJSON(w, map[string]interface{}{"assigned": len(assigned), "assignments": assigned})
	}
	if len(assigned) == 0 {
		fmt.Fprintln(w, "All books already have a dense index")
		return nil
	}
	for _, a := range assigned {
		fmt.Fprintf(w, "%6d  %s  %s\n", a.DenseIndex, a.BookID, a.Title)
	}
	fmt.Fprintf(w, "Assigned %d dense index(es)\n", len(assigned))
	return nil
}
