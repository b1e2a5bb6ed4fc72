package catalog

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/bookshelf/internal/models"
)

// parseCSV reads a comma-separated catalog with a header row.
func parseCSV(r io.Reader) ([]*models.BookInput, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV: %w", err)
	}
	return parseRows(rows)
}

// parseXLSX reads the first sheet of an Excel workbook with a header row.
func parseXLSX(r io.Reader) ([]*models.BookInput, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}
