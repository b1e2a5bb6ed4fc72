package keyword

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/bookshelf/internal/models"
)

// maxFrom bounds the hit offset passed to Bleve. Result totals are unaffected.
const maxFrom = math.MaxInt32

const (
	fieldTitle      = "title"
	fieldAuthors    = "authors"
	fieldCategories = "categories"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

var _ Index = (*BleveIndex)(nil)

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so books do not need re-indexing on start.
// If you change the index mapping in code, remove the index directory and run reindex.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	bookMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so author names match as written.
	textFieldMapping.Analyzer = standard.Name
	bookMapping.AddFieldMappingsAt(fieldTitle, textFieldMapping)
	bookMapping.AddFieldMappingsAt(fieldAuthors, textFieldMapping)
	bookMapping.AddFieldMappingsAt(fieldCategories, textFieldMapping)
	im.AddDocumentMapping("book", bookMapping)
	im.DefaultType = "book"
	im.DefaultMapping = bookMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func bookDoc(book *models.Book) map[string]interface{} {
	return map[string]interface{}{
		fieldTitle:      book.Title,
		fieldAuthors:    strings.Join(book.Authors, " "),
		fieldCategories: strings.Join(book.Categories, " "),
	}
}

// Index indexes or replaces a book.
func (b *BleveIndex) Index(ctx context.Context, book *models.Book) error {
	return b.index.Index(book.ID, bookDoc(book))
}

// IndexBatch indexes books in a single batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, books []*models.Book) error {
	batch := b.index.NewBatch()
	for _, book := range books {
		if err := batch.Index(book.ID, bookDoc(book)); err != nil {
			return fmt.Errorf("failed to batch book %s: %w", book.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a disjunction of match queries over title, authors, and
// categories, with title matches weighted by opts.TitleBoost.
func (b *BleveIndex) Search(ctx context.Context, query string, opts SearchOptions) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return &Result{}, nil
	}
	size := opts.Size
	if size <= 0 {
		size = 10
	}
	if size > maxFrom {
		size = maxFrom
	}
	from := opts.From
	if from < 0 {
		from = 0
	}
	// Bleve sizes its collector from from+size; keep that sum in range.
	if from > maxFrom-size {
		from = maxFrom - size
	}
	titleBoost := opts.TitleBoost
	if titleBoost <= 0 {
		titleBoost = 1
	}

	q := bleve.NewDisjunctionQuery(
		b.fieldQuery(query, fieldTitle, titleBoost, opts.Fuzziness),
		b.fieldQuery(query, fieldAuthors, 1, opts.Fuzziness),
		b.fieldQuery(query, fieldCategories, 1, opts.Fuzziness),
	)
	req := bleve.NewSearchRequestOptions(q, size, from, false)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := &Result{
		Hits:  make([]Hit, len(results.Hits)),
		Total: int(results.Total),
	}
	for i, hit := range results.Hits {
		out.Hits[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// fieldQuery builds a match query restricted to field. fuzziness > 0 enables typo tolerance.
func (b *BleveIndex) fieldQuery(query, field string, boost float64, fuzziness int) blevequery.Query {
	mq := bleve.NewMatchQuery(query)
	mq.SetField(field)
	if boost != 1 {
		mq.SetBoost(boost)
	}
	if fuzziness > 0 {
		if fuzziness > 2 {
			fuzziness = 2
		}
		mq.SetFuzziness(fuzziness)
	}
	return mq
}

// Delete removes a book from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of books in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
