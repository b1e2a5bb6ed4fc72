package recommend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/models"
)

// Profile is the encoded reading history of one user.
type Profile struct {
	Vector      []float32
	Diagnostics Diagnostics
}

// Diagnostics describes what the encoder saw. It never alters the vector.
type Diagnostics struct {
	ActiveFeatures    int
	DirectSignals     int
	CategorySignals   int
	MissingDenseIndex []string
	OutOfRange        []int
	UnknownCategories []string
}

// Encoder turns a saved-book set into a fixed-width 0/1 profile vector.
// Positions [0, directSlots) are the direct-index region; the category
// region follows it.
type Encoder struct {
	width       int
	directSlots int
	categories  *CategoryIndex
	logger      *zap.Logger
}

// NewEncoder validates the layout and returns an encoder. logger may be nil.
func NewEncoder(width, directSlots int, logger *zap.Logger) (*Encoder, error) {
	if directSlots <= 0 {
		return nil, fmt.Errorf("direct index slots must be positive, got %d", directSlots)
	}
	categories := NewCategoryIndex(directSlots)
	if need := directSlots + categories.Len(); width < need {
		return nil, fmt.Errorf("profile width %d too small for %d direct slots and %d categories", width, directSlots, categories.Len())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{
		width:       width,
		directSlots: directSlots,
		categories:  categories,
		logger:      logger,
	}, nil
}

// Width returns the profile vector length.
func (e *Encoder) Width() int {
	return e.width
}

// Categories returns the category index used for the category region.
func (e *Encoder) Categories() *CategoryIndex {
	return e.categories
}

// Encode builds the profile for saved. An empty set yields the all-zero vector.
func (e *Encoder) Encode(saved []*models.Book) Profile {
	vec := make([]float32, e.width)
	var diag Diagnostics

	for _, book := range saved {
		if book == nil {
			continue
		}
		if book.DenseIndex == nil {
			diag.MissingDenseIndex = append(diag.MissingDenseIndex, book.Title)
		} else if idx := *book.DenseIndex; idx >= 0 && idx < e.directSlots {
			vec[idx] = 1
			diag.DirectSignals++
		} else {
			diag.OutOfRange = append(diag.OutOfRange, idx)
		}

		for _, field := range book.Categories {
			for _, name := range models.ParseCategories(field) {
				slot, ok := e.categories.Lookup(name)
				if !ok {
					diag.UnknownCategories = append(diag.UnknownCategories, name)
					continue
				}
				vec[slot] = 1
				diag.CategorySignals++
			}
		}
	}

	for _, v := range vec {
		if v != 0 {
			diag.ActiveFeatures++
		}
	}

	if len(diag.MissingDenseIndex) > 0 {
		e.logger.Debug("saved books without dense index",
			zap.Int("count", len(diag.MissingDenseIndex)),
			zap.Strings("titles", diag.MissingDenseIndex))
	}
	if len(diag.OutOfRange) > 0 {
		e.logger.Warn("dense indices outside direct-index region ignored",
			zap.Ints("indices", diag.OutOfRange),
			zap.Int("direct_slots", e.directSlots))
	}
	e.logger.Debug("encoded profile",
		zap.Int("saved", len(saved)),
		zap.Int("active_features", diag.ActiveFeatures))

	return Profile{Vector: vec, Diagnostics: diag}
}
