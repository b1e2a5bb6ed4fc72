package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/bookshelf/internal/models"
)

// TierOutcome is the state of a page after one tier ran.
type TierOutcome int

const (
	// TierEmpty means the tier contributed nothing.
	TierEmpty TierOutcome = iota
	// TierPartial means the tier contributed but the page is still short.
	TierPartial
	// TierFilled means the page reached its limit.
	TierFilled
)

func (o TierOutcome) String() string {
	switch o {
	case TierFilled:
		return "filled"
	case TierPartial:
		return "partial"
	default:
		return "empty"
	}
}

const (
	tierModel    = "model"
	tierCategory = "category"
	tierRandom   = "random"
)

// tier fetches candidates for the current shortfall of req.
type tier struct {
	name string
	run  func(ctx context.Context, req *request) ([]*models.Book, error)
}

// tierReport records what one tier did.
type tierReport struct {
	Tier    string
	Added   int
	Outcome TierOutcome
}

// request is the per-call state threaded through the tiers.
type request struct {
	userID   string
	saved    []*models.Book
	savedIDs models.SavedSet
	page     int
	limit    int
	skip     int

	selected models.SavedSet
	books    []*models.Book
	counts   models.TierCounts
}

func newRequest(userID string, saved []*models.Book, page, limit int) *request {
	ids := make([]string, 0, len(saved))
	for _, b := range saved {
		ids = append(ids, b.ID)
	}
	return &request{
		userID:   userID,
		saved:    saved,
		savedIDs: models.NewSavedSet(ids),
		page:     page,
		limit:    limit,
		selected: make(models.SavedSet),
		books:    make([]*models.Book, 0, limit),
	}
}

func (r *request) shortfall() int {
	if n := r.limit - len(r.books); n > 0 {
		return n
	}
	return 0
}

// excluded returns saved and already-selected IDs.
func (r *request) excluded() []string {
	out := r.savedIDs.IDs()
	return append(out, r.selected.IDs()...)
}

// add appends books that are neither saved nor already selected, up to the
// shortfall, and credits them to tierName.
func (r *request) add(tierName string, books []*models.Book) int {
	added := 0
	for _, b := range books {
		if r.shortfall() == 0 {
			break
		}
		if b == nil || r.savedIDs.Contains(b.ID) || r.selected.Contains(b.ID) {
			continue
		}
		r.selected.Add(b.ID)
		r.books = append(r.books, b)
		added++
	}
	switch tierName {
	case tierModel:
		r.counts.Model += added
	case tierCategory:
		r.counts.Category += added
	case tierRandom:
		r.counts.Random += added
	}
	return added
}

func (r *request) outcome(added int) TierOutcome {
	switch {
	case r.shortfall() == 0:
		return TierFilled
	case added > 0:
		return TierPartial
	default:
		return TierEmpty
	}
}

// runTiers runs tiers in order until the page is filled.
func runTiers(ctx context.Context, req *request, tiers []tier) ([]tierReport, error) {
	reports := make([]tierReport, 0, len(tiers))
	for _, t := range tiers {
		if req.shortfall() == 0 {
			break
		}
		books, err := t.run(ctx, req)
		if err != nil {
			return reports, fmt.Errorf("%s tier: %w", t.name, err)
		}
		added := req.add(t.name, books)
		out := req.outcome(added)
		reports = append(reports, tierReport{Tier: t.name, Added: added, Outcome: out})
		if out == TierFilled {
			break
		}
	}
	return reports, nil
}

// provenanceFor labels a page by the tiers that contributed to it.
func provenanceFor(c models.TierCounts) models.Provenance {
	switch {
	case c.Category > 0, c.Model > 0 && c.Random > 0:
		return models.ProvenanceMixed
	case c.Model > 0:
		return models.ProvenancePersonalized
	default:
		return models.ProvenanceRandom
	}
}

// savedCategories returns the union of category names across books,
// deduplicated case-insensitively.
func savedCategories(books []*models.Book) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range books {
		for _, field := range b.Categories {
			for _, name := range models.ParseCategories(field) {
				key := strings.ToLower(name)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, name)
			}
		}
	}
	return out
}
