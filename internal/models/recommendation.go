package models

// Provenance describes which tiers produced a recommendation page.
type Provenance string

const (
	// ProvenancePersonalized means only the model tier contributed.
	ProvenancePersonalized Provenance = "personalized"
	// ProvenanceMixed means the category or random tier topped up model results,
	// or the category tier contributed at all.
	ProvenanceMixed Provenance = "mixed"
	// ProvenanceRandom means the page is a uniform random sample.
	ProvenanceRandom Provenance = "random"
	// ProvenanceRandomFallback means the scorer failed and the page is a random sample.
	ProvenanceRandomFallback Provenance = "random (error fallback)"
)

// IsRandom reports whether p is one of the random variants.
func (p Provenance) IsRandom() bool {
	return p == ProvenanceRandom || p == ProvenanceRandomFallback
}

// TierCounts records how many books each tier contributed to a page.
type TierCounts struct {
	Model    int `json:"model"`
	Category int `json:"category"`
	Random   int `json:"random"`
}

// Recommendation is a page of recommended books for one user.
// Books never contains a saved book or a duplicate.
type Recommendation struct {
	UserID     string     `json:"user_id"`
	Books      []*Book    `json:"books"`
	Provenance Provenance `json:"provenance"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
	Tiers      TierCounts `json:"tiers"`
	QueryTime  int64      `json:"query_time_ms"`
}
