package recommend

import "strings"

// DefaultCategoryBase is the first profile slot of the category region.
const DefaultCategoryBase = 1000

// knownCategories lists the categories with a reserved profile slot, in slot order.
var knownCategories = []string{
	"Fiction",
	"Non-fiction",
	"Science",
	"Technology",
	"Business",
	"Self-help",
	"Biography",
	"History",
	"Mystery",
	"Romance",
	"Science Fiction",
	"Fantasy",
	"Horror",
	"Thriller",
	"Children",
	"Young Adult",
	"Poetry",
	"Drama",
	"Art",
	"Music",
	"Travel",
	"Cooking",
	"Health",
	"Religion",
	"Philosophy",
}

// CategoryIndex maps known category names to profile slots.
// It is immutable after construction and safe for concurrent use.
type CategoryIndex struct {
	base  int
	slots map[string]int
}

// NewCategoryIndex returns an index whose slots start at base.
func NewCategoryIndex(base int) *CategoryIndex {
	slots := make(map[string]int, len(knownCategories))
	for i, name := range knownCategories {
		slots[name] = base + i
	}
	return &CategoryIndex{base: base, slots: slots}
}

// Lookup returns the slot for name. An exact match wins; otherwise the table
// is scanned case-insensitively. Unknown names return -1, false.
func (c *CategoryIndex) Lookup(name string) (int, bool) {
	if slot, ok := c.slots[name]; ok {
		return slot, true
	}
	for i, known := range knownCategories {
		if strings.EqualFold(known, name) {
			return c.base + i, true
		}
	}
	return -1, false
}

// Base returns the first slot of the category region.
func (c *CategoryIndex) Base() int {
	return c.base
}

// Len returns the number of reserved slots.
func (c *CategoryIndex) Len() int {
	return len(knownCategories)
}

// Names returns the known categories in slot order.
func (c *CategoryIndex) Names() []string {
	return append([]string(nil), knownCategories...)
}
