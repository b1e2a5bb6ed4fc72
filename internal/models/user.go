package models

import "time"

// User is a reader with a saved-book list. A book appears at most once in SavedBookIDs.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	SavedBookIDs []string  `json:"saved_book_ids" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserInput is the input for creating a user.
type UserInput struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SavedSet is a membership set over book IDs.
type SavedSet map[string]struct{}

// NewSavedSet builds a set from ids.
func NewSavedSet(ids []string) SavedSet {
	s := make(SavedSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s SavedSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s SavedSet) Add(id string) {
	s[id] = struct{}{}
}

// IDs returns the members in no particular order.
func (s SavedSet) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
