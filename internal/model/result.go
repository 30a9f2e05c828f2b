package model

import (
	"encoding/json"
	"time"
)

// CategoryResult is the persisted, merged output for one category of one
// subject. A nil UpdatedAt means the category has never been computed.
// Writes replace the whole row atomically; a category is never partially
// written.
type CategoryResult struct {
	Category  Category        `json:"category" db:"category"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Sources   []string        `json:"sources" db:"sources"`
	UpdatedAt *time.Time      `json:"updated_at" db:"updated_at"`
}

// EmptyResult returns a never-computed CategoryResult with the category's
// default payload.
func EmptyResult(c Category) CategoryResult {
	payload, _ := json.Marshal(EmptyPayload(c))
	return CategoryResult{
		Category: c,
		Payload:  payload,
		Sources:  []string{},
	}
}

// CategorySnapshot is one category's view inside a ProfileSnapshot. Fresh
// reports whether the payload was computed during the current request
// rather than served from the store.
type CategorySnapshot struct {
	Payload   json.RawMessage `json:"payload"`
	Sources   []string        `json:"sources"`
	UpdatedAt *time.Time      `json:"updated_at"`
	Fresh     bool            `json:"fresh"`
}

// ProfileSnapshot is the full multi-category view returned to a caller.
// Freshness and timestamps are category-independent: one category may be
// stale while another is fresh in the same snapshot.
type ProfileSnapshot struct {
	Subject    Subject                       `json:"subject"`
	Categories map[Category]CategorySnapshot `json:"categories"`
}

// MarkFresh flags the given categories as computed during the current
// request. Unknown categories are ignored.
func (s *ProfileSnapshot) MarkFresh(cats ...Category) {
	for _, c := range cats {
		cs, ok := s.Categories[c]
		if !ok {
			continue
		}
		cs.Fresh = true
		s.Categories[c] = cs
	}
}

// Complete reports whether every category has been computed at least once.
func (s *ProfileSnapshot) Complete() bool {
	for _, c := range Categories() {
		cs, ok := s.Categories[c]
		if !ok || cs.UpdatedAt == nil {
			return false
		}
	}
	return true
}
