package model

import "encoding/json"

// EventType discriminates progressive-delivery event frames.
type EventType string

// Event types, in required emission order per aggregation pass:
// subject_resolved first, category_started per category, then exactly one
// of category_complete/category_error per category, all_complete last.
const (
	EventSubjectResolved  EventType = "subject_resolved"
	EventCategoryStarted  EventType = "category_started"
	EventCategoryComplete EventType = "category_complete"
	EventCategoryError    EventType = "category_error"
	EventAllComplete      EventType = "all_complete"
)

// Event is a single progressive-delivery frame.
type Event struct {
	Type     EventType       `json:"type"`
	Name     string          `json:"name,omitempty"`
	LogoURL  string          `json:"logo_url,omitempty"`
	Category Category        `json:"category,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Sources  []string        `json:"sources,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// SubjectResolved builds the opening event carrying best-effort display
// metadata.
func SubjectResolved(s Subject) Event {
	return Event{Type: EventSubjectResolved, Name: s.Name, LogoURL: s.LogoURL}
}

// CategoryStarted builds a category_started frame.
func CategoryStarted(c Category) Event {
	return Event{Type: EventCategoryStarted, Category: c}
}

// CategoryCompleted builds a category_complete frame.
func CategoryCompleted(c Category, payload json.RawMessage, sources []string) Event {
	return Event{Type: EventCategoryComplete, Category: c, Payload: payload, Sources: sources}
}

// CategoryFailed builds a category_error frame.
func CategoryFailed(c Category, reason string) Event {
	return Event{Type: EventCategoryError, Category: c, Error: reason}
}

// AllComplete builds the terminal frame.
func AllComplete() Event {
	return Event{Type: EventAllComplete}
}
