// Package model defines the shared types for the company intelligence profile.
package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Subject is the company being researched, keyed by its canonical domain.
// Immutable once resolved; created on first lookup.
type Subject struct {
	Domain    string    `json:"domain" db:"domain"`
	Name      string    `json:"name" db:"name"`
	LogoURL   string    `json:"logo_url,omitempty" db:"logo_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var titleCaser = cases.Title(language.English)

// NewSubject builds a Subject from a raw domain, deriving best-effort
// display metadata. The name falls back to the title-cased registrable
// label ("acme.com" -> "Acme") and the logo to a favicon service URL, so
// a subject_resolved event can be emitted before any provider responds.
func NewSubject(domain, name string) Subject {
	domain = NormalizeDomain(domain)
	if name == "" {
		name = titleCaser.String(domainLabel(domain))
	}
	return Subject{
		Domain:    domain,
		Name:      name,
		LogoURL:   fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=128", domain),
		CreatedAt: time.Now().UTC(),
	}
}

// NormalizeDomain strips scheme, www prefix, path, and port from a raw
// domain-ish string and lowercases it.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	return d
}

// domainLabel returns the leftmost label of the registrable part:
// "store.acme.co.uk" -> "store". Good enough for a display fallback.
func domainLabel(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) == 0 || parts[0] == "" {
		return domain
	}
	return parts[0]
}
