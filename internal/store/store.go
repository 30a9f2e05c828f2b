// Package store persists subjects and their per-category aggregation
// results.
package store

import (
	"context"

	"github.com/sells-group/company-intel/internal/model"
)

// Store is the persistence interface for the aggregation pipeline.
// Category writes are independent — one category's write never touches
// another's row — so no multi-category transaction is needed.
type Store interface {
	// GetSubject returns the subject for a domain, or nil if unknown.
	GetSubject(ctx context.Context, domain string) (*model.Subject, error)
	// UpsertSubject creates or refreshes a subject row.
	UpsertSubject(ctx context.Context, s model.Subject) error

	// GetCategoryResults returns every persisted category result for a
	// subject. Categories never computed are absent from the map.
	GetCategoryResults(ctx context.Context, domain string) (map[model.Category]model.CategoryResult, error)
	// PutCategoryResult atomically replaces one category's result.
	PutCategoryResult(ctx context.Context, domain string, res model.CategoryResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
