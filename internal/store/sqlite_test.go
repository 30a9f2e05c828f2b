package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "intel_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteSubjectRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	got, err := st.GetSubject(ctx, "acme.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	subj := model.NewSubject("acme.com", "Acme Corp")
	require.NoError(t, st.UpsertSubject(ctx, subj))

	got, err = st.GetSubject(ctx, "acme.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme.com", got.Domain)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.NotEmpty(t, got.LogoURL)

	// Upsert refreshes display fields in place.
	subj.Name = "Acme Corporation"
	require.NoError(t, st.UpsertSubject(ctx, subj))
	got, err = st.GetSubject(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", got.Name)
}

func TestSQLiteCategoryResults(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubject(ctx, model.NewSubject("acme.com", "")))

	results, err := st.GetCategoryResults(ctx, "acme.com")
	require.NoError(t, err)
	assert.Empty(t, results)

	now := time.Now().UTC().Truncate(time.Second)
	res := model.CategoryResult{
		Category:  model.CategoryOverview,
		Payload:   json.RawMessage(`{"description":"Acme makes anvils."}`),
		Sources:   []string{"homepage", "perplexity_overview"},
		UpdatedAt: &now,
	}
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", res))

	results, err = st.GetCategoryResults(ctx, "acme.com")
	require.NoError(t, err)
	require.Len(t, results, 1)
	got := results[model.CategoryOverview]
	assert.JSONEq(t, `{"description":"Acme makes anvils."}`, string(got.Payload))
	assert.Equal(t, []string{"homepage", "perplexity_overview"}, got.Sources)
	require.NotNil(t, got.UpdatedAt)
	assert.WithinDuration(t, now, *got.UpdatedAt, time.Second)
}

func TestSQLitePutReplacesWholeRow(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubject(ctx, model.NewSubject("acme.com", "")))

	first := model.CategoryResult{
		Category: model.CategoryMarket,
		Payload:  json.RawMessage(`{"competitors":["Globex"]}`),
		Sources:  []string{"perplexity_market"},
	}
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", first))

	second := model.CategoryResult{
		Category: model.CategoryMarket,
		Payload:  json.RawMessage(`{"competitors":["Initech"]}`),
		Sources:  []string{"github"},
	}
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", second))

	results, err := st.GetCategoryResults(ctx, "acme.com")
	require.NoError(t, err)
	require.Len(t, results, 1)
	got := results[model.CategoryMarket]
	assert.JSONEq(t, `{"competitors":["Initech"]}`, string(got.Payload))
	assert.Equal(t, []string{"github"}, got.Sources)
}

func TestSQLiteCategoriesIndependent(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubject(ctx, model.NewSubject("acme.com", "")))
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", model.CategoryResult{
		Category: model.CategoryOverview,
		Payload:  json.RawMessage(`{}`),
		Sources:  []string{},
	}))
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", model.CategoryResult{
		Category: model.CategoryPeople,
		Payload:  json.RawMessage(`{}`),
		Sources:  []string{},
	}))

	results, err := st.GetCategoryResults(ctx, "acme.com")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Contains(t, results, model.CategoryOverview)
	assert.Contains(t, results, model.CategoryPeople)
	assert.NotContains(t, results, model.CategoryMarket)
}

func TestSQLiteDefaultsUpdatedAt(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubject(ctx, model.NewSubject("acme.com", "")))
	require.NoError(t, st.PutCategoryResult(ctx, "acme.com", model.CategoryResult{
		Category: model.CategoryOverview,
		Payload:  json.RawMessage(`{}`),
		Sources:  []string{},
	}))

	results, err := st.GetCategoryResults(ctx, "acme.com")
	require.NoError(t, err)
	got := results[model.CategoryOverview]
	require.NotNil(t, got.UpdatedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.UpdatedAt, time.Minute)
}
