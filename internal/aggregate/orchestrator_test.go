package aggregate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/provider"
)

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	subjects map[string]model.Subject
	results  map[string]map[model.Category]model.CategoryResult
	puts     atomic.Int32
}

func newMemStore() *memStore {
	return &memStore{
		subjects: map[string]model.Subject{},
		results:  map[string]map[model.Category]model.CategoryResult{},
	}
}

func (m *memStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[domain]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) UpsertSubject(ctx context.Context, s model.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[s.Domain] = s
	return nil
}

func (m *memStore) GetCategoryResults(ctx context.Context, domain string) (map[model.Category]model.CategoryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.Category]model.CategoryResult{}
	for cat, res := range m.results[domain] {
		out[cat] = res
	}
	return out, nil
}

func (m *memStore) PutCategoryResult(ctx context.Context, domain string, res model.CategoryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts.Add(1)
	if m.results[domain] == nil {
		m.results[domain] = map[model.Category]model.CategoryResult{}
	}
	m.results[domain][res.Category] = res
	return nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// stubPayload carries one populated field so the adapter is credited as
// a contributing source.
func stubPayload(cat model.Category, name string) any {
	note := "from " + name
	switch cat {
	case model.CategoryOverview:
		return &model.OverviewPayload{Description: &note}
	case model.CategoryMarket:
		return &model.MarketPayload{MarketPosition: &note}
	default:
		return &model.PeoplePayload{HiringSummary: &note}
	}
}

// countingAdapter succeeds immediately and counts invocations.
type countingAdapter struct {
	name    string
	cat     model.Category
	calls   atomic.Int32
	failure string
}

func (a *countingAdapter) Name() string           { return a.name }
func (a *countingAdapter) Timeout() time.Duration { return 0 }
func (a *countingAdapter) Invoke(ctx context.Context, subj model.Subject) provider.Outcome {
	a.calls.Add(1)
	if a.failure != "" {
		return provider.Failure(a.name, a.failure)
	}
	return provider.Success(a.name, stubPayload(a.cat, a.name))
}

func testExecutors(adapters map[model.Category]provider.Adapter) []*Executor {
	var out []*Executor
	for _, cat := range model.Categories() {
		out = append(out, NewExecutor(cat, []provider.Adapter{adapters[cat]}))
	}
	return out
}

func healthyAdapters() map[model.Category]provider.Adapter {
	return map[model.Category]provider.Adapter{
		model.CategoryOverview: &countingAdapter{name: "homepage", cat: model.CategoryOverview},
		model.CategoryMarket:   &countingAdapter{name: "github", cat: model.CategoryMarket},
		model.CategoryPeople:   &countingAdapter{name: "jobs", cat: model.CategoryPeople},
	}
}

func collect(t *testing.T, ch <-chan model.Event) []model.Event {
	t.Helper()
	var events []model.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("stream did not finish; got %d events", len(events))
		}
	}
}

func TestAggregateEventOrdering(t *testing.T) {
	st := newMemStore()
	orch := NewOrchestrator(st, testExecutors(healthyAdapters()), time.Minute)

	snap, ch, err := orch.Aggregate(context.Background(), "https://www.acme.com/about")
	require.NoError(t, err)
	assert.Nil(t, snap)
	require.NotNil(t, ch)

	events := collect(t, ch)
	require.NotEmpty(t, events)

	assert.Equal(t, model.EventSubjectResolved, events[0].Type)
	assert.Equal(t, "Acme", events[0].Name)
	assert.Equal(t, model.EventAllComplete, events[len(events)-1].Type)

	started := map[model.Category]int{}
	settled := map[model.Category]int{}
	for i, ev := range events {
		switch ev.Type {
		case model.EventCategoryStarted:
			started[ev.Category] = i
		case model.EventCategoryComplete, model.EventCategoryError:
			settled[ev.Category] = i
		}
	}
	for _, cat := range model.Categories() {
		require.Contains(t, started, cat)
		require.Contains(t, settled, cat)
		assert.Less(t, started[cat], settled[cat], "category %s settled before it started", cat)
	}

	// Every category was persisted under the normalized domain.
	results, err := st.GetCategoryResults(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Len(t, results, len(model.Categories()))
	for _, res := range results {
		require.NotNil(t, res.UpdatedAt)
	}
}

func TestAggregateCacheHit(t *testing.T) {
	st := newMemStore()
	adapters := healthyAdapters()
	orch := NewOrchestrator(st, testExecutors(adapters), time.Minute)

	// First pass computes everything.
	_, ch, err := orch.Aggregate(context.Background(), "acme.com")
	require.NoError(t, err)
	collect(t, ch)

	// Second pass is a pure cache hit: snapshot, no stream, zero calls.
	before := adapters[model.CategoryOverview].(*countingAdapter).calls.Load()
	snap, ch2, err := orch.Aggregate(context.Background(), "acme.com")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Nil(t, ch2)
	assert.True(t, snap.Complete())
	assert.Equal(t, "acme.com", snap.Subject.Domain)

	for cat, a := range adapters {
		assert.Equal(t, before, a.(*countingAdapter).calls.Load(), "category %s re-invoked on cache hit", cat)
	}
}

func TestAggregatePartialFailureIsolated(t *testing.T) {
	st := newMemStore()
	adapters := healthyAdapters()
	adapters[model.CategoryMarket] = &countingAdapter{
		name: "github", cat: model.CategoryMarket, failure: "unexpected status 500",
	}
	orch := NewOrchestrator(st, testExecutors(adapters), time.Minute)

	_, ch, err := orch.Aggregate(context.Background(), "acme.com")
	require.NoError(t, err)
	events := collect(t, ch)

	var marketErr, overviewOK bool
	for _, ev := range events {
		if ev.Type == model.EventCategoryError && ev.Category == model.CategoryMarket {
			marketErr = true
			assert.Contains(t, ev.Error, "all market providers failed")
		}
		if ev.Type == model.EventCategoryComplete && ev.Category == model.CategoryOverview {
			overviewOK = true
		}
	}
	assert.True(t, marketErr)
	assert.True(t, overviewOK)
	assert.Equal(t, model.EventAllComplete, events[len(events)-1].Type)

	// The failed category was not persisted.
	results, err := st.GetCategoryResults(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.NotContains(t, results, model.CategoryMarket)
	assert.Contains(t, results, model.CategoryOverview)
}

// gateAdapter blocks until released, to hold a pass in flight.
type gateAdapter struct {
	name  string
	cat   model.Category
	gate  chan struct{}
	calls atomic.Int32
}

func (a *gateAdapter) Name() string           { return a.name }
func (a *gateAdapter) Timeout() time.Duration { return 0 }
func (a *gateAdapter) Invoke(ctx context.Context, subj model.Subject) provider.Outcome {
	a.calls.Add(1)
	select {
	case <-ctx.Done():
		return provider.Failure(a.name, ctx.Err().Error())
	case <-a.gate:
		return provider.Success(a.name, stubPayload(a.cat, a.name))
	}
}

func TestAggregateDeduplicatesInFlight(t *testing.T) {
	st := newMemStore()
	gate := make(chan struct{})
	gated := map[model.Category]provider.Adapter{}
	for _, cat := range model.Categories() {
		gated[cat] = &gateAdapter{name: "gated_" + string(cat), cat: cat, gate: gate}
	}
	orch := NewOrchestrator(st, testExecutors(gated), time.Minute)

	_, ch1, err := orch.Aggregate(context.Background(), "acme.com")
	require.NoError(t, err)

	// Second caller attaches to the same pass while it is in flight.
	snap, ch2, err := orch.Aggregate(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Nil(t, snap)
	require.NotNil(t, ch2)

	close(gate)

	events1 := collect(t, ch1)
	events2 := collect(t, ch2)

	assert.Equal(t, model.EventAllComplete, events1[len(events1)-1].Type)
	assert.Equal(t, model.EventAllComplete, events2[len(events2)-1].Type)
	// Late subscriber replays history: both streams open the same way.
	assert.Equal(t, model.EventSubjectResolved, events2[0].Type)

	for _, a := range gated {
		assert.Equal(t, int32(1), a.(*gateAdapter).calls.Load())
	}
}

func TestRefreshCategory(t *testing.T) {
	st := newMemStore()
	adapters := healthyAdapters()
	orch := NewOrchestrator(st, testExecutors(adapters), time.Minute)

	res, err := orch.RefreshCategory(context.Background(), "acme.com", model.CategoryPeople)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPeople, res.Category)
	assert.Equal(t, []string{"jobs"}, res.Sources)
	require.NotNil(t, res.UpdatedAt)

	// Only the requested category was touched.
	results, err := st.GetCategoryResults(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Contains(t, results, model.CategoryPeople)
	assert.Equal(t, int32(0), adapters[model.CategoryOverview].(*countingAdapter).calls.Load())
}

func TestRefreshCategoryAllProvidersFailed(t *testing.T) {
	st := newMemStore()
	adapters := healthyAdapters()
	adapters[model.CategoryMarket] = &countingAdapter{
		name: "github", cat: model.CategoryMarket, failure: "unexpected status 503",
	}
	orch := NewOrchestrator(st, testExecutors(adapters), time.Minute)

	_, err := orch.RefreshCategory(context.Background(), "acme.com", model.CategoryMarket)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all market providers failed")

	results, err := st.GetCategoryResults(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRefreshCategoryUnknown(t *testing.T) {
	orch := NewOrchestrator(newMemStore(), testExecutors(healthyAdapters()), time.Minute)

	_, err := orch.RefreshCategory(context.Background(), "acme.com", model.Category("bogus"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestSnapshotUnknownSubject(t *testing.T) {
	orch := NewOrchestrator(newMemStore(), testExecutors(healthyAdapters()), time.Minute)

	_, err := orch.Snapshot(context.Background(), "never-seen.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown subject")
}
