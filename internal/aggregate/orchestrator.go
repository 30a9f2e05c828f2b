package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/store"
)

// runEventBuffer sizes subscriber channels. A full pass emits at most
// 2 + 2*len(categories) frames, so this never fills for a draining
// subscriber.
const runEventBuffer = 16

// persistTimeout bounds write-backs, which run on their own context so a
// caller disconnect or an expired aggregation deadline cannot lose a
// settled result.
const persistTimeout = 10 * time.Second

// ErrEmptySubject rejects a subject id that normalizes to nothing.
// Callers can distinguish it from store failures.
var ErrEmptySubject = eris.New("aggregate: empty subject")

// run is one in-flight aggregation pass for a subject. Concurrent
// Aggregate calls for the same subject attach to the same run; late
// subscribers replay the already-emitted history before receiving live
// frames.
type run struct {
	id string

	mu      sync.Mutex
	history []model.Event
	subs    []chan model.Event
	done    bool
}

func (r *run) subscribe() <-chan model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan model.Event, runEventBuffer)
	for _, ev := range r.history {
		ch <- ev
	}
	if r.done {
		close(ch)
		return ch
	}
	r.subs = append(r.subs, ch)
	return ch
}

func (r *run) emit(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, ev)
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber stalled past the buffer; drop the frame rather
			// than block the pass.
		}
	}
}

func (r *run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done = true
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}

// Orchestrator coordinates the full aggregation pass: cache check,
// concurrent category execution, per-category persistence, and progress
// events.
type Orchestrator struct {
	store     store.Store
	executors []*Executor
	deadline  time.Duration

	mu       sync.Mutex
	inflight map[string]*run
}

// NewOrchestrator creates an orchestrator over the given category
// executors. deadline bounds one full aggregation pass.
func NewOrchestrator(st store.Store, executors []*Executor, deadline time.Duration) *Orchestrator {
	return &Orchestrator{
		store:     st,
		executors: executors,
		deadline:  deadline,
		inflight:  make(map[string]*run),
	}
}

// Aggregate resolves a subject and returns either a complete snapshot
// (every category computed at least once; zero provider calls) or a
// stream of progress events for a freshly launched or already in-flight
// pass. Exactly one of snapshot and channel is non-nil on success.
//
// The pass itself runs on a detached context bounded by the configured
// deadline, so cancelling ctx stops delivery but not the work or its
// write-backs.
func (o *Orchestrator) Aggregate(ctx context.Context, subjectID string) (*model.ProfileSnapshot, <-chan model.Event, error) {
	domain := model.NormalizeDomain(subjectID)
	if domain == "" {
		return nil, nil, ErrEmptySubject
	}

	stored, err := o.store.GetSubject(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	if stored != nil {
		results, err := o.store.GetCategoryResults(ctx, domain)
		if err != nil {
			return nil, nil, err
		}
		snap := snapshotFrom(*stored, results)
		if snap.Complete() {
			return snap, nil, nil
		}
	}

	o.mu.Lock()
	if r, ok := o.inflight[domain]; ok {
		o.mu.Unlock()
		return nil, r.subscribe(), nil
	}
	r := &run{id: uuid.New().String()}
	o.inflight[domain] = r
	o.mu.Unlock()

	ch := r.subscribe()
	go o.execute(domain, stored, r)
	return nil, ch, nil
}

// Snapshot returns the persisted profile for a subject without triggering
// any provider work. All categories are reported, never-computed ones
// with an empty payload and nil updated_at.
func (o *Orchestrator) Snapshot(ctx context.Context, subjectID string) (*model.ProfileSnapshot, error) {
	domain := model.NormalizeDomain(subjectID)
	if domain == "" {
		return nil, ErrEmptySubject
	}

	subj, err := o.store.GetSubject(ctx, domain)
	if err != nil {
		return nil, err
	}
	if subj == nil {
		return nil, eris.Errorf("aggregate: unknown subject %s", domain)
	}
	results, err := o.store.GetCategoryResults(ctx, domain)
	if err != nil {
		return nil, err
	}
	return snapshotFrom(*subj, results), nil
}

// RefreshCategory re-runs a single category executor and replaces only
// that category's persisted result. Unlike Aggregate it is synchronous
// and runs on the caller's context.
func (o *Orchestrator) RefreshCategory(ctx context.Context, subjectID string, cat model.Category) (*model.CategoryResult, error) {
	domain := model.NormalizeDomain(subjectID)
	if domain == "" {
		return nil, ErrEmptySubject
	}

	var exec *Executor
	for _, e := range o.executors {
		if e.Category() == cat {
			exec = e
			break
		}
	}
	if exec == nil {
		return nil, eris.Errorf("aggregate: unknown category %s", cat)
	}

	subj, err := o.resolveSubject(ctx, domain)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	out := exec.Run(ctx, subj)
	logSettled(subj, out, started)
	if out.Err != nil {
		return nil, out.Err
	}

	now := time.Now().UTC()
	res := model.CategoryResult{
		Category:  out.Category,
		Payload:   out.Payload,
		Sources:   out.Sources,
		UpdatedAt: &now,
	}
	if err := o.store.PutCategoryResult(ctx, domain, res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (o *Orchestrator) resolveSubject(ctx context.Context, domain string) (model.Subject, error) {
	stored, err := o.store.GetSubject(ctx, domain)
	if err != nil {
		return model.Subject{}, err
	}
	if stored != nil {
		return *stored, nil
	}
	subj := model.NewSubject(domain, "")
	if err := o.store.UpsertSubject(ctx, subj); err != nil {
		return model.Subject{}, err
	}
	return subj, nil
}

// execute runs one full pass. It owns the run's lifecycle: every path
// ends with all_complete, closed subscriber channels, and the in-flight
// slot released.
func (o *Orchestrator) execute(domain string, stored *model.Subject, r *run) {
	defer func() {
		r.finish()
		o.mu.Lock()
		delete(o.inflight, domain)
		o.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.deadline)
	defer cancel()

	started := time.Now()
	zap.L().Info("aggregate: pass started",
		zap.String("run_id", r.id), zap.String("subject", domain))
	defer func() {
		zap.L().Info("aggregate: pass complete",
			zap.String("run_id", r.id),
			zap.String("subject", domain),
			zap.Duration("elapsed", time.Since(started)),
		)
	}()

	var subj model.Subject
	if stored != nil {
		subj = *stored
	} else {
		subj = model.NewSubject(domain, "")
		if err := o.store.UpsertSubject(ctx, subj); err != nil {
			zap.L().Warn("aggregate: upsert subject",
				zap.String("subject", domain), zap.Error(err))
		}
	}

	r.emit(model.SubjectResolved(subj))

	g := new(errgroup.Group)
	for _, e := range o.executors {
		r.emit(model.CategoryStarted(e.Category()))
		g.Go(func() error {
			o.runCategory(ctx, subj, e, r)
			return nil
		})
	}
	// Category errors are emitted as frames, never returned.
	_ = g.Wait()

	r.emit(model.AllComplete())
}

func (o *Orchestrator) runCategory(ctx context.Context, subj model.Subject, e *Executor, r *run) {
	started := time.Now()
	out := e.Run(ctx, subj)
	logSettled(subj, out, started)

	if out.Err != nil {
		r.emit(model.CategoryFailed(out.Category, deadlineReason(ctx, out.Err)))
		return
	}

	now := time.Now().UTC()
	res := model.CategoryResult{
		Category:  out.Category,
		Payload:   out.Payload,
		Sources:   out.Sources,
		UpdatedAt: &now,
	}

	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.store.PutCategoryResult(persistCtx, subj.Domain, res); err != nil {
		// The merged payload is still valid for this pass; only the
		// cache write was lost.
		zap.L().Error("aggregate: persist category",
			zap.String("subject", subj.Domain),
			zap.String("category", string(out.Category)),
			zap.Error(err),
		)
	}

	r.emit(model.CategoryCompleted(out.Category, out.Payload, out.Sources))
}

// snapshotFrom assembles a stored-only snapshot. Every known category is
// present; never-computed ones carry the empty payload and nil
// updated_at so Complete reports false.
func snapshotFrom(subj model.Subject, results map[model.Category]model.CategoryResult) *model.ProfileSnapshot {
	snap := &model.ProfileSnapshot{
		Subject:    subj,
		Categories: make(map[model.Category]model.CategorySnapshot, len(model.Categories())),
	}
	for _, c := range model.Categories() {
		res, ok := results[c]
		if !ok {
			res = model.EmptyResult(c)
		}
		snap.Categories[c] = model.CategorySnapshot{
			Payload:   res.Payload,
			Sources:   res.Sources,
			UpdatedAt: res.UpdatedAt,
		}
	}
	return snap
}
