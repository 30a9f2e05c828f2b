package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/aggregate"
	"github.com/sells-group/company-intel/internal/extract"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/provider"
	"github.com/sells-group/company-intel/internal/store"
	anthropicpkg "github.com/sells-group/company-intel/pkg/anthropic"
	githubpkg "github.com/sells-group/company-intel/pkg/github"
	"github.com/sells-group/company-intel/pkg/jina"
	"github.com/sells-group/company-intel/pkg/jobs"
	"github.com/sells-group/company-intel/pkg/perplexity"
)

// intelEnv holds the initialized store and orchestrator shared by the
// serve/profile/refresh commands.
type intelEnv struct {
	Store        store.Store
	Orchestrator *aggregate.Orchestrator
}

// Close releases resources held by the environment.
func (e *intelEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initOrchestrator sets up the store, the API clients, and the
// policy-ordered category executors. Clients with no credential stay
// nil; their adapters short-circuit to "not configured" at run time, so
// a partially configured install still aggregates from whatever sources
// it has. Callers should defer env.Close().
func initOrchestrator(ctx context.Context) (*intelEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var anthropicClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		anthropicClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("INTEL_ANTHROPIC_KEY not set, extraction-backed providers disabled")
	}
	normalizer := extract.NewNormalizer(anthropicClient, cfg.Anthropic.Model)

	var perplexityClient perplexity.Client
	if cfg.Perplexity.Key != "" {
		perplexityClient = perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
	} else {
		zap.L().Debug("INTEL_PERPLEXITY_KEY not set, research providers disabled")
	}

	var jinaClient jina.Client
	if cfg.Jina.Key != "" {
		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		jinaClient = jina.NewClient(cfg.Jina.Key, jinaOpts...)
	} else {
		zap.L().Debug("INTEL_JINA_KEY not set, page reader providers disabled")
	}

	// The code-hosting API works without a token on the anonymous rate
	// budget, so this client is always constructed.
	githubClient := githubpkg.NewClient(cfg.GitHub.Token,
		githubpkg.WithBaseURL(cfg.GitHub.BaseURL),
		githubpkg.WithRateLimit(cfg.GitHub.RPS),
	)

	var jobsClient jobs.Client
	if cfg.Jobs.Key != "" {
		jobsClient = jobs.NewClient(cfg.Jobs.Key, jobs.WithBaseURL(cfg.Jobs.BaseURL))
	} else {
		zap.L().Debug("INTEL_JOBS_KEY not set, job listing provider disabled")
	}

	policy, err := aggregate.LoadPolicy(cfg.Aggregate.PolicyPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fast := cfg.Aggregate.FastTimeout()
	slow := cfg.Aggregate.SlowTimeout()

	adapters := map[model.Category][]provider.Adapter{
		model.CategoryOverview: {
			provider.NewOverviewResearch(perplexityClient, normalizer, slow),
			provider.NewHomepageReader(jinaClient, normalizer, slow),
		},
		model.CategoryMarket: {
			provider.NewMarketResearch(perplexityClient, normalizer, slow),
			provider.NewCommunitySearch(jinaClient, normalizer, slow),
			provider.NewCodeFootprint(githubClient, fast),
		},
		model.CategoryPeople: {
			provider.NewPeopleResearch(perplexityClient, normalizer, slow),
			provider.NewJobListings(jobsClient, fast),
		},
	}

	executors := make([]*aggregate.Executor, 0, len(adapters))
	for _, cat := range model.Categories() {
		ordered := policy.Order(cat, adapters[cat])
		executors = append(executors, aggregate.NewExecutor(cat, ordered))
	}

	orch := aggregate.NewOrchestrator(st, executors, cfg.Aggregate.Deadline())

	return &intelEnv{Store: st, Orchestrator: orch}, nil
}
