package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/company-intel/internal/extract"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/pkg/github"
	"github.com/sells-group/company-intel/pkg/jina"
	"github.com/sells-group/company-intel/pkg/perplexity"
)

const marketSchemaJSON = `{
  "type": "object",
  "properties": {
    "competitors": {"type": ["array", "null"], "items": {"type": "string"}},
    "market_position": {"type": ["string", "null"]},
    "customer_rating": {"type": ["number", "null"]},
    "review_count": {"type": ["integer", "null"]},
    "recent_news": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url": {"type": ["string", "null"]},
          "date": {"type": ["string", "null"]}
        }
      }
    },
    "community_sentiment": {"type": ["string", "null"]}
  }
}`

var marketSchema = extract.MustParseSchema(marketSchemaJSON)

const marketInstructions = "Extract the company's main competitors, a one-sentence market position summary, its average customer rating (0-5) and review count if stated, recent news items with titles, and a one-sentence summary of community sentiment."

const communitySchemaJSON = `{
  "type": "object",
  "properties": {
    "community_sentiment": {"type": ["string", "null"]},
    "competitors": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

var communitySchema = extract.MustParseSchema(communitySchemaJSON)

const communityInstructions = "From these community discussion snippets, summarize in one or two sentences how people talk about the company (sentiment, common praise/complaints), and list any competitor products mentioned as alternatives."

// MarketResearch answers the market category via Perplexity.
type MarketResearch struct {
	client     perplexity.Client
	normalizer *extract.Normalizer
	timeout    time.Duration
}

// NewMarketResearch creates the adapter.
func NewMarketResearch(client perplexity.Client, normalizer *extract.Normalizer, timeout time.Duration) *MarketResearch {
	return &MarketResearch{client: client, normalizer: normalizer, timeout: timeout}
}

func (a *MarketResearch) Name() string           { return "perplexity_market" }
func (a *MarketResearch) Timeout() time.Duration { return a.timeout }

func (a *MarketResearch) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	prompt := fmt.Sprintf(
		"Research the competitive landscape for %s (%s): who are its main competitors, how is it positioned in its market, what do customer ratings and reviews say, and what notable news has there been recently?",
		subj.Name, subj.Domain,
	)

	resp, err := a.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Failure(a.Name(), err.Error())
	}
	if resp.Answer() == "" {
		return Failure(a.Name(), "empty completion")
	}

	raw, err := a.normalizer.Extract(ctx, resp.Answer(), marketSchema, marketSchemaJSON, marketInstructions)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	var payload model.MarketPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failure(a.Name(), err.Error())
	}
	return Success(a.Name(), &payload)
}

// CommunitySearch answers part of the market category from community
// discussion search results.
type CommunitySearch struct {
	client     jina.Client
	normalizer *extract.Normalizer
	timeout    time.Duration
}

// NewCommunitySearch creates the adapter.
func NewCommunitySearch(client jina.Client, normalizer *extract.Normalizer, timeout time.Duration) *CommunitySearch {
	return &CommunitySearch{client: client, normalizer: normalizer, timeout: timeout}
}

func (a *CommunitySearch) Name() string           { return "community" }
func (a *CommunitySearch) Timeout() time.Duration { return a.timeout }

func (a *CommunitySearch) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	resp, err := a.client.Search(ctx, subj.Name+" reviews experience",
		jina.WithSiteFilter("reddit.com"))
	if err != nil {
		return Failure(a.Name(), err.Error())
	}
	if len(resp.Data) == 0 {
		return Failure(a.Name(), "no discussion results")
	}

	var b strings.Builder
	for i, r := range resp.Data {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", r.Title, snippet(r))
	}

	raw, err := a.normalizer.Extract(ctx, b.String(), communitySchema, communitySchemaJSON, communityInstructions)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	var payload model.MarketPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failure(a.Name(), err.Error())
	}
	return Success(a.Name(), &payload)
}

func snippet(r jina.SearchResult) string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// maxTopLanguages caps the languages reported from repo stats.
const maxTopLanguages = 3

// CodeFootprint answers part of the market category from code-hosting
// statistics. It maps API data directly; no extraction model involved.
type CodeFootprint struct {
	client  github.Client
	timeout time.Duration
}

// NewCodeFootprint creates the adapter.
func NewCodeFootprint(client github.Client, timeout time.Duration) *CodeFootprint {
	return &CodeFootprint{client: client, timeout: timeout}
}

func (a *CodeFootprint) Name() string           { return "github" }
func (a *CodeFootprint) Timeout() time.Duration { return a.timeout }

func (a *CodeFootprint) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	// Org slug guess: the domain's leftmost label. A miss is an ordinary
	// adapter failure, silently tolerated by the category.
	org := subj.Domain
	if i := strings.Index(org, "."); i >= 0 {
		org = org[:i]
	}

	orgInfo, err := a.client.GetOrg(ctx, org)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	repos, err := a.client.ListRepos(ctx, org)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	stars := 0
	byLanguage := map[string]int{}
	for _, r := range repos {
		if r.Fork || r.Archived {
			continue
		}
		stars += r.Stars
		if r.Language != "" {
			byLanguage[r.Language] += r.Stars + 1
		}
	}

	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool {
		if byLanguage[languages[i]] != byLanguage[languages[j]] {
			return byLanguage[languages[i]] > byLanguage[languages[j]]
		}
		return languages[i] < languages[j]
	})
	if len(languages) > maxTopLanguages {
		languages = languages[:maxTopLanguages]
	}

	repoCount := orgInfo.PublicRepos
	payload := model.MarketPayload{
		OpenSourceRepos: &repoCount,
		OpenSourceStars: &stars,
		TopLanguages:    languages,
	}
	return Success(a.Name(), &payload)
}
