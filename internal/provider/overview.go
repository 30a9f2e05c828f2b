package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sells-group/company-intel/internal/extract"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/pkg/jina"
	"github.com/sells-group/company-intel/pkg/perplexity"
)

const overviewSchemaJSON = `{
  "type": "object",
  "properties": {
    "description": {"type": ["string", "null"]},
    "industry": {"type": ["string", "null"]},
    "founded_year": {"type": ["integer", "null"]},
    "headquarters": {"type": ["string", "null"]},
    "employee_range": {"type": ["string", "null"]},
    "website": {"type": ["string", "null"]},
    "social_links": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

var overviewSchema = extract.MustParseSchema(overviewSchemaJSON)

const overviewInstructions = "Extract the company's one-paragraph description, primary industry, founding year, headquarters location (city, region), approximate employee range (e.g. \"51-200\"), canonical website URL, and any social media profile URLs."

// OverviewResearch answers the overview category via Perplexity's
// search-grounded completion plus structured extraction.
type OverviewResearch struct {
	client     perplexity.Client
	normalizer *extract.Normalizer
	timeout    time.Duration
}

// NewOverviewResearch creates the adapter. A nil client means the
// provider is not configured and the adapter self-disables.
func NewOverviewResearch(client perplexity.Client, normalizer *extract.Normalizer, timeout time.Duration) *OverviewResearch {
	return &OverviewResearch{client: client, normalizer: normalizer, timeout: timeout}
}

func (a *OverviewResearch) Name() string           { return "perplexity_overview" }
func (a *OverviewResearch) Timeout() time.Duration { return a.timeout }

func (a *OverviewResearch) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	prompt := fmt.Sprintf(
		"Research the company %s (website: %s). Summarize what it does, its industry, founding year, headquarters, employee count range, and social media presence. Cite concrete facts only.",
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

	raw, err := a.normalizer.Extract(ctx, resp.Answer(), overviewSchema, overviewSchemaJSON, overviewInstructions)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	var payload model.OverviewPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failure(a.Name(), err.Error())
	}
	return Success(a.Name(), &payload)
}

// HomepageReader answers the overview category by reading the company's
// homepage through Jina Reader and extracting from the page content. It
// complements the research adapter with first-party facts.
type HomepageReader struct {
	client     jina.Client
	normalizer *extract.Normalizer
	timeout    time.Duration
}

// NewHomepageReader creates the adapter.
func NewHomepageReader(client jina.Client, normalizer *extract.Normalizer, timeout time.Duration) *HomepageReader {
	return &HomepageReader{client: client, normalizer: normalizer, timeout: timeout}
}

func (a *HomepageReader) Name() string           { return "homepage" }
func (a *HomepageReader) Timeout() time.Duration { return a.timeout }

func (a *HomepageReader) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	page, err := a.client.Read(ctx, "https://"+subj.Domain)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}
	if page.Data.Content == "" {
		return Failure(a.Name(), "empty page content")
	}

	raw, err := a.normalizer.Extract(ctx, page.Data.Content, overviewSchema, overviewSchemaJSON, overviewInstructions)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	var payload model.OverviewPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failure(a.Name(), err.Error())
	}
	return Success(a.Name(), &payload)
}
