package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/company-intel/internal/extract"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/pkg/jobs"
	"github.com/sells-group/company-intel/pkg/perplexity"
)

const peopleSchemaJSON = `{
  "type": "object",
  "properties": {
    "key_people": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "title": {"type": ["string", "null"]},
          "profile_url": {"type": ["string", "null"]}
        }
      }
    },
    "hiring_summary": {"type": ["string", "null"]}
  }
}`

var peopleSchema = extract.MustParseSchema(peopleSchemaJSON)

const peopleInstructions = "Extract the company's key people (founders, executives) with their names, titles, and public profile URLs if mentioned, plus a one-sentence summary of any hiring or team-growth signals."

// PeopleResearch answers the people category via Perplexity.
type PeopleResearch struct {
	client     perplexity.Client
	normalizer *extract.Normalizer
	timeout    time.Duration
}

// NewPeopleResearch creates the adapter.
func NewPeopleResearch(client perplexity.Client, normalizer *extract.Normalizer, timeout time.Duration) *PeopleResearch {
	return &PeopleResearch{client: client, normalizer: normalizer, timeout: timeout}
}

func (a *PeopleResearch) Name() string           { return "perplexity_people" }
func (a *PeopleResearch) Timeout() time.Duration { return a.timeout }

func (a *PeopleResearch) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	prompt := fmt.Sprintf(
		"Who are the founders and key executives of %s (%s)? Include their titles and public profiles where known, and note whether the company appears to be growing its team.",
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

	raw, err := a.normalizer.Extract(ctx, resp.Answer(), peopleSchema, peopleSchemaJSON, peopleInstructions)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	var payload model.PeoplePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Failure(a.Name(), err.Error())
	}
	return Success(a.Name(), &payload)
}

// maxOpenRoles caps the role titles carried into the payload.
const maxOpenRoles = 10

// JobListings answers part of the people category from a job-listing
// search API. Direct mapping, no extraction model.
type JobListings struct {
	client  jobs.Client
	timeout time.Duration
}

// NewJobListings creates the adapter.
func NewJobListings(client jobs.Client, timeout time.Duration) *JobListings {
	return &JobListings{client: client, timeout: timeout}
}

func (a *JobListings) Name() string           { return "jobs" }
func (a *JobListings) Timeout() time.Duration { return a.timeout }

func (a *JobListings) Invoke(ctx context.Context, subj model.Subject) Outcome {
	if a.client == nil {
		return Failure(a.Name(), ReasonNotConfigured)
	}

	resp, err := a.client.Search(ctx, subj.Name)
	if err != nil {
		return Failure(a.Name(), err.Error())
	}

	// Listings for similarly named employers are noise; keep exact-ish
	// matches only.
	want := strings.ToLower(subj.Name)
	var titles []string
	count := 0
	for _, l := range resp.Data {
		if !strings.Contains(strings.ToLower(l.Employer), want) {
			continue
		}
		count++
		if len(titles) < maxOpenRoles {
			titles = append(titles, l.Title)
		}
	}
	if titles == nil {
		titles = []string{}
	}

	payload := model.PeoplePayload{
		OpenRoleCount: &count,
		OpenRoles:     titles,
	}
	if count > 0 {
		summary := fmt.Sprintf("%d open roles found, including %s", count, titles[0])
		payload.HiringSummary = &summary
	}
	return Success(a.Name(), &payload)
}
