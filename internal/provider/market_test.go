package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-intel/internal/extract"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/pkg/github"
	"github.com/sells-group/company-intel/pkg/jina"
)

const marketExtraction = `{
	"competitors": ["Globex", "Initech"],
	"market_position": "Leading anvil maker in the Southwest.",
	"customer_rating": 4.4,
	"review_count": 210,
	"recent_news": [{"title": "Acme ships new forge", "url": null, "date": "2026-08-01"}],
	"community_sentiment": "Well regarded for durability."
}`

func TestMarketResearch(t *testing.T) {
	px := &fakePerplexity{answer: "Competitive landscape notes..."}
	norm := extract.NewNormalizer(&fakeAnthropic{response: marketExtraction}, "test-model")

	a := NewMarketResearch(px, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))

	require.True(t, out.OK, out.Reason)
	payload := out.Data.(*model.MarketPayload)
	assert.Equal(t, []string{"Globex", "Initech"}, payload.Competitors)
	require.NotNil(t, payload.CustomerRating)
	assert.InDelta(t, 4.4, *payload.CustomerRating, 0.001)
	require.Len(t, payload.RecentNews, 1)
	assert.Equal(t, "Acme ships new forge", payload.RecentNews[0].Title)
}

func TestCommunitySearch(t *testing.T) {
	jc := &fakeJina{results: []jina.SearchResult{
		{Title: "Acme anvils any good?", Content: "Bought one, solid."},
		{Title: "Alternatives to Acme", Description: "Globex is cheaper."},
	}}
	extraction := `{"community_sentiment": "Mostly positive.", "competitors": ["Globex"]}`
	norm := extract.NewNormalizer(&fakeAnthropic{response: extraction}, "test-model")

	a := NewCommunitySearch(jc, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))

	require.True(t, out.OK, out.Reason)
	payload := out.Data.(*model.MarketPayload)
	require.NotNil(t, payload.CommunitySentiment)
	assert.Equal(t, "Mostly positive.", *payload.CommunitySentiment)
	assert.Equal(t, []string{"Globex"}, payload.Competitors)
}

func TestCommunitySearchNoResults(t *testing.T) {
	jc := &fakeJina{results: nil}
	norm := extract.NewNormalizer(&fakeAnthropic{}, "test-model")

	a := NewCommunitySearch(jc, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	require.False(t, out.OK)
	assert.Contains(t, out.Reason, "no discussion results")
}

func TestCodeFootprint(t *testing.T) {
	gh := &fakeGitHub{
		org: &github.Org{Login: "acme", PublicRepos: 12},
		repos: []github.Repo{
			{Name: "anvil", Stars: 900, Language: "Go"},
			{Name: "forge-ui", Stars: 120, Language: "TypeScript"},
			{Name: "scripts", Stars: 10, Language: "Python"},
			{Name: "anvil-fork", Stars: 5000, Language: "Rust", Fork: true},
			{Name: "legacy", Stars: 4000, Language: "C", Archived: true},
		},
	}

	a := NewCodeFootprint(gh, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))

	require.True(t, out.OK, out.Reason)
	payload := out.Data.(*model.MarketPayload)
	require.NotNil(t, payload.OpenSourceRepos)
	assert.Equal(t, 12, *payload.OpenSourceRepos)
	require.NotNil(t, payload.OpenSourceStars)
	// Forked and archived repos are excluded.
	assert.Equal(t, 1030, *payload.OpenSourceStars)
	assert.Equal(t, []string{"Go", "TypeScript", "Python"}, payload.TopLanguages)
}

func TestCodeFootprintOrgMiss(t *testing.T) {
	gh := &fakeGitHub{orgErr: eris.New("unexpected status 404")}

	a := NewCodeFootprint(gh, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	require.False(t, out.OK)
	assert.Contains(t, out.Reason, "404")
}

func TestCodeFootprintNotConfigured(t *testing.T) {
	a := NewCodeFootprint(nil, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	assert.False(t, out.OK)
	assert.Equal(t, ReasonNotConfigured, out.Reason)
}
