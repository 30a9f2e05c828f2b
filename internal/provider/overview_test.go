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
)

const overviewExtraction = `{
	"description": "Acme makes anvils.",
	"industry": "Manufacturing",
	"founded_year": 1987,
	"headquarters": "Phoenix, AZ",
	"employee_range": "51-200",
	"website": "https://acme.com",
	"social_links": ["https://x.com/acme"]
}`

func TestOverviewResearch(t *testing.T) {
	px := &fakePerplexity{answer: "Acme Corp, founded 1987 in Phoenix, makes anvils..."}
	norm := extract.NewNormalizer(&fakeAnthropic{response: overviewExtraction}, "test-model")

	a := NewOverviewResearch(px, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))

	require.True(t, out.OK, out.Reason)
	payload, ok := out.Data.(*model.OverviewPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Description)
	assert.Equal(t, "Acme makes anvils.", *payload.Description)
	require.NotNil(t, payload.FoundedYear)
	assert.Equal(t, 1987, *payload.FoundedYear)
	assert.Equal(t, []string{"https://x.com/acme"}, payload.SocialLinks)
}

func TestOverviewResearchNotConfigured(t *testing.T) {
	norm := extract.NewNormalizer(&fakeAnthropic{}, "test-model")
	a := NewOverviewResearch(nil, norm, time.Second)

	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	assert.False(t, out.OK)
	assert.Equal(t, ReasonNotConfigured, out.Reason)
}

func TestOverviewResearchFailures(t *testing.T) {
	tests := []struct {
		name       string
		px         *fakePerplexity
		extraction string
		wantReason string
	}{
		{
			name:       "vendor_error",
			px:         &fakePerplexity{err: eris.New("unexpected status 500")},
			wantReason: "unexpected status 500",
		},
		{
			name:       "empty_completion",
			px:         &fakePerplexity{answer: ""},
			wantReason: "empty completion",
		},
		{
			name:       "extraction_garbage",
			px:         &fakePerplexity{answer: "some research"},
			extraction: "I could not find structured data.",
			wantReason: "parse model output",
		},
		{
			name:       "schema_violation",
			px:         &fakePerplexity{answer: "some research"},
			extraction: `{"description": "Acme"}`,
			wantReason: "schema validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			norm := extract.NewNormalizer(&fakeAnthropic{response: tt.extraction}, "test-model")
			a := NewOverviewResearch(tt.px, norm, time.Second)

			out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
			require.False(t, out.OK)
			assert.Contains(t, out.Reason, tt.wantReason)
		})
	}
}

func TestHomepageReader(t *testing.T) {
	jc := &fakeJina{readContent: "# Acme\nWe forge anvils in Phoenix since 1987."}
	norm := extract.NewNormalizer(&fakeAnthropic{response: overviewExtraction}, "test-model")

	a := NewHomepageReader(jc, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))

	require.True(t, out.OK, out.Reason)
	payload := out.Data.(*model.OverviewPayload)
	require.NotNil(t, payload.Industry)
	assert.Equal(t, "Manufacturing", *payload.Industry)
}

func TestHomepageReaderEmptyPage(t *testing.T) {
	jc := &fakeJina{readContent: ""}
	norm := extract.NewNormalizer(&fakeAnthropic{response: overviewExtraction}, "test-model")

	a := NewHomepageReader(jc, norm, time.Second)
	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	require.False(t, out.OK)
	assert.Contains(t, out.Reason, "empty page content")
}

func TestHomepageReaderNotConfigured(t *testing.T) {
	norm := extract.NewNormalizer(&fakeAnthropic{}, "test-model")
	a := NewHomepageReader(nil, norm, time.Second)

	out := a.Invoke(context.Background(), model.NewSubject("acme.com", ""))
	assert.False(t, out.OK)
	assert.Equal(t, ReasonNotConfigured, out.Reason)
}
