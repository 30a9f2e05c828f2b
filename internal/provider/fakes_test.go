package provider

import (
	"context"

	"github.com/sells-group/company-intel/pkg/anthropic"
	"github.com/sells-group/company-intel/pkg/github"
	"github.com/sells-group/company-intel/pkg/jina"
	"github.com/sells-group/company-intel/pkg/jobs"
	"github.com/sells-group/company-intel/pkg/perplexity"
)

type fakeAnthropic struct {
	response string
	err      error
}

func (f *fakeAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.response}},
	}, nil
}

type fakePerplexity struct {
	answer string
	err    error
	calls  int
}

func (f *fakePerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &perplexity.ChatCompletionResponse{
		Choices: []perplexity.Choice{{Message: perplexity.Message{Role: "assistant", Content: f.answer}}},
	}, nil
}

type fakeJina struct {
	readContent string
	readErr     error
	results     []jina.SearchResult
	searchErr   error
}

func (f *fakeJina) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return &jina.ReadResponse{Code: 200, Data: jina.ReadData{URL: targetURL, Content: f.readContent}}, nil
}

func (f *fakeJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &jina.SearchResponse{Code: 200, Data: f.results}, nil
}

type fakeGitHub struct {
	org    *github.Org
	repos  []github.Repo
	orgErr error
}

func (f *fakeGitHub) GetOrg(ctx context.Context, org string) (*github.Org, error) {
	if f.orgErr != nil {
		return nil, f.orgErr
	}
	return f.org, nil
}

func (f *fakeGitHub) ListRepos(ctx context.Context, org string) ([]github.Repo, error) {
	return f.repos, nil
}

type fakeJobs struct {
	listings []jobs.Listing
	err      error
}

func (f *fakeJobs) Search(ctx context.Context, query string) (*jobs.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &jobs.SearchResponse{Status: "OK", Data: f.listings}, nil
}
