package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v82/github"
)

// Compile-time interface check.
var _ Provider = (*GitHubProvider)(nil)

// GitHubProvider fetches issues with the go-github library.
type GitHubProvider struct {
	client        *gogithub.Client
	owner         string
	repo          string
	includeClosed bool
	labels        []string
}

func newGitHub(workDir string, cfg Config) (Provider, error) {
	token, err := resolveToken(cfg, "GITHUB_TOKEN")
	if err != nil {
		return nil, err
	}

	remoteURL, err := getRemoteURL(workDir)
	if err != nil {
		return nil, err
	}
	owner, repo := ParseOwnerRepo(remoteURL)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("could not parse owner/repo from remote URL: %s", remoteURL)
	}

	client := gogithub.NewClient(&http.Client{
		Transport: &tokenTransport{token: token},
	})

	// GitHub Enterprise: override base URL.
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		var parseErr error
		client.BaseURL, parseErr = client.BaseURL.Parse(baseURL + "/api/v3/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, parseErr)
		}
	}

	return &GitHubProvider{
		client:        client,
		owner:         owner,
		repo:          repo,
		includeClosed: cfg.IncludeClosed,
		labels:        cfg.Labels,
	}, nil
}

// tokenTransport adds an Authorization header to every request.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(clone)
}

// Name returns the provider type.
func (p *GitHubProvider) Name() ProviderType { return ProviderGitHub }

// FetchIssues lists the repository's issues, following pagination.
// Pull requests share the issues API on GitHub and are filtered out.
func (p *GitHubProvider) FetchIssues(ctx context.Context) ([]Issue, error) {
	state := "open"
	if p.includeClosed {
		state = "all"
	}
	opts := &gogithub.IssueListByRepoOptions{
		State:       state,
		Labels:      p.labels,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var all []Issue
	for {
		issues, resp, err := p.client.Issues.ListByRepo(ctx, p.owner, p.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list github issues %s/%s: %w", p.owner, p.repo, err)
		}
		for _, is := range issues {
			if is.IsPullRequest() {
				continue
			}
			all = append(all, p.convert(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return all, nil
}

func (p *GitHubProvider) convert(is *gogithub.Issue) Issue {
	out := Issue{
		Key:         fmt.Sprintf("%s/%s#%d", p.owner, p.repo, is.GetNumber()),
		Title:       is.GetTitle(),
		Description: is.GetBody(),
		State:       is.GetState(), // already "open" / "closed"
		URL:         is.GetHTMLURL(),
		Created:     is.GetCreatedAt().Time,
		Updated:     is.GetUpdatedAt().Time,
	}
	for _, label := range is.Labels {
		if name := label.GetName(); name != "" {
			out.Labels = append(out.Labels, name)
		}
	}
	return out
}
