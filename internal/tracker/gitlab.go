package tracker

import (
	"context"
	"fmt"
	"strings"

	gogitlab "gitlab.com/gitlab-org/api/client-go"
)

// Compile-time interface check.
var _ Provider = (*GitLabProvider)(nil)

// GitLabProvider fetches issues with the GitLab client-go library.
type GitLabProvider struct {
	client *gogitlab.Client
	// projectID is the full path ("owner/repo" or
	// "group/subgroup/repo") used as the project identifier.
	projectID     string
	includeClosed bool
	labels        []string
}

func newGitLab(workDir string, cfg Config) (Provider, error) {
	token, err := resolveToken(cfg, "GITLAB_TOKEN")
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

	var client *gogitlab.Client
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		client, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(baseURL+"/api/v4"))
	} else {
		client, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}

	return &GitLabProvider{
		client:        client,
		projectID:     owner + "/" + repo,
		includeClosed: cfg.IncludeClosed,
		labels:        cfg.Labels,
	}, nil
}

// Name returns the provider type.
func (p *GitLabProvider) Name() ProviderType { return ProviderGitLab }

// FetchIssues lists the project's issues, following pagination.
func (p *GitLabProvider) FetchIssues(ctx context.Context) ([]Issue, error) {
	opts := &gogitlab.ListProjectIssuesOptions{
		ListOptions: gogitlab.ListOptions{PerPage: 100, Page: 1},
	}
	if !p.includeClosed {
		opts.State = gogitlab.Ptr("opened")
	}
	if len(p.labels) > 0 {
		labels := gogitlab.LabelOptions(p.labels)
		opts.Labels = &labels
	}

	var all []Issue
	for {
		issues, resp, err := p.client.Issues.ListProjectIssues(p.projectID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list gitlab issues %s: %w", p.projectID, err)
		}
		for _, is := range issues {
			all = append(all, p.convert(is))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (p *GitLabProvider) convert(is *gogitlab.Issue) Issue {
	out := Issue{
		Key:         fmt.Sprintf("%s#%d", p.projectID, is.IID),
		Title:       is.Title,
		Description: is.Description,
		State:       normalizeGitLabState(is.State),
		Labels:      append([]string(nil), is.Labels...),
		URL:         is.WebURL,
	}
	if is.CreatedAt != nil {
		out.Created = *is.CreatedAt
	}
	if is.UpdatedAt != nil {
		out.Updated = *is.UpdatedAt
	}
	return out
}

// normalizeGitLabState maps GitLab's "opened" onto the neutral "open".
func normalizeGitLabState(state string) string {
	if state == "opened" {
		return "open"
	}
	return state
}
