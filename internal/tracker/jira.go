package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// Compile-time interface check.
var _ Provider = (*JiraProvider)(nil)

// JiraProvider fetches issues from Jira Cloud with the go-atlassian
// library.
type JiraProvider struct {
	client   *v3.Client
	baseURL  string
	jql      string
	projects []string
}

func newJira(cfg Config) (Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL is required")
	}
	if cfg.JiraEmail == "" {
		return nil, fmt.Errorf("jira email is required")
	}
	token, err := resolveToken(cfg, "JIRA_API_TOKEN")
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	client, err := v3.New(&http.Client{Timeout: 30 * time.Second}, baseURL)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	client.Auth.SetBasicAuth(cfg.JiraEmail, token)
	client.Auth.SetUserAgent("conductor-tracker/1.0")

	return &JiraProvider{
		client:   client,
		baseURL:  baseURL,
		jql:      cfg.JiraJQL,
		projects: cfg.JiraProjects,
	}, nil
}

// searchFields are the Jira fields requested in search results.
// Keeping this explicit avoids fetching unnecessary data.
var searchFields = []string{
	"summary",
	"description",
	"status",
	"priority",
	"labels",
	"created",
	"updated",
}

// Name returns the provider type.
func (p *JiraProvider) Name() ProviderType { return ProviderJira }

// FetchIssues fetches all issues matching the configured JQL, handling
// pagination.
func (p *JiraProvider) FetchIssues(ctx context.Context) ([]Issue, error) {
	jql := p.buildJQL()

	var all []Issue
	nextPageToken := ""
	for {
		result, resp, err := p.client.Issue.Search.SearchJQL(
			ctx,
			jql,
			searchFields,
			nil, // no expand
			50,  // maxResults per page
			nextPageToken,
		)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("jira search (status %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("jira search: %w", err)
		}

		for _, issue := range result.Issues {
			all = append(all, p.convert(issue))
		}

		if result.NextPageToken == "" || len(result.Issues) == 0 {
			break
		}
		nextPageToken = result.NextPageToken
	}
	return all, nil
}

// buildJQL constructs the JQL query from the configured projects and
// extra filter.
func (p *JiraProvider) buildJQL() string {
	parts := make([]string, 0, 2)

	if len(p.projects) > 0 {
		if len(p.projects) == 1 {
			parts = append(parts, fmt.Sprintf("project = %q", p.projects[0]))
		} else {
			quoted := make([]string, len(p.projects))
			for i, proj := range p.projects {
				quoted[i] = fmt.Sprintf("%q", proj)
			}
			parts = append(parts, fmt.Sprintf("project in (%s)", strings.Join(quoted, ", ")))
		}
	}
	if p.jql != "" {
		parts = append(parts, p.jql)
	}

	if len(parts) == 0 {
		return "ORDER BY created DESC"
	}
	return strings.Join(parts, " AND ") + " ORDER BY created ASC"
}

func (p *JiraProvider) convert(issue *models.IssueScheme) Issue {
	if issue == nil || issue.Fields == nil {
		return Issue{}
	}
	f := issue.Fields

	out := Issue{
		Key:         issue.Key,
		Title:       f.Summary,
		Description: adfToText(f.Description),
		State:       jiraState(f.Status),
		Labels:      f.Labels,
	}
	if f.Priority != nil {
		out.Priority = f.Priority.Name
	}
	if p.baseURL != "" && issue.Key != "" {
		out.URL = p.baseURL + "/browse/" + issue.Key
	}
	if f.Created != nil {
		out.Created = time.Time(*f.Created)
	}
	if f.Updated != nil {
		out.Updated = time.Time(*f.Updated)
	}
	return out
}

// jiraState normalizes the status category ("new", "indeterminate",
// "done") onto open/closed.
func jiraState(s *models.StatusScheme) string {
	if s == nil || s.StatusCategory == nil {
		return "open"
	}
	if s.StatusCategory.Key == "done" {
		return "closed"
	}
	return "open"
}

// adfToText flattens an Atlassian Document Format tree to markdown-ish
// plain text. Imported descriptions are reference material, so lossy
// rendering of exotic nodes is acceptable.
func adfToText(node *models.CommentNodeScheme) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	renderADF(&b, node, 0)
	return strings.TrimRight(b.String(), "\n")
}

func renderADF(b *strings.Builder, node *models.CommentNodeScheme, depth int) {
	if node == nil {
		return
	}
	switch node.Type {
	case "text":
		b.WriteString(node.Text)

	case "paragraph":
		renderADFChildren(b, node, depth)
		b.WriteString("\n\n")

	case "heading":
		b.WriteString("# ")
		renderADFChildren(b, node, depth)
		b.WriteString("\n\n")

	case "hardBreak":
		b.WriteString("\n")

	case "bulletList", "orderedList":
		for _, item := range node.Content {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString("- ")
			renderADFChildren(b, item, depth+1)
		}
		b.WriteString("\n")

	case "codeBlock":
		b.WriteString("```\n")
		renderADFChildren(b, node, depth)
		b.WriteString("\n```\n\n")

	case "rule":
		b.WriteString("---\n\n")

	case "mention", "emoji", "inlineCard":
		if node.Attrs != nil {
			if v, ok := node.Attrs["text"].(string); ok {
				b.WriteString(v)
			}
		}

	default:
		// Unknown containers still render their text content.
		renderADFChildren(b, node, depth)
	}
}

func renderADFChildren(b *strings.Builder, node *models.CommentNodeScheme, depth int) {
	for _, child := range node.Content {
		renderADF(b, child, depth)
	}
}
