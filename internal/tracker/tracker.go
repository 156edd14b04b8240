// Package tracker imports issues from external issue trackers
// (GitHub, GitLab, Jira) as conductor tasks.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/store"
)

// ProviderType identifies which issue tracker is in use.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderJira    ProviderType = "jira"
	ProviderUnknown ProviderType = "unknown"
)

// Issue is the provider-neutral view of one external issue.
type Issue struct {
	// Key is the provider-unique identifier ("owner/repo#42",
	// "PROJ-123"). It anchors import idempotency.
	Key         string
	Title       string
	Description string
	// State is normalized to "open" or "closed".
	State    string
	Labels   []string
	Priority string
	URL      string
	Created  time.Time
	Updated  time.Time
}

// Provider fetches issues from one tracker.
type Provider interface {
	FetchIssues(ctx context.Context) ([]Issue, error)
	Name() ProviderType
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "github", "gitlab", "jira", or "auto" (default).
	// With "auto" the provider is detected from the git remote URL;
	// Jira cannot be auto-detected and must be set explicitly.
	Provider string `mapstructure:"provider" yaml:"provider"`

	// BaseURL for self-hosted instances (GitHub Enterprise, self-hosted
	// GitLab) or the Jira Cloud instance URL. Leave empty for
	// github.com / gitlab.com.
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// TokenEnvVar overrides the default token environment variable.
	// Defaults: GITHUB_TOKEN, GITLAB_TOKEN, JIRA_API_TOKEN.
	TokenEnvVar string `mapstructure:"token_env_var" yaml:"token_env_var,omitempty"`

	// IncludeClosed also imports closed issues (GitHub/GitLab).
	IncludeClosed bool `mapstructure:"include_closed" yaml:"include_closed,omitempty"`

	// Labels filters GitHub/GitLab issues to those carrying all the
	// given labels.
	Labels []string `mapstructure:"labels" yaml:"labels,omitempty"`

	// JiraEmail is the account email for Jira basic auth.
	JiraEmail string `mapstructure:"jira_email" yaml:"jira_email,omitempty"`
	// JiraJQL is an extra JQL filter, combined with JiraProjects.
	JiraJQL string `mapstructure:"jira_jql" yaml:"jira_jql,omitempty"`
	// JiraProjects lists Jira project keys to import from.
	JiraProjects []string `mapstructure:"jira_projects" yaml:"jira_projects,omitempty"`
}

// NewProvider creates a tracker provider for the repo at workDir. With
// Provider "auto" the type is detected from the origin remote URL.
func NewProvider(workDir string, cfg Config) (Provider, error) {
	pt, err := resolveProviderType(workDir, cfg)
	if err != nil {
		return nil, err
	}
	switch pt {
	case ProviderGitHub:
		return newGitHub(workDir, cfg)
	case ProviderGitLab:
		return newGitLab(workDir, cfg)
	case ProviderJira:
		return newJira(cfg)
	default:
		return nil, fmt.Errorf("unknown tracker provider %q (supported: github, gitlab, jira)", pt)
	}
}

func resolveProviderType(workDir string, cfg Config) (ProviderType, error) {
	if cfg.Provider != "" && cfg.Provider != "auto" {
		pt := ProviderType(cfg.Provider)
		if pt != ProviderGitHub && pt != ProviderGitLab && pt != ProviderJira {
			return "", fmt.Errorf("unknown tracker provider %q (supported: github, gitlab, jira)", cfg.Provider)
		}
		return pt, nil
	}

	remoteURL, err := getRemoteURL(workDir)
	if err != nil {
		return "", fmt.Errorf("detect tracker provider: %w", err)
	}
	detected := DetectProvider(remoteURL)
	if detected == ProviderUnknown {
		return "", fmt.Errorf("cannot detect tracker provider from remote URL %q (set provider explicitly)", remoteURL)
	}
	return detected, nil
}

// getRemoteURL gets the origin remote URL for the repo at workDir.
func getRemoteURL(workDir string) (string, error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("get remote URL: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// DetectProvider determines the tracker provider from a git remote URL.
//
// Supported URL formats:
//   - git@github.com:owner/repo.git
//   - https://github.com/owner/repo.git
//   - git@gitlab.com:owner/repo.git
//   - https://gitlab.com/owner/repo.git
//   - git@gitlab.company.com:org/repo.git (self-hosted GitLab)
//   - https://github.company.com/org/repo.git (GitHub Enterprise)
func DetectProvider(remoteURL string) ProviderType {
	url := strings.ToLower(strings.TrimSpace(remoteURL))
	if isGitHub(url) {
		return ProviderGitHub
	}
	if isGitLab(url) {
		return ProviderGitLab
	}
	return ProviderUnknown
}

var githubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`github\.com[:/]`),
	regexp.MustCompile(`github\.[a-z0-9-]+\.[a-z]+[:/]`), // GitHub Enterprise (github.company.com)
}

func isGitHub(url string) bool {
	for _, p := range githubPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

var gitlabPatterns = []*regexp.Regexp{
	regexp.MustCompile(`gitlab\.com[:/]`),
	regexp.MustCompile(`gitlab\.[a-z0-9-]+\.[a-z]+[:/]`), // Self-hosted GitLab (gitlab.company.com)
}

func isGitLab(url string) bool {
	for _, p := range gitlabPatterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// ParseOwnerRepo extracts owner and repo from a git remote URL.
//
// Handles:
//   - git@github.com:owner/repo.git → (owner, repo)
//   - https://github.com/owner/repo.git → (owner, repo)
//   - ssh://git@github.com:22/owner/repo.git → (owner, repo)
//   - git@gitlab.com:group/subgroup/repo.git → (group/subgroup, repo)
func ParseOwnerRepo(remoteURL string) (owner, repo string) {
	raw := strings.TrimSpace(remoteURL)
	raw = strings.TrimSuffix(raw, ".git")

	if strings.HasPrefix(raw, "ssh://") {
		raw = strings.TrimPrefix(raw, "ssh://")
		if idx := strings.Index(raw, "/"); idx != -1 {
			raw = raw[idx+1:]
			raw = strings.TrimLeft(raw, "/")
		}
	} else if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") {
		raw = strings.TrimPrefix(raw, "https://")
		raw = strings.TrimPrefix(raw, "http://")
		if idx := strings.Index(raw, "/"); idx != -1 {
			raw = raw[idx+1:]
		}
	} else if idx := strings.Index(raw, ":"); idx != -1 {
		// SCP-style SSH: git@host:owner/repo
		raw = raw[idx+1:]
	}

	// GitLab owners can be "group/subgroup", so the repo is the last
	// segment and the owner is everything before it.
	parts := strings.Split(raw, "/")
	if len(parts) < 2 {
		return raw, ""
	}
	repo = parts[len(parts)-1]
	owner = strings.Join(parts[:len(parts)-1], "/")
	return owner, repo
}

// resolveToken reads the provider token from the environment.
func resolveToken(cfg Config, defaultEnvVar string) (string, error) {
	envVar := cfg.TokenEnvVar
	if envVar == "" {
		envVar = defaultEnvVar
	}
	token := os.Getenv(envVar)
	if token == "" {
		return "", fmt.Errorf("tracker token not found: set %s", envVar)
	}
	return token, nil
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Created int
	Updated int
	Skipped int
	Errors  []ImportError
}

// ImportError records a per-issue failure that didn't abort the run.
type ImportError struct {
	Key string
	Err error
}

// Importer fetches issues from a provider and reconciles them into the
// store as tasks of one project.
type Importer struct {
	store     *store.Store
	provider  Provider
	mapper    *Mapper
	projectID string
	dryRun    bool
	logger    *slog.Logger
}

// NewImporter creates an Importer. dryRun previews the import without
// writing anything.
func NewImporter(st *store.Store, provider Provider, projectID string, dryRun bool, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     st,
		provider:  provider,
		mapper:    NewMapper(DefaultMapperConfig()),
		projectID: projectID,
		dryRun:    dryRun,
		logger:    logger,
	}
}

// Run executes the import. Re-running is idempotent: issues already
// imported (matched by tracker key metadata) are updated in place, and
// tasks that have been started locally are left alone.
func (imp *Importer) Run(ctx context.Context) (*ImportResult, error) {
	result := &ImportResult{}

	imp.logger.Info("fetching issues", "provider", imp.provider.Name(), "project_id", imp.projectID)
	issues, err := imp.provider.FetchIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}
	imp.logger.Info("fetched issues", "count", len(issues))

	existingByKey := imp.buildExistingIndex()

	for _, issue := range issues {
		if issue.Key == "" || issue.Title == "" {
			result.Errors = append(result.Errors, ImportError{
				Key: issue.Key,
				Err: fmt.Errorf("issue missing key or title"),
			})
			continue
		}

		existing, found := existingByKey[issue.Key]
		if !found {
			if !imp.dryRun {
				created, err := imp.store.CreateTask(imp.mapper.NewTask(imp.projectID, issue))
				if err != nil {
					result.Errors = append(result.Errors, ImportError{Key: issue.Key, Err: err})
					continue
				}
				// Tasks are created in todo; a closed issue moves
				// straight to its mapped status.
				if status, ok := imp.mapper.mapStatus(issue); ok {
					if _, err := imp.store.UpdateTask(created.ID, store.TaskUpdate{Status: &status}); err != nil {
						result.Errors = append(result.Errors, ImportError{Key: issue.Key, Err: err})
						continue
					}
				}
			}
			result.Created++
			continue
		}

		// A task the user has moved past todo is locally owned; the
		// tracker no longer overwrites it.
		if existing.Status != entity.TaskTodo {
			result.Skipped++
			continue
		}

		if !imp.dryRun {
			if _, err := imp.store.UpdateTask(existing.ID, imp.mapper.Update(issue)); err != nil {
				result.Errors = append(result.Errors, ImportError{Key: issue.Key, Err: err})
				continue
			}
		}
		result.Updated++
	}

	return result, nil
}

// buildExistingIndex indexes the project's tasks by tracker key.
func (imp *Importer) buildExistingIndex() map[string]*entity.Task {
	index := make(map[string]*entity.Task)
	for _, t := range imp.store.ListTasks(imp.projectID) {
		if key, ok := t.Metadata[MetaKey]; ok {
			index[key] = t
		}
	}
	return index
}
