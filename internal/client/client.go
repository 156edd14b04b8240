package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/randalmurphal/conductor/internal/db"
	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
)

// Client is the conductor REST client.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *Cache
}

// New creates a client for the given server base URL (e.g.
// "http://localhost:9171"). Responses flow into the attached cache.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   NewCache(),
	}
}

// Cache returns the client's reconciling cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs one request and decodes the response into out (skipped
// when out is nil). Server errors are reconstructed as *errors.Error so
// callers handle local and remote failures uniformly.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Code  string `json:"code"`
			Fix   string `json:"fix"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &cerrors.Error{
				Code: cerrors.Code(apiErr.Code),
				What: apiErr.Error,
				Fix:  apiErr.Fix,
			}
		}
		return fmt.Errorf("%s %s: server returned %d", method, path, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func projectQuery(projectID string) string {
	if projectID == "" {
		return ""
	}
	return "?project_id=" + url.QueryEscape(projectID)
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

// ListProjects fetches all projects and merges them into the cache.
func (c *Client) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	var out []*entity.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out); err != nil {
		return nil, err
	}
	for _, p := range out {
		c.cache.MergeProject(p)
	}
	return out, nil
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, name, workDir string) (*entity.Project, error) {
	var out entity.Project
	err := c.do(ctx, http.MethodPost, "/api/projects", map[string]any{
		"name": name, "work_dir": workDir,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.cache.MergeProject(&out)
	return &out, nil
}

// DeleteProject deletes a project and everything it owns.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+id, nil, nil)
}

// ListTasks fetches tasks, optionally scoped to one project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]*entity.Task, error) {
	var out []*entity.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks"+projectQuery(projectID), nil, &out); err != nil {
		return nil, err
	}
	for _, t := range out {
		c.cache.MergeTask(t)
	}
	return out, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, req map[string]any) (*entity.Task, error) {
	var out entity.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &out); err != nil {
		return nil, err
	}
	c.cache.MergeTask(&out)
	return &out, nil
}

// UpdateTask applies a partial task update.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (*entity.Task, error) {
	var out entity.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+id, patch, &out); err != nil {
		return nil, err
	}
	c.cache.MergeTask(&out)
	return &out, nil
}

// DeleteTask deletes a task and its subtree.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil)
}

// LinkTask links a task to a session.
func (c *Client) LinkTask(ctx context.Context, taskID, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+taskID+"/sessions/"+sessionID, nil, nil)
}

// UnlinkTask removes a task↔session link.
func (c *Client) UnlinkTask(ctx context.Context, taskID, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+taskID+"/sessions/"+sessionID, nil, nil)
}

// ListSessions fetches sessions, optionally scoped to one project.
func (c *Client) ListSessions(ctx context.Context, projectID string) ([]*entity.Session, error) {
	var out []*entity.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions"+projectQuery(projectID), nil, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		c.cache.MergeSession(s)
	}
	return out, nil
}

// Spawn starts a new session for the given tasks. Directives are
// optional coordinator instructions frozen into the session manifest.
func (c *Client) Spawn(ctx context.Context, projectID string, taskIDs []string, memberID string, directives ...string) (*entity.Session, error) {
	var out entity.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]any{
		"project_id": projectID,
		"task_ids":   taskIDs,
		"member_id":  memberID,
		"directives": directives,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.cache.MergeSession(&out)
	return &out, nil
}

// Report delivers an agent lifecycle report.
func (c *Client) Report(ctx context.Context, sessionID string, report map[string]any) (*entity.Session, error) {
	var out entity.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/report", report, &out); err != nil {
		return nil, err
	}
	c.cache.MergeSession(&out)
	return &out, nil
}

// Stop terminates a session.
func (c *Client) Stop(ctx context.Context, sessionID, message string) (*entity.Session, error) {
	var out entity.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/stop", map[string]any{
		"message": message,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.cache.MergeSession(&out)
	return &out, nil
}

// Prompt answers a session's needs-input request.
func (c *Client) Prompt(ctx context.Context, sessionID, message string) (*entity.Session, error) {
	var out entity.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/prompt", map[string]any{
		"message": message,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.cache.MergeSession(&out)
	return &out, nil
}

// CommandDecision is the server's verdict on one command line.
type CommandDecision struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule"`
}

// CheckCommand asks the server whether the session's permission policy
// allows a command.
func (c *Client) CheckCommand(ctx context.Context, sessionID, command string) (*CommandDecision, error) {
	var out CommandDecision
	err := c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/check-command", map[string]any{
		"command": command,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers fetches team members, optionally scoped to one project.
func (c *Client) ListMembers(ctx context.Context, projectID string) ([]*entity.TeamMember, error) {
	var out []*entity.TeamMember
	if err := c.do(ctx, http.MethodGet, "/api/members"+projectQuery(projectID), nil, &out); err != nil {
		return nil, err
	}
	for _, m := range out {
		c.cache.MergeMember(m)
	}
	return out, nil
}

// CreateMember creates a team member.
func (c *Client) CreateMember(ctx context.Context, req map[string]any) (*entity.TeamMember, error) {
	var out entity.TeamMember
	if err := c.do(ctx, http.MethodPost, "/api/members", req, &out); err != nil {
		return nil, err
	}
	c.cache.MergeMember(&out)
	return &out, nil
}

// ArchiveMember archives a team member.
func (c *Client) ArchiveMember(ctx context.Context, id string) (*entity.TeamMember, error) {
	var out entity.TeamMember
	if err := c.do(ctx, http.MethodPost, "/api/members/"+id+"/archive", nil, &out); err != nil {
		return nil, err
	}
	c.cache.MergeMember(&out)
	return &out, nil
}

// DeleteMember deletes an archived team member.
func (c *Client) DeleteMember(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/members/"+id, nil, nil)
}

// ResetMember restores a builtin member to its defaults.
func (c *Client) ResetMember(ctx context.Context, id string) (*entity.TeamMember, error) {
	var out entity.TeamMember
	if err := c.do(ctx, http.MethodPost, "/api/members/"+id+"/reset", nil, &out); err != nil {
		return nil, err
	}
	c.cache.MergeMember(&out)
	return &out, nil
}

// CreateTeam creates a team.
func (c *Client) CreateTeam(ctx context.Context, req map[string]any) (*entity.Team, error) {
	var out entity.Team
	if err := c.do(ctx, http.MethodPost, "/api/teams", req, &out); err != nil {
		return nil, err
	}
	c.cache.MergeTeam(&out)
	return &out, nil
}

// ArchiveTeam archives a team.
func (c *Client) ArchiveTeam(ctx context.Context, id string) (*entity.Team, error) {
	var out entity.Team
	if err := c.do(ctx, http.MethodPost, "/api/teams/"+id+"/archive", nil, &out); err != nil {
		return nil, err
	}
	c.cache.MergeTeam(&out)
	return &out, nil
}

// DeleteTeam deletes an archived team.
func (c *Client) DeleteTeam(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/teams/"+id, nil, nil)
}

// ListEvents queries the server's persisted event log, newest first.
func (c *Client) ListEvents(ctx context.Context, projectID, typePrefix string, limit int) ([]*db.Record, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	if typePrefix != "" {
		q.Set("type", typePrefix)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []*db.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTeams fetches teams, optionally scoped to one project.
func (c *Client) ListTeams(ctx context.Context, projectID string) ([]*entity.Team, error) {
	var out []*entity.Team
	if err := c.do(ctx, http.MethodGet, "/api/teams"+projectQuery(projectID), nil, &out); err != nil {
		return nil, err
	}
	for _, t := range out {
		c.cache.MergeTeam(t)
	}
	return out, nil
}

// Resync replaces the whole cache from fresh server state. Called
// after a realtime reconnect, when events may have been missed.
func (c *Client) Resync(ctx context.Context) error {
	var projects []*entity.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return err
	}
	var tasks []*entity.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return err
	}
	var sessions []*entity.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return err
	}
	var members []*entity.TeamMember
	if err := c.do(ctx, http.MethodGet, "/api/members", nil, &members); err != nil {
		return err
	}
	var teams []*entity.Team
	if err := c.do(ctx, http.MethodGet, "/api/teams", nil, &teams); err != nil {
		return err
	}
	c.cache.ReplaceAll(projects, tasks, sessions, members, teams)
	return nil
}
