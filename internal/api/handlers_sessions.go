package api

import (
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/manifest"
	"github.com/randalmurphal/conductor/internal/policy"
	"github.com/randalmurphal/conductor/internal/spawn"
	"github.com/randalmurphal/conductor/internal/store"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, s.store.ListSessions(r.URL.Query().Get("project_id")))
}

// handleSpawnSession runs the spawn flow: manifest, session in
// spawning status, async hand-off.
func (s *Server) handleSpawnSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID       string   `json:"project_id"`
		TaskIDs         []string `json:"task_ids"`
		MemberID        string   `json:"member_id"`
		ParentSessionID string   `json:"parent_session_id"`
		TeamSessionID   string   `json:"team_session_id"`
		Directives      []string `json:"directives"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.spawner.Spawn(r.Context(), spawn.Request{
		ProjectID:       req.ProjectID,
		TaskIDs:         req.TaskIDs,
		MemberID:        req.MemberID,
		ParentSessionID: req.ParentSessionID,
		TeamSessionID:   req.TeamSessionID,
		Directives:      req.Directives,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, sess, http.StatusCreated)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSession(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

// handleReport ingests an agent lifecycle report. Agents are not
// trusted to send clean JSON, so the body is parsed tolerantly with
// gjson instead of a strict decoder: unknown fields are ignored and
// both "kind" and the legacy "type" key are accepted.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		JSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if !gjson.ValidBytes(body) {
		JSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	parsed := gjson.ParseBytes(body)
	kind := parsed.Get("kind").String()
	if kind == "" {
		kind = parsed.Get("type").String()
	}

	rep := store.Report{
		SessionID:  r.PathValue("id"),
		Kind:       store.ReportKind(kind),
		TaskID:     parsed.Get("task_id").String(),
		Message:    parsed.Get("message").String(),
		TaskStatus: entity.TaskStatus(parsed.Get("task_status").String()),
		Authorized: parsed.Get("authorized").Bool(),
	}

	sess, err := s.store.ApplyReport(rep)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, sess)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	// Body is optional for stop.
	_ = decodeJSON(r, &req)

	sess, err := s.store.Stop(r.PathValue("id"), req.Message)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, sess)
}

// handleCheckCommand evaluates a command line against the session's
// frozen permission policy. Agents call this before running commands.
// The manifest is the source of truth; sessions without one (manifests
// disabled) fall back to the spawning member's current permissions.
func (s *Server) handleCheckCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		JSONError(w, "command is required", http.StatusBadRequest)
		return
	}

	sess, err := s.store.GetSession(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	var perms entity.CommandPermissions
	if sess.ManifestPath != "" {
		man, err := manifest.Load(sess.ManifestPath)
		if err != nil {
			JSONError(w, "load manifest: "+err.Error(), http.StatusInternalServerError)
			return
		}
		perms = man.Permissions
	} else if snap := sess.Snapshot(); snap != nil {
		if m, err := s.store.GetMember(snap.MemberID); err == nil {
			perms = m.Permissions
		}
	}

	d := policy.New(perms).Evaluate(req.Command)
	JSONResponse(w, map[string]any{
		"allowed": d.Allowed,
		"rule":    d.Rule,
	})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		JSONError(w, "message is required", http.StatusBadRequest)
		return
	}

	sess, err := s.store.Prompt(r.PathValue("id"), req.Message)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, sess)
}
