package api

import (
	"net/http"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/store"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, s.store.ListMembers(r.URL.Query().Get("project_id")))
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID      string                    `json:"project_id"`
		Name           string                    `json:"name"`
		Role           string                    `json:"role"`
		Mode           entity.Mode               `json:"mode"`
		Model          string                    `json:"model"`
		Tool           string                    `json:"tool"`
		PermissionMode string                    `json:"permission_mode"`
		SkillIDs       []string                  `json:"skill_ids"`
		Capabilities   []string                  `json:"capabilities"`
		Permissions    entity.CommandPermissions `json:"command_permissions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.store.CreateMember(store.NewMember{
		ProjectID:      req.ProjectID,
		Name:           req.Name,
		Role:           req.Role,
		Mode:           req.Mode,
		Model:          req.Model,
		Tool:           req.Tool,
		PermissionMode: req.PermissionMode,
		SkillIDs:       req.SkillIDs,
		Capabilities:   req.Capabilities,
		Permissions:    req.Permissions,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, m, http.StatusCreated)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMember(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           *string                    `json:"name"`
		Role           *string                    `json:"role"`
		Mode           *entity.Mode               `json:"mode"`
		Model          *string                    `json:"model"`
		Tool           *string                    `json:"tool"`
		PermissionMode *string                    `json:"permission_mode"`
		SkillIDs       *[]string                  `json:"skill_ids"`
		Capabilities   *[]string                  `json:"capabilities"`
		Permissions    *entity.CommandPermissions `json:"command_permissions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.store.UpdateMember(r.PathValue("id"), store.MemberUpdate{
		Name:           req.Name,
		Role:           req.Role,
		Mode:           req.Mode,
		Model:          req.Model,
		Tool:           req.Tool,
		PermissionMode: req.PermissionMode,
		SkillIDs:       req.SkillIDs,
		Capabilities:   req.Capabilities,
		Permissions:    req.Permissions,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMember(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleArchiveMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.ArchiveMember(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}

func (s *Server) handleResetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.ResetMember(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}

func (s *Server) handleAppendMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.store.AppendMemory(r.PathValue("id"), req.Text)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.ClearMemory(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, m)
}
