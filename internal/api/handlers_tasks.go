package api

import (
	"net/http"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/store"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, s.store.ListTasks(r.URL.Query().Get("project_id")))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID   string            `json:"project_id"`
		ParentID    string            `json:"parent_id"`
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Priority    entity.Priority   `json:"priority"`
		SkillIDs    []string          `json:"skill_ids"`
		MemberIDs   []string          `json:"team_member_ids"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := s.store.CreateTask(store.NewTask{
		ProjectID:   req.ProjectID,
		ParentID:    req.ParentID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		SkillIDs:    req.SkillIDs,
		MemberIDs:   req.MemberIDs,
		Metadata:    req.Metadata,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, t, http.StatusCreated)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTask(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title            *string            `json:"title"`
		Description      *string            `json:"description"`
		Priority         *entity.Priority   `json:"priority"`
		Status           *entity.TaskStatus `json:"status"`
		SkillIDs         *[]string          `json:"skill_ids"`
		TeamMemberIDs    *[]string          `json:"team_member_ids"`
		ReferenceTaskIDs *[]string          `json:"reference_task_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := s.store.UpdateTask(r.PathValue("id"), store.TaskUpdate{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		Status:           req.Status,
		SkillIDs:         req.SkillIDs,
		TeamMemberIDs:    req.TeamMemberIDs,
		ReferenceTaskIDs: req.ReferenceTaskIDs,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, t)
}

// handleDeleteTask deletes the task and its whole subtree.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTaskCascade(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleListSubtasks(w http.ResponseWriter, r *http.Request) {
	subtasks, err := s.store.ListSubtasks(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, subtasks)
}

func (s *Server) handleSetParent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID string `json:"parent_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	t, err := s.store.SetParent(r.PathValue("id"), req.ParentID)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, t)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	if err := s.store.LinkTaskToSession(r.PathValue("id"), r.PathValue("sessionId")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	if err := s.store.UnlinkTaskFromSession(r.PathValue("id"), r.PathValue("sessionId")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}
