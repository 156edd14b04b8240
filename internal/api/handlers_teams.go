package api

import (
	"net/http"

	"github.com/randalmurphal/conductor/internal/store"
)

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, s.store.ListTeams(r.URL.Query().Get("project_id")))
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string   `json:"project_id"`
		Name      string   `json:"name"`
		LeaderID  string   `json:"leader_id"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	team, err := s.store.CreateTeam(store.NewTeam{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		LeaderID:  req.LeaderID,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, team, http.StatusCreated)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.GetTeam(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, team)
}

func (s *Server) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      *string   `json:"name"`
		LeaderID  *string   `json:"leader_id"`
		MemberIDs *[]string `json:"member_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	team, err := s.store.UpdateTeam(r.PathValue("id"), store.TeamUpdate{
		Name:      req.Name,
		LeaderID:  req.LeaderID,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, team)
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTeam(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}

func (s *Server) handleArchiveTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.ArchiveTeam(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, team)
}

func (s *Server) handleAddSubTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.AddSubTeam(r.PathValue("id"), r.PathValue("childId"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, team)
}

func (s *Server) handleRemoveSubTeam(w http.ResponseWriter, r *http.Request) {
	team, err := s.store.RemoveSubTeam(r.PathValue("id"), r.PathValue("childId"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, team)
}
