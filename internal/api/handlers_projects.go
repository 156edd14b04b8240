package api

import (
	"net/http"

	"github.com/randalmurphal/conductor/internal/store"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, s.store.ListProjects())
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		WorkDir       string `json:"work_dir"`
		EnvironmentID string `json:"environment_id"`
		IsMaster      bool   `json:"is_master"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.store.CreateProject(store.NewProject{
		Name:          req.Name,
		WorkDir:       req.WorkDir,
		EnvironmentID: req.EnvironmentID,
		IsMaster:      req.IsMaster,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponseStatus(w, p, http.StatusCreated)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string `json:"name"`
		WorkDir       *string `json:"work_dir"`
		EnvironmentID *string `json:"environment_id"`
		IsMaster      *bool   `json:"is_master"`
	}
	if err := decodeJSON(r, &req); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.store.UpdateProject(r.PathValue("id"), store.ProjectUpdate{
		Name:          req.Name,
		WorkDir:       req.WorkDir,
		EnvironmentID: req.EnvironmentID,
		IsMaster:      req.IsMaster,
	})
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.PathValue("id")); err != nil {
		HandleError(w, err)
		return
	}
	NoContent(w)
}
