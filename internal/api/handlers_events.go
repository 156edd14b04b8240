package api

import (
	"net/http"
	"strconv"
)

// handleListEvents serves the persisted event log, newest first.
// Query params: project_id, type (prefix match), limit.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		JSONError(w, "event log is not enabled", http.StatusNotFound)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			JSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.eventLog.ListEvents(
		r.URL.Query().Get("project_id"),
		r.URL.Query().Get("type"),
		limit,
	)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, records)
}
