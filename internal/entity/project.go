// Package entity defines the canonical data model for conductor:
// projects, tasks, sessions, team members, and teams.
//
// Entities are plain data. All mutation goes through the store, which
// owns the canonical copies; everything else works with ids and the
// deep copies the store hands out.
package entity

import "time"

// Project is the top-level container for tasks and sessions.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WorkDir       string    `json:"work_dir"`
	EnvironmentID string    `json:"environment_id,omitempty"`
	IsMaster      bool      `json:"is_master"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	cp := *p
	return &cp
}
