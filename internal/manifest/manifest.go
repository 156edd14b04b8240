// Package manifest builds the immutable spawn manifest handed to an
// agent process. The manifest freezes everything the agent needs at
// spawn time — task scope, member configuration, command permissions —
// so later edits to the member or tasks never change a running
// session's instructions.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/util"
)

// Manifest is the frozen spawn-time contract for one session.
type Manifest struct {
	SessionID string    `yaml:"session_id"`
	CreatedAt time.Time `yaml:"created_at"`

	Project ProjectRef `yaml:"project"`
	Tasks   []TaskRef  `yaml:"tasks"`
	Member  MemberRef  `yaml:"member"`

	// Permissions is the effective command policy for the session,
	// resolved from the member at spawn time.
	Permissions entity.CommandPermissions `yaml:"permissions"`

	// Directives are coordinator instructions scoping the session's
	// work, frozen at spawn like everything else here.
	Directives []string `yaml:"directives,omitempty"`

	// Memory carries the member's accumulated notes into the session.
	Memory []string `yaml:"memory,omitempty"`

	// Path is where the manifest lives on disk. Set by Write and Load,
	// never serialized.
	Path string `yaml:"-"`
}

// ProjectRef identifies the project and where to work.
type ProjectRef struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	WorkDir string `yaml:"work_dir"`
}

// TaskRef is the frozen view of one task in scope.
type TaskRef struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Priority    string `yaml:"priority"`
}

// MemberRef is the frozen member configuration.
type MemberRef struct {
	MemberID       string   `yaml:"member_id"`
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role,omitempty"`
	Mode           string   `yaml:"mode"`
	Model          string   `yaml:"model,omitempty"`
	Tool           string   `yaml:"tool,omitempty"`
	PermissionMode string   `yaml:"permission_mode,omitempty"`
	SkillIDs       []string `yaml:"skill_ids,omitempty"`
}

// Build assembles a manifest from live entities. The caller supplies
// the session id up front so the file can be named before the session
// exists in the store.
func Build(sessionID string, p *entity.Project, tasks []*entity.Task, m *entity.TeamMember, directives []string, at time.Time) *Manifest {
	man := &Manifest{
		SessionID:  sessionID,
		CreatedAt:  at,
		Directives: append([]string(nil), directives...),
		Project: ProjectRef{
			ID:      p.ID,
			Name:    p.Name,
			WorkDir: p.WorkDir,
		},
		Member: MemberRef{
			MemberID:       m.ID,
			Name:           m.Name,
			Role:           m.Role,
			Mode:           string(m.Mode),
			Model:          m.Model,
			Tool:           m.Tool,
			PermissionMode: m.PermissionMode,
			SkillIDs:       append([]string(nil), m.SkillIDs...),
		},
		Permissions: entity.CommandPermissions{
			Allow: append([]string(nil), m.Permissions.Allow...),
			Deny:  append([]string(nil), m.Permissions.Deny...),
		},
	}
	for _, t := range tasks {
		man.Tasks = append(man.Tasks, TaskRef{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    string(t.Priority),
		})
	}
	for _, entry := range m.Memory {
		man.Memory = append(man.Memory, entry.Text)
	}
	return man
}

// Path returns the manifest file path for a session under the state
// directory.
func Path(stateDir, sessionID string) string {
	return filepath.Join(stateDir, "manifests", sessionID+".yaml")
}

// Write persists the manifest atomically. Write-once: an existing file
// for the same session is an error, because manifests are immutable.
func (m *Manifest) Write(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	m.Path = path
	return nil
}

// Load reads a manifest back from disk.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	m.Path = path
	return &m, nil
}
