package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/conductor/internal/util"
)

// One JSON file per entity kind under the state directory.
const (
	projectsFile = "projects.json"
	tasksFile    = "tasks.json"
	sessionsFile = "sessions.json"
	membersFile  = "members.json"
	teamsFile    = "teams.json"
)

// load reads all entity files that exist. Missing files are fine; the
// store starts empty.
func (s *Store) load() error {
	if err := loadFile(filepath.Join(s.dir, projectsFile), &s.projects); err != nil {
		return err
	}
	if err := loadFile(filepath.Join(s.dir, tasksFile), &s.tasks); err != nil {
		return err
	}
	if err := loadFile(filepath.Join(s.dir, sessionsFile), &s.sessions); err != nil {
		return err
	}
	if err := loadFile(filepath.Join(s.dir, membersFile), &s.members); err != nil {
		return err
	}
	if err := loadFile(filepath.Join(s.dir, teamsFile), &s.teams); err != nil {
		return err
	}
	return nil
}

func loadFile[T any](path string, into *map[string]T) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// persistence targets, passed to persist() after a mutation.
type kind int

const (
	kindProjects kind = iota
	kindTasks
	kindSessions
	kindMembers
	kindTeams
)

// persist writes the named entity kinds back to disk. Best-effort: a
// write failure is logged and the in-memory state stays authoritative.
// Caller must hold the lock.
func (s *Store) persist(kinds ...kind) {
	if s.dir == "" {
		return
	}
	for _, k := range kinds {
		var err error
		switch k {
		case kindProjects:
			err = util.WriteJSONAtomic(filepath.Join(s.dir, projectsFile), s.projects)
		case kindTasks:
			err = util.WriteJSONAtomic(filepath.Join(s.dir, tasksFile), s.tasks)
		case kindSessions:
			err = util.WriteJSONAtomic(filepath.Join(s.dir, sessionsFile), s.sessions)
		case kindMembers:
			err = util.WriteJSONAtomic(filepath.Join(s.dir, membersFile), s.members)
		case kindTeams:
			err = util.WriteJSONAtomic(filepath.Join(s.dir, teamsFile), s.teams)
		}
		if err != nil {
			s.logger.Error("failed to persist state", "error", err)
		}
	}
}
