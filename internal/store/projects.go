package store

import (
	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// DefaultMemberName is the name of the builtin member seeded into
// every new project.
const DefaultMemberName = "worker"

// NewProject describes a project to create.
type NewProject struct {
	Name          string
	WorkDir       string
	EnvironmentID string
	IsMaster      bool
}

// CreateProject registers a project and seeds its builtin default
// member.
func (s *Store) CreateProject(np NewProject) (*entity.Project, error) {
	if np.Name == "" {
		return nil, cerrors.ErrValidation("project name is required")
	}
	if np.WorkDir == "" {
		return nil, cerrors.ErrValidation("project working directory is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &entity.Project{
		ID:            uuid.NewString(),
		Name:          np.Name,
		WorkDir:       np.WorkDir,
		EnvironmentID: np.EnvironmentID,
		IsMaster:      np.IsMaster,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.projects[p.ID] = p

	m := &entity.TeamMember{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Name:      DefaultMemberName,
		Mode:      entity.ModeExecute,
		Status:    entity.MemberActive,
		Builtin:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.members[m.ID] = m

	s.persist(kindProjects, kindMembers)
	s.emit(events.ProjectCreated, p.ID, p.Clone())
	s.emit(events.MemberCreated, p.ID, m.Clone())
	return p.Clone(), nil
}

// ProjectUpdate is a partial update; nil fields are left unchanged.
type ProjectUpdate struct {
	Name          *string
	WorkDir       *string
	EnvironmentID *string
	IsMaster      *bool
}

// UpdateProject applies a partial update to a project.
func (s *Store) UpdateProject(id string, up ProjectUpdate) (*entity.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.resolveProject(id)
	if err != nil {
		return nil, err
	}

	if up.Name != nil {
		if *up.Name == "" {
			return nil, cerrors.ErrValidation("project name cannot be empty")
		}
		p.Name = *up.Name
	}
	if up.WorkDir != nil {
		if *up.WorkDir == "" {
			return nil, cerrors.ErrValidation("project working directory cannot be empty")
		}
		p.WorkDir = *up.WorkDir
	}
	if up.EnvironmentID != nil {
		p.EnvironmentID = *up.EnvironmentID
	}
	if up.IsMaster != nil {
		p.IsMaster = *up.IsMaster
	}
	p.UpdatedAt = s.now()

	s.persist(kindProjects)
	s.emit(events.ProjectUpdated, p.ID, p.Clone())
	return p.Clone(), nil
}

// DeleteProject removes a project and everything it owns. The delete
// is refused while any of the project's sessions is still running;
// clients that only want to hide a project should close it locally
// instead.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.resolveProject(id)
	if err != nil {
		return err
	}

	for _, sess := range s.sessions {
		if sess.ProjectID == id && !sess.Status.IsTerminal() {
			return cerrors.ErrValidation("project has sessions that are still running; stop them first")
		}
	}

	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
			s.emit(events.TaskDeleted, id, events.Deleted{ID: tid})
		}
	}
	for sid, sess := range s.sessions {
		if sess.ProjectID == id {
			delete(s.sessions, sid)
			s.emit(events.SessionDeleted, id, events.Deleted{ID: sid})
		}
	}
	for mid, m := range s.members {
		if m.ProjectID == id {
			delete(s.members, mid)
			s.emit(events.MemberDeleted, id, events.Deleted{ID: mid})
		}
	}
	for tid, tm := range s.teams {
		if tm.ProjectID == id {
			delete(s.teams, tid)
			s.emit(events.TeamDeleted, id, events.Deleted{ID: tid})
		}
	}
	delete(s.projects, p.ID)

	s.persist(kindProjects, kindTasks, kindSessions, kindMembers, kindTeams)
	s.emit(events.ProjectDeleted, id, events.Deleted{ID: id})
	return nil
}

// GetProject returns a copy of the project.
func (s *Store) GetProject(id string) (*entity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.resolveProject(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// ListProjects returns copies of all projects.
func (s *Store) ListProjects() []*entity.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sortByCreatedAt(out, func(p *entity.Project) int64 { return p.CreatedAt.UnixNano() })
	return out
}
