package store

import (
	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// NewTeam describes a team to create. The leader must be one of the
// listed members.
type NewTeam struct {
	ProjectID string
	Name      string
	LeaderID  string
	MemberIDs []string
}

// CreateTeam creates a team. Every member must exist, belong to the
// same project, and be active; the leader must be among the members.
func (s *Store) CreateTeam(nt NewTeam) (*entity.Team, error) {
	if nt.Name == "" {
		return nil, cerrors.ErrValidation("team name is required")
	}
	if nt.LeaderID == "" {
		return nil, cerrors.ErrValidation("team leader is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resolveProject(nt.ProjectID); err != nil {
		return nil, err
	}
	if err := s.checkTeamMembersLocked(nt.ProjectID, nt.MemberIDs); err != nil {
		return nil, err
	}
	if !containsString(nt.MemberIDs, nt.LeaderID) {
		return nil, cerrors.ErrValidation("team leader must be one of the team members")
	}

	now := s.now()
	team := &entity.Team{
		ID:        uuid.NewString(),
		ProjectID: nt.ProjectID,
		Name:      nt.Name,
		LeaderID:  nt.LeaderID,
		MemberIDs: append([]string(nil), nt.MemberIDs...),
		Status:    entity.MemberActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.teams[team.ID] = team

	s.persist(kindTeams)
	s.emit(events.TeamCreated, team.ProjectID, team.Clone())
	return team.Clone(), nil
}

// TeamUpdate is a partial update; nil fields are left unchanged.
type TeamUpdate struct {
	Name      *string
	LeaderID  *string
	MemberIDs *[]string
}

// UpdateTeam applies a partial update. Whatever the update, the leader
// must end up inside the member set.
func (s *Store) UpdateTeam(id string, up TeamUpdate) (*entity.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, err := s.resolveTeam(id)
	if err != nil {
		return nil, err
	}

	name := team.Name
	leaderID := team.LeaderID
	memberIDs := team.MemberIDs
	if up.Name != nil {
		if *up.Name == "" {
			return nil, cerrors.ErrValidation("team name cannot be empty")
		}
		name = *up.Name
	}
	if up.LeaderID != nil {
		leaderID = *up.LeaderID
	}
	if up.MemberIDs != nil {
		memberIDs = append([]string(nil), (*up.MemberIDs)...)
		if err := s.checkTeamMembersLocked(team.ProjectID, memberIDs); err != nil {
			return nil, err
		}
	}
	if !containsString(memberIDs, leaderID) {
		if up.MemberIDs != nil && up.LeaderID == nil {
			return nil, cerrors.ErrLeaderRequired(team.ID, leaderID)
		}
		return nil, cerrors.ErrValidation("team leader must be one of the team members")
	}

	team.Name = name
	team.LeaderID = leaderID
	team.MemberIDs = memberIDs
	team.UpdatedAt = s.now()

	s.persist(kindTeams)
	s.emit(events.TeamUpdated, team.ProjectID, team.Clone())
	return team.Clone(), nil
}

// AddSubTeam nests child under parent. Both must be in the same
// project, and the assignment must not create a cycle in the team
// graph.
func (s *Store) AddSubTeam(parentID, childID string) (*entity.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.resolveTeam(parentID)
	if err != nil {
		return nil, err
	}
	child, err := s.resolveTeam(childID)
	if err != nil {
		return nil, err
	}
	if parent.ID == child.ID {
		return nil, cerrors.ErrCycleDetected(childID, parentID)
	}
	if parent.ProjectID != child.ProjectID {
		return nil, cerrors.ErrCrossProject("teams belong to different projects")
	}
	if containsString(parent.SubTeamIDs, childID) {
		return parent.Clone(), nil
	}

	// Walk down from the child; if the parent is reachable the
	// assignment would close a cycle.
	stack := append([]string(nil), child.SubTeamIDs...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == parentID {
			return nil, cerrors.ErrCycleDetected(childID, parentID)
		}
		if t, ok := s.teams[id]; ok {
			stack = append(stack, t.SubTeamIDs...)
		}
	}

	parent.SubTeamIDs = append(parent.SubTeamIDs, childID)
	parent.UpdatedAt = s.now()

	s.persist(kindTeams)
	s.emit(events.TeamUpdated, parent.ProjectID, parent.Clone())
	return parent.Clone(), nil
}

// RemoveSubTeam detaches child from parent. Idempotent.
func (s *Store) RemoveSubTeam(parentID, childID string) (*entity.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.resolveTeam(parentID)
	if err != nil {
		return nil, err
	}
	if !containsString(parent.SubTeamIDs, childID) {
		return parent.Clone(), nil
	}

	parent.SubTeamIDs = removeString(parent.SubTeamIDs, childID)
	parent.UpdatedAt = s.now()

	s.persist(kindTeams)
	s.emit(events.TeamUpdated, parent.ProjectID, parent.Clone())
	return parent.Clone(), nil
}

// ArchiveTeam moves a team to archived status.
func (s *Store) ArchiveTeam(id string) (*entity.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, err := s.resolveTeam(id)
	if err != nil {
		return nil, err
	}
	if team.Status == entity.MemberArchived {
		return team.Clone(), nil
	}

	team.Status = entity.MemberArchived
	team.UpdatedAt = s.now()

	s.persist(kindTeams)
	s.emit(events.TeamUpdated, team.ProjectID, team.Clone())
	return team.Clone(), nil
}

// DeleteTeam removes an archived team and detaches it from any parent
// teams that reference it.
func (s *Store) DeleteTeam(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, err := s.resolveTeam(id)
	if err != nil {
		return err
	}
	if team.Status != entity.MemberArchived {
		return cerrors.ErrArchiveRequired("team", id)
	}

	delete(s.teams, id)
	for _, t := range s.teams {
		if containsString(t.SubTeamIDs, id) {
			t.SubTeamIDs = removeString(t.SubTeamIDs, id)
			t.UpdatedAt = s.now()
		}
	}

	s.persist(kindTeams)
	s.emit(events.TeamDeleted, team.ProjectID, events.Deleted{ID: id})
	return nil
}

// GetTeam returns a copy of the team.
func (s *Store) GetTeam(id string) (*entity.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	team, err := s.resolveTeam(id)
	if err != nil {
		return nil, err
	}
	return team.Clone(), nil
}

// ListTeams returns copies of all teams, optionally filtered by
// project.
func (s *Store) ListTeams(projectID string) []*entity.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Team, 0, len(s.teams))
	for _, team := range s.teams {
		if projectID != "" && team.ProjectID != projectID {
			continue
		}
		out = append(out, team.Clone())
	}
	sortByCreatedAt(out, func(team *entity.Team) int64 { return team.CreatedAt.UnixNano() })
	return out
}

// checkTeamMembersLocked validates a prospective member list: each
// member must exist, belong to the project, and be active. Caller must
// hold the lock.
func (s *Store) checkTeamMembersLocked(projectID string, memberIDs []string) error {
	if len(memberIDs) == 0 {
		return cerrors.ErrValidation("a team needs at least one member")
	}
	for _, memberID := range memberIDs {
		m, err := s.resolveMember(memberID)
		if err != nil {
			return err
		}
		if m.ProjectID != projectID {
			return cerrors.ErrCrossProject("member " + memberID + " belongs to a different project")
		}
		if m.Status == entity.MemberArchived {
			return cerrors.ErrMemberArchived(memberID)
		}
	}
	return nil
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
