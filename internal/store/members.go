package store

import (
	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// NewMember describes a team member to create.
type NewMember struct {
	ProjectID      string
	Name           string
	Role           string
	Mode           entity.Mode
	Model          string
	Tool           string
	PermissionMode string
	SkillIDs       []string
	Capabilities   []string
	Permissions    entity.CommandPermissions
}

// CreateMember creates an active team member.
func (s *Store) CreateMember(nm NewMember) (*entity.TeamMember, error) {
	if nm.Name == "" {
		return nil, cerrors.ErrValidation("member name is required")
	}
	if nm.Mode == "" {
		nm.Mode = entity.ModeExecute
	}
	if !entity.IsValidMode(nm.Mode) {
		return nil, cerrors.ErrValidation("invalid mode: " + string(nm.Mode))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resolveProject(nm.ProjectID); err != nil {
		return nil, err
	}

	now := s.now()
	m := &entity.TeamMember{
		ID:             uuid.NewString(),
		ProjectID:      nm.ProjectID,
		Name:           nm.Name,
		Role:           nm.Role,
		Mode:           nm.Mode,
		Model:          nm.Model,
		Tool:           nm.Tool,
		PermissionMode: nm.PermissionMode,
		SkillIDs:       append([]string(nil), nm.SkillIDs...),
		Capabilities:   append([]string(nil), nm.Capabilities...),
		Permissions:    nm.Permissions,
		Status:         entity.MemberActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.members[m.ID] = m

	s.persist(kindMembers)
	s.emit(events.MemberCreated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// MemberUpdate is a partial update; nil fields are left unchanged.
type MemberUpdate struct {
	Name           *string
	Role           *string
	Mode           *entity.Mode
	Model          *string
	Tool           *string
	PermissionMode *string
	SkillIDs       *[]string
	Capabilities   *[]string
	Permissions    *entity.CommandPermissions
}

// UpdateMember applies a partial update. Builtin members may be edited.
func (s *Store) UpdateMember(id string, up MemberUpdate) (*entity.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}

	if up.Name != nil {
		if *up.Name == "" {
			return nil, cerrors.ErrValidation("member name cannot be empty")
		}
		m.Name = *up.Name
	}
	if up.Role != nil {
		m.Role = *up.Role
	}
	if up.Mode != nil {
		if !entity.IsValidMode(*up.Mode) {
			return nil, cerrors.ErrValidation("invalid mode: " + string(*up.Mode))
		}
		m.Mode = *up.Mode
	}
	if up.Model != nil {
		m.Model = *up.Model
	}
	if up.Tool != nil {
		m.Tool = *up.Tool
	}
	if up.PermissionMode != nil {
		m.PermissionMode = *up.PermissionMode
	}
	if up.SkillIDs != nil {
		m.SkillIDs = append([]string(nil), (*up.SkillIDs)...)
	}
	if up.Capabilities != nil {
		m.Capabilities = append([]string(nil), (*up.Capabilities)...)
	}
	if up.Permissions != nil {
		m.Permissions = entity.CommandPermissions{
			Allow: append([]string(nil), up.Permissions.Allow...),
			Deny:  append([]string(nil), up.Permissions.Deny...),
		}
	}
	m.UpdatedAt = s.now()

	s.persist(kindMembers)
	s.emit(events.MemberUpdated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// ArchiveMember moves a member to archived status. Builtin members
// cannot be archived.
func (s *Store) ArchiveMember(id string) (*entity.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}
	if m.Builtin {
		return nil, cerrors.ErrBuiltinProtected(id)
	}
	if m.Status == entity.MemberArchived {
		return m.Clone(), nil
	}

	m.Status = entity.MemberArchived
	m.UpdatedAt = s.now()

	s.persist(kindMembers)
	s.emit(events.MemberUpdated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// DeleteMember removes a member. It must be archived first, and
// builtin members cannot be deleted at all.
func (s *Store) DeleteMember(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return err
	}
	if m.Builtin {
		return cerrors.ErrBuiltinProtected(id)
	}
	if m.Status != entity.MemberArchived {
		return cerrors.ErrArchiveRequired("team member", id)
	}

	delete(s.members, id)

	s.persist(kindMembers)
	s.emit(events.MemberDeleted, m.ProjectID, events.Deleted{ID: id})
	return nil
}

// ResetMember restores a builtin member to its seeded defaults,
// keeping its identity.
func (s *Store) ResetMember(id string) (*entity.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}
	if !m.Builtin {
		return nil, cerrors.ErrValidation("only builtin members can be reset")
	}

	m.Name = DefaultMemberName
	m.Role = ""
	m.Mode = entity.ModeExecute
	m.Model = ""
	m.Tool = ""
	m.PermissionMode = ""
	m.SkillIDs = nil
	m.Capabilities = nil
	m.Permissions = entity.CommandPermissions{}
	m.Memory = nil
	m.Status = entity.MemberActive
	m.UpdatedAt = s.now()

	s.persist(kindMembers)
	s.emit(events.MemberUpdated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// AppendMemory appends one entry to a member's persistent memory.
func (s *Store) AppendMemory(id, text string) (*entity.TeamMember, error) {
	if text == "" {
		return nil, cerrors.ErrValidation("memory text is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m.Memory = append(m.Memory, entity.MemoryEntry{Text: text, At: now})
	m.UpdatedAt = now

	s.persist(kindMembers)
	s.emit(events.MemberUpdated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// ClearMemory removes all of a member's memory entries.
func (s *Store) ClearMemory(id string) (*entity.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}

	m.Memory = nil
	m.UpdatedAt = s.now()

	s.persist(kindMembers)
	s.emit(events.MemberUpdated, m.ProjectID, m.Clone())
	return m.Clone(), nil
}

// GetMember returns a copy of the member.
func (s *Store) GetMember(id string) (*entity.TeamMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.resolveMember(id)
	if err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// ListMembers returns copies of all members, optionally filtered by
// project.
func (s *Store) ListMembers(projectID string) []*entity.TeamMember {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.TeamMember, 0, len(s.members))
	for _, m := range s.members {
		if projectID != "" && m.ProjectID != projectID {
			continue
		}
		out = append(out, m.Clone())
	}
	sortByCreatedAt(out, func(m *entity.TeamMember) int64 { return m.CreatedAt.UnixNano() })
	return out
}
