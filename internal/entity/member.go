package entity

import "time"

// Mode describes how a team member operates: coordinators plan and
// delegate, executors do the work directly.
type Mode string

const (
	ModeExecute    Mode = "execute"
	ModeCoordinate Mode = "coordinate"
)

// IsValidMode returns true if the mode is a valid mode value.
func IsValidMode(m Mode) bool {
	return m == ModeExecute || m == ModeCoordinate
}

// MemberStatus is the lifecycle status of a team member or team.
type MemberStatus string

const (
	MemberActive   MemberStatus = "active"
	MemberArchived MemberStatus = "archived"
)

// CommandPermissions holds allow/deny glob rules evaluated against the
// command lines an agent wants to run. Deny rules win over allow rules.
type CommandPermissions struct {
	Allow []string `json:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// MemoryEntry is one entry in a member's persistent memory.
type MemoryEntry struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// TeamMember is a named agent configuration within a project.
type TeamMember struct {
	ID             string             `json:"id"`
	ProjectID      string             `json:"project_id"`
	Name           string             `json:"name"`
	Role           string             `json:"role,omitempty"`
	Mode           Mode               `json:"mode"`
	Model          string             `json:"model,omitempty"`
	Tool           string             `json:"tool,omitempty"`
	PermissionMode string             `json:"permission_mode,omitempty"`
	SkillIDs       []string           `json:"skill_ids,omitempty"`
	Capabilities   []string           `json:"capabilities,omitempty"`
	Permissions    CommandPermissions `json:"command_permissions"`
	Memory         []MemoryEntry      `json:"memory,omitempty"`
	Status         MemberStatus       `json:"status"`

	// Builtin members are seeded per project and cannot be archived or
	// deleted, only edited or reset.
	Builtin bool `json:"builtin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotNow freezes the member into a spawn-time snapshot.
func (m *TeamMember) SnapshotNow(at time.Time) TeamMemberSnapshot {
	return TeamMemberSnapshot{
		MemberID:       m.ID,
		Name:           m.Name,
		Role:           m.Role,
		Mode:           m.Mode,
		Model:          m.Model,
		Tool:           m.Tool,
		PermissionMode: m.PermissionMode,
		SkillIDs:       append([]string(nil), m.SkillIDs...),
		TakenAt:        at,
	}
}

// Clone returns a deep copy of the team member.
func (m *TeamMember) Clone() *TeamMember {
	cp := *m
	cp.SkillIDs = append([]string(nil), m.SkillIDs...)
	cp.Capabilities = append([]string(nil), m.Capabilities...)
	cp.Permissions.Allow = append([]string(nil), m.Permissions.Allow...)
	cp.Permissions.Deny = append([]string(nil), m.Permissions.Deny...)
	cp.Memory = append([]MemoryEntry(nil), m.Memory...)
	return &cp
}
