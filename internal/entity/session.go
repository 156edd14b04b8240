package entity

import "time"

// SessionStatus represents the lifecycle state of a session.
//
// spawning → working → {completed, failed}; stopped is reachable from
// any non-terminal state via explicit user stop. completed, failed and
// stopped are terminal.
type SessionStatus string

const (
	SessionSpawning  SessionStatus = "spawning"
	SessionWorking   SessionStatus = "working"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// ValidSessionStatuses returns all valid session status values.
func ValidSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionSpawning, SessionWorking,
		SessionCompleted, SessionFailed, SessionStopped,
	}
}

// IsValidSessionStatus returns true if the status is a valid session status.
func IsValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionSpawning, SessionWorking, SessionCompleted, SessionFailed, SessionStopped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status accepts no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionStopped
}

// NeedsInput is an orthogonal flag indicating the agent is paused
// awaiting human input. It is not a lifecycle state: the session stays
// working while the flag is active.
type NeedsInput struct {
	Active  bool   `json:"active"`
	Message string `json:"message,omitempty"`
}

// TimelineKind classifies a session timeline entry.
type TimelineKind string

const (
	TimelineProgress   TimelineKind = "progress"
	TimelineBlocked    TimelineKind = "blocked"
	TimelineNeedsInput TimelineKind = "needs_input"
	TimelineCompleted  TimelineKind = "completed"
	TimelineFailed     TimelineKind = "failed"
	TimelineStopped    TimelineKind = "stopped"
	TimelinePrompt     TimelineKind = "prompt"
)

// TimelineEvent is one entry in a session's append-only timeline.
type TimelineEvent struct {
	Kind    TimelineKind `json:"kind"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// TeamMemberSnapshot is a denormalized copy of the team member a
// session was spawned with, frozen at spawn time so attribution stays
// stable even if the member is later edited or archived.
type TeamMemberSnapshot struct {
	MemberID       string   `json:"member_id"`
	Name           string   `json:"name"`
	Role           string   `json:"role,omitempty"`
	Mode           Mode     `json:"mode"`
	Model          string   `json:"model,omitempty"`
	Tool           string   `json:"tool,omitempty"`
	PermissionMode string   `json:"permission_mode,omitempty"`
	SkillIDs       []string `json:"skill_ids,omitempty"`
	TakenAt        time.Time `json:"taken_at"`
}

// Session is one agent execution, linked many-to-many to tasks.
type Session struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	TaskIDs   []string      `json:"task_ids"`
	Status    SessionStatus `json:"status"`

	NeedsInput NeedsInput `json:"needs_input"`

	// TeamMemberSnapshots is the canonical list; the first entry is the
	// member the session was spawned as. Exposed singular via Snapshot.
	TeamMemberSnapshots []TeamMemberSnapshot `json:"team_member_snapshots,omitempty"`

	// ParentSessionID groups coordinator-spawned workers under the
	// coordinator session; TeamSessionID groups a whole team run.
	ParentSessionID string `json:"parent_session_id,omitempty"`
	TeamSessionID   string `json:"team_session_id,omitempty"`

	// Timeline is append-only and ordered.
	Timeline []TimelineEvent `json:"timeline"`

	// ManifestPath points at the immutable context file written at
	// spawn time, consumed by the executing agent process.
	ManifestPath string `json:"manifest_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns the spawn-time member snapshot, or nil if none was
// recorded. Kept as the singular view over TeamMemberSnapshots.
func (s *Session) Snapshot() *TeamMemberSnapshot {
	if len(s.TeamMemberSnapshots) == 0 {
		return nil
	}
	return &s.TeamMemberSnapshots[0]
}

// HasTask reports whether the task id is in TaskIDs.
func (s *Session) HasTask(taskID string) bool {
	for _, id := range s.TaskIDs {
		if id == taskID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.TaskIDs = append([]string(nil), s.TaskIDs...)
	cp.Timeline = append([]TimelineEvent(nil), s.Timeline...)
	if s.TeamMemberSnapshots != nil {
		cp.TeamMemberSnapshots = make([]TeamMemberSnapshot, len(s.TeamMemberSnapshots))
		for i, snap := range s.TeamMemberSnapshots {
			snapCopy := snap
			snapCopy.SkillIDs = append([]string(nil), snap.SkillIDs...)
			cp.TeamMemberSnapshots[i] = snapCopy
		}
	}
	return &cp
}
