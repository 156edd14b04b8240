package entity

import "time"

// TaskStatus represents the user-owned state of a task. It is only
// moved by explicit user action (or an agent action authorized to
// change it), never by session lifecycle reports.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskInReview   TaskStatus = "in_review"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"
	TaskCancelled  TaskStatus = "cancelled"
)

// ValidTaskStatuses returns all valid task status values.
func ValidTaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskTodo, TaskInProgress, TaskInReview,
		TaskCompleted, TaskBlocked, TaskCancelled,
	}
}

// IsValidTaskStatus returns true if the status is a valid task status.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskInReview, TaskCompleted, TaskBlocked, TaskCancelled:
		return true
	default:
		return false
	}
}

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// WorkStatus is a session's agent-reported execution state on one task.
// It lives in Task.TaskSessionStatuses keyed by session id and is fully
// independent of the task's own Status field, so parallel sessions
// retrying the same task never clobber each other.
type WorkStatus string

const (
	WorkQueued    WorkStatus = "queued"
	WorkWorking   WorkStatus = "working"
	WorkBlocked   WorkStatus = "blocked"
	WorkCompleted WorkStatus = "completed"
	WorkFailed    WorkStatus = "failed"
	WorkStopped   WorkStatus = "stopped"
)

// Task is a unit of work. Tasks form a forest via ParentID and relate
// many-to-many to sessions via SessionIDs (kept bidirectionally
// consistent with Session.TaskIDs by the store).
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`

	// SessionIDs lists every session that has worked this task.
	SessionIDs []string `json:"session_ids"`
	// TaskSessionStatuses maps session id to that session's reported
	// execution state on this task.
	TaskSessionStatuses map[string]WorkStatus `json:"task_session_statuses"`

	// StartedAt is set once, on the first transition into in_progress.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is set once, on the first transition into completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	SkillIDs         []string `json:"skill_ids,omitempty"`
	TeamMemberIDs    []string `json:"team_member_ids,omitempty"`
	ReferenceTaskIDs []string `json:"reference_task_ids,omitempty"`

	// Metadata holds opaque key/value pairs, e.g. the external issue
	// key a task was imported from.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasSession reports whether the session id is in SessionIDs.
func (t *Task) HasSession(sessionID string) bool {
	for _, id := range t.SessionIDs {
		if id == sessionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	cp.SessionIDs = append([]string(nil), t.SessionIDs...)
	cp.SkillIDs = append([]string(nil), t.SkillIDs...)
	cp.TeamMemberIDs = append([]string(nil), t.TeamMemberIDs...)
	cp.ReferenceTaskIDs = append([]string(nil), t.ReferenceTaskIDs...)
	if t.TaskSessionStatuses != nil {
		cp.TaskSessionStatuses = make(map[string]WorkStatus, len(t.TaskSessionStatuses))
		for k, v := range t.TaskSessionStatuses {
			cp.TaskSessionStatuses[k] = v
		}
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	if t.StartedAt != nil {
		at := *t.StartedAt
		cp.StartedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
