// Package events provides the typed event catalog and publishing
// infrastructure for conductor.
//
// Every durable mutation in the store emits exactly one semantically
// typed event after the mutation is applied — never before, and never
// on validation failure. Delivery is best-effort: a slow or missing
// subscriber never blocks or rolls back the mutation that produced the
// event.
package events

import (
	"strings"
	"time"

	"github.com/randalmurphal/conductor/internal/entity"
)

// Type defines the type of event.
type Type string

const (
	// Project events

	ProjectCreated Type = "project:created"
	ProjectUpdated Type = "project:updated"
	ProjectDeleted Type = "project:deleted"

	// Task events

	TaskCreated Type = "task:created"
	TaskUpdated Type = "task:updated"
	TaskDeleted Type = "task:deleted"
	// TaskSessionAdded / TaskSessionRemoved fire when the task side of
	// a task↔session link changes.
	TaskSessionAdded   Type = "task:session_added"
	TaskSessionRemoved Type = "task:session_removed"

	// Subtask events mirror task events for tasks that have a parent,
	// so tree views update without a refetch.

	SubtaskCreated Type = "subtask:created"
	SubtaskUpdated Type = "subtask:updated"
	SubtaskDeleted Type = "subtask:deleted"

	// Session events

	SessionCreated Type = "session:created"
	SessionUpdated Type = "session:updated"
	SessionDeleted Type = "session:deleted"
	// SessionSpawn carries the full session so a client can open a
	// terminal or window without a follow-up fetch.
	SessionSpawn Type = "session:spawn"
	// SessionTaskAdded / SessionTaskRemoved fire when the session side
	// of a task↔session link changes.
	SessionTaskAdded   Type = "session:task_added"
	SessionTaskRemoved Type = "session:task_removed"

	// Team member and team events

	MemberCreated Type = "member:created"
	MemberUpdated Type = "member:updated"
	MemberDeleted Type = "member:deleted"
	TeamCreated   Type = "team:created"
	TeamUpdated   Type = "team:updated"
	TeamDeleted   Type = "team:deleted"

	// Notify events are best-effort UX notifications, never required
	// for correctness.

	NotifyProgress            Type = "notify:progress"
	NotifyNeedsInput          Type = "notify:needs_input"
	NotifySessionCompleted    Type = "notify:session_completed"
	NotifySessionFailed       Type = "notify:session_failed"
	NotifyTaskSessionsSettled Type = "notify:task_sessions_settled"
)

// IsNotify reports whether the type is in the best-effort notify
// family.
func (t Type) IsNotify() bool {
	return strings.HasPrefix(string(t), "notify:")
}

// Event represents a published event.
type Event struct {
	Type      Type      `json:"type"`
	ProjectID string    `json:"project_id"`
	Data      any       `json:"data"`
	Time      time.Time `json:"time"`
}

// New creates a new event with the current timestamp.
func New(eventType Type, projectID string, data any) Event {
	return Event{
		Type:      eventType,
		ProjectID: projectID,
		Data:      data,
		Time:      time.Now(),
	}
}

// Deleted is the payload for *:deleted events.
type Deleted struct {
	ID string `json:"id"`
}

// LinkChange is the payload for the four link-change events. Both
// sides of the relationship are identified so either cache entry can
// be patched.
type LinkChange struct {
	TaskID    string `json:"task_id"`
	SessionID string `json:"session_id"`
}

// SubtaskChange is the payload for subtask:* events. Subtask carries
// the full child task for created/updated; SubtaskID alone is set for
// deleted.
type SubtaskChange struct {
	TaskID    string       `json:"task_id"`
	Subtask   *entity.Task `json:"subtask,omitempty"`
	SubtaskID string       `json:"subtask_id,omitempty"`
}

// Notify is the payload for notify:* events.
type Notify struct {
	SessionID string `json:"session_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Message   string `json:"message,omitempty"`
}
