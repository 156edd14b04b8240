package store

import (
	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// NewTask describes a task to create.
type NewTask struct {
	ProjectID   string
	ParentID    string
	Title       string
	Description string
	Priority    entity.Priority
	SkillIDs    []string
	MemberIDs   []string
	Metadata    map[string]string
}

// CreateTask creates a task in todo status. A non-empty ParentID must
// reference an existing task in the same project.
func (s *Store) CreateTask(nt NewTask) (*entity.Task, error) {
	if nt.Title == "" {
		return nil, cerrors.ErrValidation("task title is required")
	}
	if nt.Priority == "" {
		nt.Priority = entity.PriorityMedium
	}
	if !entity.IsValidPriority(nt.Priority) {
		return nil, cerrors.ErrValidation("invalid priority: " + string(nt.Priority))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resolveProject(nt.ProjectID); err != nil {
		return nil, err
	}
	if nt.ParentID != "" {
		parent, err := s.resolveTask(nt.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != nt.ProjectID {
			return nil, cerrors.ErrCrossProject("parent task belongs to a different project")
		}
	}

	now := s.now()
	t := &entity.Task{
		ID:                  uuid.NewString(),
		ProjectID:           nt.ProjectID,
		ParentID:            nt.ParentID,
		Title:               nt.Title,
		Description:         nt.Description,
		Priority:            nt.Priority,
		Status:              entity.TaskTodo,
		SessionIDs:          []string{},
		TaskSessionStatuses: map[string]entity.WorkStatus{},
		SkillIDs:            append([]string(nil), nt.SkillIDs...),
		TeamMemberIDs:       append([]string(nil), nt.MemberIDs...),
		Metadata:            copyMetadata(nt.Metadata),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.tasks[t.ID] = t

	s.persist(kindTasks)
	s.emit(events.TaskCreated, t.ProjectID, t.Clone())
	if t.ParentID != "" {
		s.emit(events.SubtaskCreated, t.ProjectID, events.SubtaskChange{TaskID: t.ParentID, Subtask: t.Clone()})
	}
	return t.Clone(), nil
}

// TaskUpdate is a partial update; nil fields are left unchanged.
// Status changes here are the explicit user-owned path — session
// lifecycle reports never call this.
type TaskUpdate struct {
	Title            *string
	Description      *string
	Priority         *entity.Priority
	Status           *entity.TaskStatus
	SkillIDs         *[]string
	TeamMemberIDs    *[]string
	ReferenceTaskIDs *[]string
	Metadata         *map[string]string
}

// UpdateTask applies a partial update to a task.
func (s *Store) UpdateTask(id string, up TaskUpdate) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.resolveTask(id)
	if err != nil {
		return nil, err
	}

	if up.Title != nil {
		if *up.Title == "" {
			return nil, cerrors.ErrValidation("task title cannot be empty")
		}
		t.Title = *up.Title
	}
	if up.Description != nil {
		t.Description = *up.Description
	}
	if up.Priority != nil {
		if !entity.IsValidPriority(*up.Priority) {
			return nil, cerrors.ErrValidation("invalid priority: " + string(*up.Priority))
		}
		t.Priority = *up.Priority
	}
	if up.Status != nil {
		if !entity.IsValidTaskStatus(*up.Status) {
			return nil, cerrors.ErrValidation("invalid status: " + string(*up.Status))
		}
		s.applyTaskStatus(t, *up.Status)
	}
	if up.SkillIDs != nil {
		t.SkillIDs = append([]string(nil), (*up.SkillIDs)...)
	}
	if up.TeamMemberIDs != nil {
		t.TeamMemberIDs = append([]string(nil), (*up.TeamMemberIDs)...)
	}
	if up.ReferenceTaskIDs != nil {
		t.ReferenceTaskIDs = append([]string(nil), (*up.ReferenceTaskIDs)...)
	}
	if up.Metadata != nil {
		t.Metadata = copyMetadata(*up.Metadata)
	}
	t.UpdatedAt = s.now()

	s.persist(kindTasks)
	s.emitTaskUpdated(t)
	return t.Clone(), nil
}

// applyTaskStatus sets the user-owned status and its set-once
// timestamps. Caller must hold the lock.
func (s *Store) applyTaskStatus(t *entity.Task, status entity.TaskStatus) {
	t.Status = status
	now := s.now()
	if status == entity.TaskInProgress && t.StartedAt == nil {
		t.StartedAt = &now
	}
	if status == entity.TaskCompleted && t.CompletedAt == nil {
		t.CompletedAt = &now
	}
}

// emitTaskUpdated emits task:updated, plus subtask:updated when the
// task has a parent. Caller must hold the lock.
func (s *Store) emitTaskUpdated(t *entity.Task) {
	s.emit(events.TaskUpdated, t.ProjectID, t.Clone())
	if t.ParentID != "" {
		s.emit(events.SubtaskUpdated, t.ProjectID, events.SubtaskChange{TaskID: t.ParentID, Subtask: t.Clone()})
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// GetTask returns a copy of the task.
func (s *Store) GetTask(id string) (*entity.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.resolveTask(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// ListTasks returns copies of all tasks, optionally filtered by
// project.
func (s *Store) ListTasks(projectID string) []*entity.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		out = append(out, t.Clone())
	}
	sortByCreatedAt(out, func(t *entity.Task) int64 { return t.CreatedAt.UnixNano() })
	return out
}

// ListSubtasks returns copies of a task's direct children.
func (s *Store) ListSubtasks(parentID string) ([]*entity.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.resolveTask(parentID); err != nil {
		return nil, err
	}
	var out []*entity.Task
	for _, t := range s.tasks {
		if t.ParentID == parentID {
			out = append(out, t.Clone())
		}
	}
	sortByCreatedAt(out, func(t *entity.Task) int64 { return t.CreatedAt.UnixNano() })
	return out, nil
}
