package store

import (
	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// Relationship management: the task↔session many-to-many graph and the
// task parent/child forest. Both sides of a link always change
// together under the store lock, so the bidirectional invariant
//
//	sessionID ∈ task.SessionIDs  ⟺  taskID ∈ session.TaskIDs
//
// holds after every exported operation.

// LinkTaskToSession inserts the task↔session link on both sides.
// Idempotent: linking an already-linked pair is a no-op and emits no
// events.
func (s *Store) LinkTaskToSession(taskID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.resolveTask(taskID)
	if err != nil {
		return err
	}
	sess, err := s.resolveSession(sessionID)
	if err != nil {
		return err
	}
	if t.ProjectID != sess.ProjectID {
		return cerrors.ErrCrossProject("task " + taskID + " and session " + sessionID + " belong to different projects")
	}

	if t.HasSession(sessionID) {
		return nil
	}

	s.linkLocked(t, sess)
	s.persist(kindTasks, kindSessions)
	return nil
}

// AutoLink links a task a session reported progress on but wasn't
// spawned with (e.g. a coordinator delegated new scope). Identical to
// LinkTaskToSession apart from the trigger.
func (s *Store) AutoLink(sessionID, taskID string) error {
	return s.LinkTaskToSession(taskID, sessionID)
}

// linkLocked inserts both sides of the link and emits the two link
// events. Caller must hold the lock and have validated the pair.
func (s *Store) linkLocked(t *entity.Task, sess *entity.Session) {
	t.SessionIDs = append(t.SessionIDs, sess.ID)
	if t.TaskSessionStatuses == nil {
		t.TaskSessionStatuses = map[string]entity.WorkStatus{}
	}
	t.TaskSessionStatuses[sess.ID] = workStatusFor(sess.Status)
	sess.TaskIDs = append(sess.TaskIDs, t.ID)

	now := s.now()
	t.UpdatedAt = now
	sess.UpdatedAt = now

	link := events.LinkChange{TaskID: t.ID, SessionID: sess.ID}
	s.emit(events.TaskSessionAdded, t.ProjectID, link)
	s.emit(events.SessionTaskAdded, sess.ProjectID, link)
}

// UnlinkTaskFromSession removes the link on both sides. Idempotent on
// already-unlinked pairs.
func (s *Store) UnlinkTaskFromSession(taskID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.resolveTask(taskID)
	if err != nil {
		return err
	}
	sess, err := s.resolveSession(sessionID)
	if err != nil {
		return err
	}

	if !t.HasSession(sessionID) {
		return nil
	}

	s.unlinkLocked(t, sess)
	s.persist(kindTasks, kindSessions)
	return nil
}

// unlinkLocked removes both sides of the link and emits the two
// removal events. Caller must hold the lock.
func (s *Store) unlinkLocked(t *entity.Task, sess *entity.Session) {
	t.SessionIDs = removeString(t.SessionIDs, sess.ID)
	delete(t.TaskSessionStatuses, sess.ID)
	sess.TaskIDs = removeString(sess.TaskIDs, t.ID)

	now := s.now()
	t.UpdatedAt = now
	sess.UpdatedAt = now

	link := events.LinkChange{TaskID: t.ID, SessionID: sess.ID}
	s.emit(events.TaskSessionRemoved, t.ProjectID, link)
	s.emit(events.SessionTaskRemoved, sess.ProjectID, link)
}

// DeleteTaskCascade deletes a task and all its descendants, unlinking
// every removed task from every session. Children are removed before
// parents. Either the whole subtree goes or the call fails before any
// deletion.
func (s *Store) DeleteTaskCascade(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.resolveTask(taskID)
	if err != nil {
		return err
	}

	// Transitive closure over ParentID, depth-first so the result is
	// ordered parents-before-children; deletion walks it backwards.
	doomed := s.collectSubtreeLocked(taskID)

	for i := len(doomed) - 1; i >= 0; i-- {
		t := s.tasks[doomed[i]]
		for _, sessionID := range append([]string(nil), t.SessionIDs...) {
			if sess, ok := s.sessions[sessionID]; ok {
				s.unlinkLocked(t, sess)
			}
		}
		delete(s.tasks, t.ID)
		s.emit(events.TaskDeleted, t.ProjectID, events.Deleted{ID: t.ID})
		// The root's parent survives the cascade; tell tree views.
		if t.ID == root.ID && t.ParentID != "" {
			s.emit(events.SubtaskDeleted, t.ProjectID, events.SubtaskChange{TaskID: t.ParentID, SubtaskID: t.ID})
		}
	}

	s.persist(kindTasks, kindSessions)
	return nil
}

// collectSubtreeLocked returns taskID and all its descendants,
// parents before children. Caller must hold the lock.
func (s *Store) collectSubtreeLocked(taskID string) []string {
	order := []string{taskID}
	for i := 0; i < len(order); i++ {
		for _, t := range s.tasks {
			if t.ParentID == order[i] {
				order = append(order, t.ID)
			}
		}
	}
	return order
}

// SetParent re-parents a task; empty parentID clears the parent.
// Rejects cross-project parents and any assignment that would create a
// cycle, leaving the tree unchanged.
func (s *Store) SetParent(taskID, parentID string) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.resolveTask(taskID)
	if err != nil {
		return nil, err
	}

	if parentID != "" {
		parent, err := s.resolveTask(parentID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != t.ProjectID {
			return nil, cerrors.ErrCrossProject("parent task belongs to a different project")
		}
		// Walk up from the proposed parent; if we meet taskID the
		// assignment would close a cycle.
		for cursor := parent; cursor != nil; {
			if cursor.ID == taskID {
				return nil, cerrors.ErrCycleDetected(taskID, parentID)
			}
			if cursor.ParentID == "" {
				break
			}
			cursor = s.tasks[cursor.ParentID]
		}
	}

	t.ParentID = parentID
	t.UpdatedAt = s.now()

	s.persist(kindTasks)
	s.emitTaskUpdated(t)
	return t.Clone(), nil
}

func workStatusFor(status entity.SessionStatus) entity.WorkStatus {
	switch status {
	case entity.SessionSpawning:
		return entity.WorkQueued
	case entity.SessionWorking:
		return entity.WorkWorking
	case entity.SessionCompleted:
		return entity.WorkCompleted
	case entity.SessionFailed:
		return entity.WorkFailed
	case entity.SessionStopped:
		return entity.WorkStopped
	default:
		return entity.WorkQueued
	}
}

func removeString(list []string, target string) []string {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
