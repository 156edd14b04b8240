package store

import (
	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// NewSession describes a session to create. Sessions are created by
// the spawn flow; they start in spawning status, already linked to
// their tasks with a frozen member snapshot.
type NewSession struct {
	// ID is optional; the spawn flow pre-generates it so the manifest
	// can be written before the session exists. Empty means generate.
	ID              string
	ProjectID       string
	TaskIDs         []string
	Snapshots       []entity.TeamMemberSnapshot
	ParentSessionID string
	TeamSessionID   string
	ManifestPath    string
}

// CreateSession creates a session in spawning status and links it to
// its tasks. All-or-nothing: validation failures happen before any
// state changes and no events are emitted on failure.
func (s *Store) CreateSession(ns NewSession) (*entity.Session, error) {
	if len(ns.TaskIDs) == 0 {
		return nil, cerrors.ErrValidation("at least one task is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.resolveProject(ns.ProjectID); err != nil {
		return nil, err
	}
	// Validate every task before touching anything.
	for _, taskID := range ns.TaskIDs {
		t, err := s.resolveTask(taskID)
		if err != nil {
			return nil, err
		}
		if t.ProjectID != ns.ProjectID {
			return nil, cerrors.ErrCrossProject("task " + taskID + " belongs to a different project")
		}
	}

	id := ns.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.sessions[id]; exists {
		return nil, cerrors.ErrValidation("session id already in use: " + id)
	}

	now := s.now()
	sess := &entity.Session{
		ID:                  id,
		ProjectID:           ns.ProjectID,
		TaskIDs:             []string{},
		Status:              entity.SessionSpawning,
		TeamMemberSnapshots: ns.Snapshots,
		ParentSessionID:     ns.ParentSessionID,
		TeamSessionID:       ns.TeamSessionID,
		Timeline:            []entity.TimelineEvent{},
		ManifestPath:        ns.ManifestPath,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	s.sessions[sess.ID] = sess

	// Link after insertion so both sides update through the one
	// transactional helper.
	for _, taskID := range ns.TaskIDs {
		s.linkLocked(s.tasks[taskID], sess)
	}

	s.persist(kindSessions, kindTasks)
	s.emit(events.SessionSpawn, sess.ProjectID, sess.Clone())
	return sess.Clone(), nil
}

// DeleteSession removes a terminal session, unlinking it from every
// task first so no dangling references remain. A live session must be
// stopped before it can be deleted.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.resolveSession(id)
	if err != nil {
		return err
	}
	if !sess.Status.IsTerminal() {
		return cerrors.ErrInvalidTransition(sess.ID, string(sess.Status), "deleted")
	}

	for _, taskID := range append([]string(nil), sess.TaskIDs...) {
		if t, ok := s.tasks[taskID]; ok {
			s.unlinkLocked(t, sess)
		}
	}
	delete(s.sessions, id)

	s.persist(kindSessions, kindTasks)
	s.emit(events.SessionDeleted, sess.ProjectID, events.Deleted{ID: id})
	return nil
}

// GetSession returns a copy of the session.
func (s *Store) GetSession(id string) (*entity.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.resolveSession(id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// ListSessions returns copies of all sessions, optionally filtered by
// project.
func (s *Store) ListSessions(projectID string) []*entity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entity.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if projectID != "" && sess.ProjectID != projectID {
			continue
		}
		out = append(out, sess.Clone())
	}
	sortByCreatedAt(out, func(sess *entity.Session) int64 { return sess.CreatedAt.UnixNano() })
	return out
}
