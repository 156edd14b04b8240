package store

import (
	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
)

// ReportKind classifies an inbound agent report.
type ReportKind string

const (
	ReportProgress   ReportKind = "progress"
	ReportBlocked    ReportKind = "blocked"
	ReportNeedsInput ReportKind = "needs_input"
	ReportComplete   ReportKind = "complete"
	ReportError      ReportKind = "error"
)

// IsValidReportKind returns true if the kind is a valid report kind.
func IsValidReportKind(k ReportKind) bool {
	switch k {
	case ReportProgress, ReportBlocked, ReportNeedsInput, ReportComplete, ReportError:
		return true
	default:
		return false
	}
}

// Report is one agent → server lifecycle report.
type Report struct {
	SessionID string
	Kind      ReportKind
	// TaskID optionally scopes the report to one task. A task the
	// session wasn't linked to is auto-linked first.
	TaskID  string
	Message string
	// TaskStatus, when set, is an agent-initiated change to the task's
	// user-owned status. It is only honored when the agent is flagged
	// as authorized; plain reports never move task status.
	TaskStatus entity.TaskStatus
	Authorized bool
}

// ApplyReport drives the session lifecycle state machine:
//
//	spawning → working → {completed, failed}
//
// needsInput is an orthogonal flag, not a state. Re-applying a report
// whose target state matches the current terminal state is an
// idempotent no-op; any other report against a terminal session is
// rejected with InvalidTransition and leaves the session unchanged.
func (s *Store) ApplyReport(rep Report) (*entity.Session, error) {
	if !IsValidReportKind(rep.Kind) {
		return nil, cerrors.ErrValidation("invalid report kind: " + string(rep.Kind))
	}
	if rep.TaskStatus != "" && !entity.IsValidTaskStatus(rep.TaskStatus) {
		return nil, cerrors.ErrValidation("invalid task status: " + string(rep.TaskStatus))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.resolveSession(rep.SessionID)
	if err != nil {
		return nil, err
	}

	target := targetStatus(rep.Kind)
	if sess.Status.IsTerminal() {
		if target == sess.Status {
			return sess.Clone(), nil
		}
		return nil, cerrors.ErrInvalidTransition(sess.ID, string(sess.Status), string(target))
	}

	// Agent reported scope the session wasn't spawned with.
	if rep.TaskID != "" {
		t, err := s.resolveTask(rep.TaskID)
		if err != nil {
			return nil, err
		}
		if t.ProjectID != sess.ProjectID {
			return nil, cerrors.ErrCrossProject("task " + rep.TaskID + " and session " + sess.ID + " belong to different projects")
		}
		if !sess.HasTask(rep.TaskID) {
			s.linkLocked(t, sess)
		}
	}

	now := s.now()
	sess.Status = target
	sess.UpdatedAt = now

	workStatus := workStatusFor(target)
	var timelineKind entity.TimelineKind
	switch rep.Kind {
	case ReportProgress:
		timelineKind = entity.TimelineProgress
	case ReportBlocked:
		timelineKind = entity.TimelineBlocked
		workStatus = entity.WorkBlocked
	case ReportNeedsInput:
		timelineKind = entity.TimelineNeedsInput
		sess.NeedsInput = entity.NeedsInput{Active: true, Message: rep.Message}
	case ReportComplete:
		timelineKind = entity.TimelineCompleted
	case ReportError:
		timelineKind = entity.TimelineFailed
	}
	sess.Timeline = append(sess.Timeline, entity.TimelineEvent{
		Kind:    timelineKind,
		Message: rep.Message,
		At:      now,
	})

	// Update the per-session execution view on every linked task. The
	// task's own user-owned status is never touched from here.
	touched := s.updateWorkStatusesLocked(sess, workStatus)

	// Authorized agent-initiated task status change. The status value
	// was validated up front, before any mutation.
	if rep.Authorized && rep.TaskStatus != "" && rep.TaskID != "" {
		t := s.tasks[rep.TaskID]
		s.applyTaskStatus(t, rep.TaskStatus)
		t.UpdatedAt = now
	}

	s.persist(kindSessions, kindTasks)

	s.emit(events.SessionUpdated, sess.ProjectID, sess.Clone())
	for _, t := range touched {
		s.emitTaskUpdated(t)
	}
	s.notifyTransition(sess, rep)
	if sess.Status.IsTerminal() {
		s.notifySettledTasksLocked(sess)
	}

	return sess.Clone(), nil
}

// targetStatus maps a report kind onto the status it drives the
// session toward. Progress-family reports target working (the first
// one moves a spawning session to working); an agent may also complete
// or fail without an interim progress report.
func targetStatus(kind ReportKind) entity.SessionStatus {
	switch kind {
	case ReportComplete:
		return entity.SessionCompleted
	case ReportError:
		return entity.SessionFailed
	default:
		return entity.SessionWorking
	}
}

// Stop terminates a session by explicit user action. Terminal statuses
// other than stopped reject the call; re-stopping a stopped session is
// a no-op.
func (s *Store) Stop(sessionID, message string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == entity.SessionStopped {
		return sess.Clone(), nil
	}
	if sess.Status.IsTerminal() {
		return nil, cerrors.ErrInvalidTransition(sess.ID, string(sess.Status), string(entity.SessionStopped))
	}

	now := s.now()
	sess.Status = entity.SessionStopped
	sess.UpdatedAt = now
	sess.Timeline = append(sess.Timeline, entity.TimelineEvent{
		Kind:    entity.TimelineStopped,
		Message: message,
		At:      now,
	})

	touched := s.updateWorkStatusesLocked(sess, entity.WorkStopped)

	s.persist(kindSessions, kindTasks)
	s.emit(events.SessionUpdated, sess.ProjectID, sess.Clone())
	for _, t := range touched {
		s.emitTaskUpdated(t)
	}
	s.notifySettledTasksLocked(sess)
	return sess.Clone(), nil
}

// Prompt delivers a human response to a session. It clears the
// needsInput flag and appends a timeline entry; it never changes the
// lifecycle status.
func (s *Store) Prompt(sessionID, message string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return nil, cerrors.ErrInvalidTransition(sess.ID, string(sess.Status), string(sess.Status))
	}

	now := s.now()
	sess.NeedsInput = entity.NeedsInput{}
	sess.UpdatedAt = now
	sess.Timeline = append(sess.Timeline, entity.TimelineEvent{
		Kind:    entity.TimelinePrompt,
		Message: message,
		At:      now,
	})

	s.persist(kindSessions)
	s.emit(events.SessionUpdated, sess.ProjectID, sess.Clone())
	return sess.Clone(), nil
}

// updateWorkStatusesLocked writes the session's execution state into
// taskSessionStatuses on every linked task and returns the touched
// tasks. Caller must hold the lock.
func (s *Store) updateWorkStatusesLocked(sess *entity.Session, ws entity.WorkStatus) []*entity.Task {
	var touched []*entity.Task
	for _, taskID := range sess.TaskIDs {
		t, ok := s.tasks[taskID]
		if !ok {
			continue
		}
		if t.TaskSessionStatuses == nil {
			t.TaskSessionStatuses = map[string]entity.WorkStatus{}
		}
		t.TaskSessionStatuses[sess.ID] = ws
		t.UpdatedAt = s.now()
		touched = append(touched, t)
	}
	return touched
}

// notifyTransition emits the best-effort notify event matching the
// report. Caller must hold the lock.
func (s *Store) notifyTransition(sess *entity.Session, rep Report) {
	payload := events.Notify{SessionID: sess.ID, TaskID: rep.TaskID, Message: rep.Message}
	switch rep.Kind {
	case ReportComplete:
		s.emit(events.NotifySessionCompleted, sess.ProjectID, payload)
	case ReportError:
		s.emit(events.NotifySessionFailed, sess.ProjectID, payload)
	case ReportNeedsInput:
		s.emit(events.NotifyNeedsInput, sess.ProjectID, payload)
	default:
		s.emit(events.NotifyProgress, sess.ProjectID, payload)
	}
}

// notifySettledTasksLocked surfaces, per linked task, the fact that
// all of its sessions are now terminal. A signal only — task status is
// never changed automatically. Caller must hold the lock.
func (s *Store) notifySettledTasksLocked(sess *entity.Session) {
	for _, taskID := range sess.TaskIDs {
		t, ok := s.tasks[taskID]
		if !ok {
			continue
		}
		settled := true
		for _, sessionID := range t.SessionIDs {
			linked, ok := s.sessions[sessionID]
			if !ok || !linked.Status.IsTerminal() {
				settled = false
				break
			}
		}
		if settled {
			s.emit(events.NotifyTaskSessionsSettled, t.ProjectID, events.Notify{TaskID: t.ID})
		}
	}
}
