// Package spawn implements the session spawn flow: validate the
// request, freeze a manifest, create the session in spawning status,
// then hand off to the execution environment asynchronously.
package spawn

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/manifest"
	"github.com/randalmurphal/conductor/internal/store"
)

// Request describes a spawn.
type Request struct {
	ProjectID string
	TaskIDs   []string
	// MemberID selects the team member configuration; empty picks the
	// project's builtin member.
	MemberID string
	// ParentSessionID and TeamSessionID relate the new session to a
	// coordinating session, when one exists.
	ParentSessionID string
	TeamSessionID   string
	// Directives are coordinator scope instructions frozen into the
	// manifest alongside the task and member snapshots.
	Directives []string
}

// Spawner runs the spawn flow against a store and a runner.
type Spawner struct {
	store    *store.Store
	runner   Runner
	stateDir string
	logger   *slog.Logger
}

// New creates a Spawner. stateDir is where manifests are written.
func New(st *store.Store, runner Runner, stateDir string, logger *slog.Logger) *Spawner {
	if runner == nil {
		runner = NopRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Spawner{store: st, runner: runner, stateDir: stateDir, logger: logger}
}

// Spawn validates the request, writes the manifest, and creates the
// session. The session is returned in spawning status; the hand-off to
// the runner happens asynchronously, and a failed hand-off moves the
// session to failed through the normal report path.
func (s *Spawner) Spawn(ctx context.Context, req Request) (*entity.Session, error) {
	p, err := s.store.GetProject(req.ProjectID)
	if err != nil {
		return nil, err
	}

	var tasks []*entity.Task
	for _, taskID := range req.TaskIDs {
		t, err := s.store.GetTask(taskID)
		if err != nil {
			return nil, err
		}
		if t.ProjectID != req.ProjectID {
			return nil, cerrors.ErrCrossProject("task " + taskID + " belongs to a different project")
		}
		tasks = append(tasks, t)
	}
	if len(tasks) == 0 {
		return nil, cerrors.ErrValidation("at least one task is required")
	}

	member, err := s.resolveMember(req)
	if err != nil {
		return nil, err
	}
	if member.Status == entity.MemberArchived {
		return nil, cerrors.ErrMemberArchived(member.ID)
	}

	sessionID := uuid.NewString()
	man := manifest.Build(sessionID, p, tasks, member, req.Directives, s.store.Now())
	if s.stateDir != "" {
		if err := man.Write(manifest.Path(s.stateDir, sessionID)); err != nil {
			return nil, cerrors.ErrSpawn(err)
		}
	}

	sess, err := s.store.CreateSession(store.NewSession{
		ID:              sessionID,
		ProjectID:       req.ProjectID,
		TaskIDs:         req.TaskIDs,
		Snapshots:       []entity.TeamMemberSnapshot{member.SnapshotNow(man.CreatedAt)},
		ParentSessionID: req.ParentSessionID,
		TeamSessionID:   req.TeamSessionID,
		ManifestPath:    man.Path,
	})
	if err != nil {
		if man.Path != "" {
			_ = os.Remove(man.Path)
		}
		return nil, err
	}

	// The hand-off outlives the spawn call: an HTTP request context is
	// canceled the moment the handler returns, which would kill the
	// agent process at start.
	go s.handOff(context.WithoutCancel(ctx), sess.ID, man)
	return sess, nil
}

// handOff delivers the session to the runner. Failure is reported as a
// session error so the state machine, events, and task execution views
// all see it the same way an agent-reported failure looks.
func (s *Spawner) handOff(ctx context.Context, sessionID string, man *manifest.Manifest) {
	if err := s.runner.Start(ctx, man); err != nil {
		s.logger.Error("spawn hand-off failed", "session_id", sessionID, "error", err)
		if _, rerr := s.store.ApplyReport(store.Report{
			SessionID: sessionID,
			Kind:      store.ReportError,
			Message:   "spawn failed: " + err.Error(),
		}); rerr != nil {
			s.logger.Error("failed to record spawn failure", "session_id", sessionID, "error", rerr)
		}
	}
}

// resolveMember picks the requested member, or the project's builtin
// member when the request names none.
func (s *Spawner) resolveMember(req Request) (*entity.TeamMember, error) {
	if req.MemberID != "" {
		return s.store.GetMember(req.MemberID)
	}
	for _, m := range s.store.ListMembers(req.ProjectID) {
		if m.Builtin {
			return m, nil
		}
	}
	return nil, cerrors.ErrValidation("project has no builtin member and none was specified")
}
