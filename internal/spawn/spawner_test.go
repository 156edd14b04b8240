package spawn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/entity"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
	"github.com/randalmurphal/conductor/internal/manifest"
	"github.com/randalmurphal/conductor/internal/store"
)

// fakeRunner records hand-offs and optionally fails them.
type fakeRunner struct {
	mu      sync.Mutex
	started []*manifest.Manifest
	err     error
}

func (r *fakeRunner) Start(ctx context.Context, m *manifest.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, m)
	return r.err
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func setup(t *testing.T, runner Runner) (*store.Store, *Spawner, *entity.Project, *entity.Task) {
	t.Helper()
	st := store.NewInMemory(events.NewNopPublisher(), nil)
	p, err := st.CreateProject(store.NewProject{Name: "demo", WorkDir: t.TempDir()})
	require.NoError(t, err)
	task, err := st.CreateTask(store.NewTask{ProjectID: p.ID, Title: "do the work"})
	require.NoError(t, err)
	return st, New(st, runner, t.TempDir(), nil), p, task
}

func TestSpawnCreatesSessionWithSnapshotAndManifest(t *testing.T) {
	runner := &fakeRunner{}
	st, sp, p, task := setup(t, runner)

	sess, err := sp.Spawn(context.Background(), Request{ProjectID: p.ID, TaskIDs: []string{task.ID}})
	require.NoError(t, err)

	assert.Equal(t, entity.SessionSpawning, sess.Status)
	assert.Equal(t, []string{task.ID}, sess.TaskIDs)
	require.Len(t, sess.TeamMemberSnapshots, 1)
	assert.Equal(t, store.DefaultMemberName, sess.TeamMemberSnapshots[0].Name)
	require.NotEmpty(t, sess.ManifestPath)

	man, err := manifest.Load(sess.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, man.SessionID)
	assert.Equal(t, p.WorkDir, man.Project.WorkDir)
	require.Len(t, man.Tasks, 1)
	assert.Equal(t, "do the work", man.Tasks[0].Title)

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 10*time.Millisecond)

	// Hand-off succeeded, so the session is still alive.
	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Status.IsTerminal())
}

func TestSpawnFreezesDirectives(t *testing.T) {
	runner := &fakeRunner{}
	_, sp, p, task := setup(t, runner)

	sess, err := sp.Spawn(context.Background(), Request{
		ProjectID:  p.ID,
		TaskIDs:    []string{task.ID},
		Directives: []string{"stay inside internal/billing", "no schema changes"},
	})
	require.NoError(t, err)

	man, err := manifest.Load(sess.ManifestPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"stay inside internal/billing", "no schema changes"}, man.Directives)
}

// ctxRunner records the context state observed at hand-off time.
type ctxRunner struct {
	mu      sync.Mutex
	ctxErrs []error
}

func (r *ctxRunner) Start(ctx context.Context, m *manifest.Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

func (r *ctxRunner) errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.ctxErrs...)
}

func TestSpawnHandOffSurvivesCallerCancel(t *testing.T) {
	runner := &ctxRunner{}
	st, sp, p, task := setup(t, runner)

	// An HTTP request context is canceled as soon as the handler
	// returns; the hand-off must not inherit that cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	sess, err := sp.Spawn(ctx, Request{ProjectID: p.ID, TaskIDs: []string{task.ID}})
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return len(runner.errs()) == 1 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, runner.errs()[0], "hand-off saw a live context")

	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionSpawning, got.Status)
}

func TestSpawnHandOffFailureFailsSession(t *testing.T) {
	runner := &fakeRunner{err: errors.New("agent binary not found")}
	st, sp, p, task := setup(t, runner)

	sess, err := sp.Spawn(context.Background(), Request{ProjectID: p.ID, TaskIDs: []string{task.ID}})
	require.NoError(t, err, "spawn itself succeeds; the hand-off fails later")

	require.Eventually(t, func() bool {
		got, err := st.GetSession(sess.ID)
		return err == nil && got.Status == entity.SessionFailed
	}, time.Second, 10*time.Millisecond)

	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.Timeline)
	assert.Contains(t, got.Timeline[len(got.Timeline)-1].Message, "spawn failed")

	gotTask, err := st.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.WorkFailed, gotTask.TaskSessionStatuses[sess.ID])
}

func TestSpawnValidatesBeforeSideEffects(t *testing.T) {
	runner := &fakeRunner{}
	st, sp, p, task := setup(t, runner)

	// Unknown task: nothing spawned.
	_, err := sp.Spawn(context.Background(), Request{ProjectID: p.ID, TaskIDs: []string{"missing"}})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeTaskNotFound, cerrors.AsError(err).Code)

	// No tasks at all.
	_, err = sp.Spawn(context.Background(), Request{ProjectID: p.ID})
	require.Error(t, err)

	// Unknown project.
	_, err = sp.Spawn(context.Background(), Request{ProjectID: "missing", TaskIDs: []string{task.ID}})
	require.Error(t, err)

	assert.Empty(t, st.ListSessions(""))
	assert.Zero(t, runner.count())
}

func TestSpawnRejectsArchivedMember(t *testing.T) {
	runner := &fakeRunner{}
	st, sp, p, task := setup(t, runner)

	m, err := st.CreateMember(store.NewMember{ProjectID: p.ID, Name: "reviewer"})
	require.NoError(t, err)
	_, err = st.ArchiveMember(m.ID)
	require.NoError(t, err)

	_, err = sp.Spawn(context.Background(), Request{ProjectID: p.ID, TaskIDs: []string{task.ID}, MemberID: m.ID})
	require.Error(t, err)
	assert.Equal(t, cerrors.CodeMemberArchived, cerrors.AsError(err).Code)
	assert.Empty(t, st.ListSessions(""))
}

func TestSpawnWithExplicitMember(t *testing.T) {
	runner := &fakeRunner{}
	st, sp, p, task := setup(t, runner)

	m, err := st.CreateMember(store.NewMember{
		ProjectID: p.ID,
		Name:      "architect",
		Mode:      entity.ModeCoordinate,
	})
	require.NoError(t, err)

	sess, err := sp.Spawn(context.Background(), Request{ProjectID: p.ID, TaskIDs: []string{task.ID}, MemberID: m.ID})
	require.NoError(t, err)
	require.Len(t, sess.TeamMemberSnapshots, 1)
	assert.Equal(t, "architect", sess.TeamMemberSnapshots[0].Name)
	assert.Equal(t, entity.ModeCoordinate, sess.TeamMemberSnapshots[0].Mode)
}
