package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/api"
	"github.com/randalmurphal/conductor/internal/db"
	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/events"
	"github.com/randalmurphal/conductor/internal/spawn"
	"github.com/randalmurphal/conductor/internal/store"
)

// newTestClient spins up a real API server backed by an in-memory store
// and returns a client pointed at it.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	pub := events.NewMemoryPublisher()
	st := store.NewInMemory(pub, nil)
	log, err := db.OpenInMemory()
	require.NoError(t, err)

	srv := api.New(api.Config{
		Store:     st,
		Publisher: pub,
		Spawner:   spawn.New(st, spawn.NopRunner{}, t.TempDir(), nil),
		EventLog:  log,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		pub.Close()
		_ = log.Close()
	})
	return New(ts.URL)
}

func TestClientHealth(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Health(context.Background()))
}

func TestClientProjectRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	// The create merged into the cache.
	assert.Equal(t, "demo", c.Cache().Project(p.ID).Name)

	projects, err := c.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)

	require.NoError(t, c.DeleteProject(ctx, p.ID))
	projects, err = c.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestClientTaskFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)

	task, err := c.CreateTask(ctx, map[string]any{
		"project_id": p.ID,
		"title":      "build the thing",
	})
	require.NoError(t, err)
	assert.Equal(t, "build the thing", task.Title)

	updated, err := c.UpdateTask(ctx, task.ID, map[string]any{"title": "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "renamed", c.Cache().Task(task.ID).Title)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	tasks, err := c.ListTasks(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestClientSpawnAndReport(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	task, err := c.CreateTask(ctx, map[string]any{"project_id": p.ID, "title": "work"})
	require.NoError(t, err)

	sess, err := c.Spawn(ctx, p.ID, []string{task.ID}, "")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	assert.True(t, sess.HasTask(task.ID))

	_, err = c.Report(ctx, sess.ID, map[string]any{
		"kind": "progress", "task_id": task.ID, "message": "halfway",
	})
	require.NoError(t, err)

	done, err := c.Report(ctx, sess.ID, map[string]any{
		"kind": "complete", "task_id": task.ID, "message": "done",
	})
	require.NoError(t, err)
	assert.Equal(t, done.Status, c.Cache().Session(sess.ID).Status)
}

func TestClientLinkUnlink(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	ta, err := c.CreateTask(ctx, map[string]any{"project_id": p.ID, "title": "a"})
	require.NoError(t, err)
	tb, err := c.CreateTask(ctx, map[string]any{"project_id": p.ID, "title": "b"})
	require.NoError(t, err)

	sess, err := c.Spawn(ctx, p.ID, []string{ta.ID}, "")
	require.NoError(t, err)

	require.NoError(t, c.LinkTask(ctx, tb.ID, sess.ID))
	sessions, err := c.ListSessions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].HasTask(tb.ID))

	require.NoError(t, c.UnlinkTask(ctx, tb.ID, sess.ID))
	sessions, err = c.ListSessions(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, sessions[0].HasTask(tb.ID))
}

func TestClientReconstructsServerErrors(t *testing.T) {
	c := newTestClient(t)

	_, err := c.CreateTask(context.Background(), map[string]any{
		"project_id": "nope", "title": "orphan",
	})
	require.Error(t, err)

	var cerr *cerrors.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, cerrors.CodeProjectNotFound, cerr.Code)
	assert.NotEmpty(t, cerr.Fix)
}

func TestClientResync(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	kept, err := c.CreateTask(ctx, map[string]any{"project_id": p.ID, "title": "keep"})
	require.NoError(t, err)

	// Pollute the cache with an entity the server never had.
	c.Cache().MergeTask(task("ghost", time.Now(), "never persisted"))

	require.NoError(t, c.Resync(ctx))
	assert.Nil(t, c.Cache().Task("ghost"))
	assert.NotNil(t, c.Cache().Task(kept.ID))
	assert.NotNil(t, c.Cache().Project(p.ID))
	// Resync also pulls the builtin worker member.
	members, err := c.ListMembers(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, members)
}

func TestRealtimeAppliesEvents(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := NewRealtime(c, "*", nil)
	changes := make(chan WireEvent, 64)
	rt.OnChange = func(e WireEvent) { changes <- e }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rt.Run(ctx)
	}()

	// Wait for the initial connection before mutating, so the event is
	// not lost between resync and subscribe.
	require.Eventually(t, func() bool {
		return c.Health(ctx) == nil
	}, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	p, err := c.CreateProject(ctx, "demo", "/tmp/demo")
	require.NoError(t, err)
	task, err := c.CreateTask(ctx, map[string]any{"project_id": p.ID, "title": "watched"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-changes:
			if e.Event == string(events.TaskCreated) {
				assert.Equal(t, p.ID, e.ProjectID)
				assert.NotNil(t, c.Cache().Task(task.ID))
				cancel()
				<-done
				return
			}
		case <-deadline:
			t.Fatal("task:created never arrived over the websocket")
		}
	}
}
