package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/events"
)

func TestPersistAndReload(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, events.NewNopPublisher(), nil)
	require.NoError(t, err)

	p, err := s.CreateProject(NewProject{Name: "demo", WorkDir: "/tmp/demo"})
	require.NoError(t, err)
	task, err := s.CreateTask(NewTask{ProjectID: p.ID, Title: "wire the API"})
	require.NoError(t, err)
	sess, err := s.CreateSession(NewSession{ProjectID: p.ID, TaskIDs: []string{task.ID}})
	require.NoError(t, err)
	_, err = s.ApplyReport(Report{SessionID: sess.ID, Kind: ReportProgress, Message: "halfway"})
	require.NoError(t, err)

	// Fresh store over the same directory sees the same world.
	reloaded, err := Open(dir, events.NewNopPublisher(), nil)
	require.NoError(t, err)

	gotTask, err := reloaded.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "wire the API", gotTask.Title)
	assert.Equal(t, []string{sess.ID}, gotTask.SessionIDs)
	assert.Equal(t, entity.WorkWorking, gotTask.TaskSessionStatuses[sess.ID])

	gotSess, err := reloaded.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionWorking, gotSess.Status)
	assert.Equal(t, []string{task.ID}, gotSess.TaskIDs)
	require.Len(t, gotSess.Timeline, 1)
	assert.Equal(t, "halfway", gotSess.Timeline[0].Message)

	members := reloaded.ListMembers(p.ID)
	require.Len(t, members, 1)
	assert.True(t, members[0].Builtin)
}

func TestOpenWithMissingFiles(t *testing.T) {
	s, err := Open(t.TempDir(), events.NewNopPublisher(), nil)
	require.NoError(t, err)
	assert.Empty(t, s.ListProjects())
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, tasksFile), []byte("{not json"), 0o644))

	_, err := Open(dir, events.NewNopPublisher(), nil)
	require.Error(t, err)
}

func TestInMemoryStoreWritesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewInMemory(events.NewNopPublisher(), nil)
	_, err := s.CreateProject(NewProject{Name: "demo", WorkDir: dir})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
