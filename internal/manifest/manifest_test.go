package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/entity"
)

func fixture() (*entity.Project, []*entity.Task, *entity.TeamMember) {
	p := &entity.Project{ID: "p1", Name: "demo", WorkDir: "/tmp/demo"}
	tasks := []*entity.Task{
		{ID: "t1", Title: "wire the API", Description: "REST first", Priority: entity.PriorityHigh},
		{ID: "t2", Title: "write docs", Priority: entity.PriorityLow},
	}
	m := &entity.TeamMember{
		ID:       "m1",
		Name:     "worker",
		Mode:     entity.ModeExecute,
		Model:    "fast-model",
		SkillIDs: []string{"go"},
		Permissions: entity.CommandPermissions{
			Allow: []string{"go *", "git *"},
			Deny:  []string{"git push*"},
		},
		Memory: []entity.MemoryEntry{{Text: "prefers table tests"}},
	}
	return p, tasks, m
}

func TestBuildFreezesEntities(t *testing.T) {
	p, tasks, m := fixture()
	at := time.Now()

	directives := []string{"only touch the billing package"}
	man := Build("s1", p, tasks, m, directives, at)

	assert.Equal(t, "s1", man.SessionID)
	assert.Equal(t, "/tmp/demo", man.Project.WorkDir)
	require.Len(t, man.Tasks, 2)
	assert.Equal(t, "wire the API", man.Tasks[0].Title)
	assert.Equal(t, "high", man.Tasks[0].Priority)
	assert.Equal(t, "worker", man.Member.Name)
	assert.Equal(t, []string{"go *", "git *"}, man.Permissions.Allow)
	assert.Equal(t, []string{"prefers table tests"}, man.Memory)

	// Frozen: later edits to the inputs don't reach the manifest.
	m.Model = "other-model"
	m.Permissions.Allow[0] = "rm *"
	directives[0] = "changed"
	assert.Equal(t, "fast-model", man.Member.Model)
	assert.Equal(t, "go *", man.Permissions.Allow[0])
	assert.Equal(t, []string{"only touch the billing package"}, man.Directives)
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	p, tasks, m := fixture()
	path := Path(t.TempDir(), "s1")

	man := Build("s1", p, tasks, m, []string{"stay on main"}, time.Now())
	require.NoError(t, man.Write(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, man.SessionID, got.SessionID)
	assert.Equal(t, man.Project, got.Project)
	assert.Equal(t, man.Tasks, got.Tasks)
	assert.Equal(t, man.Member, got.Member)
	assert.Equal(t, man.Permissions, got.Permissions)
	assert.Equal(t, man.Directives, got.Directives)
}

func TestWriteOnce(t *testing.T) {
	p, tasks, m := fixture()
	path := Path(t.TempDir(), "s1")

	man := Build("s1", p, tasks, m, nil, time.Now())
	require.NoError(t, man.Write(path))

	err := man.Write(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPathLayout(t *testing.T) {
	got := Path("/state", "abc")
	assert.Equal(t, filepath.Join("/state", "manifests", "abc.yaml"), got)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
