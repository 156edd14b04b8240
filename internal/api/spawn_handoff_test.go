package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/events"
	"github.com/randalmurphal/conductor/internal/spawn"
	"github.com/randalmurphal/conductor/internal/store"
)

// The spawn handler's hand-off runs after the HTTP response is written,
// when net/http has already canceled the request context. The agent
// process must still start.
func TestSpawnOverHTTPStartsAgentProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sh")
	}

	workDir := t.TempDir()
	marker := filepath.Join(workDir, "agent-started")

	pub := events.NewMemoryPublisher()
	st := store.NewInMemory(pub, nil)
	runner := spawn.NewCommandRunner("/bin/sh", []string{"-c", "touch agent-started"}, nil)
	srv := New(Config{
		Store:     st,
		Publisher: pub,
		Spawner:   spawn.New(st, runner, t.TempDir(), nil),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		pub.Close()
	})

	p, err := st.CreateProject(store.NewProject{Name: "demo", WorkDir: workDir})
	require.NoError(t, err)
	task, err := st.CreateTask(store.NewTask{ProjectID: p.ID, Title: "touch a file"})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"project_id": p.ID,
		"task_ids":   []string{task.ID},
	})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess entity.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond, "agent process never ran")

	got, err := st.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionSpawning, got.Status, "hand-off must not fail the session")
}
