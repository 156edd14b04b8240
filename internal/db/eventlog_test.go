package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func record(projectID, eventType string) *Record {
	return &Record{
		ProjectID: projectID,
		EventType: eventType,
		Data:      json.RawMessage(`{"k":"v"}`),
		Source:    "test",
		CreatedAt: time.Now(),
	}
}

func TestSaveAndListEvents(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.SaveEvents([]*Record{
		record("p1", "task:created"),
		record("p1", "task:updated"),
		record("p2", "session:spawn"),
	}))

	all, err := d.ListEvents("", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "session:spawn", all[0].EventType)
	assert.Equal(t, "task:created", all[2].EventType)
	assert.JSONEq(t, `{"k":"v"}`, string(all[0].Data))
}

func TestListEventsFilters(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.SaveEvents([]*Record{
		record("p1", "task:created"),
		record("p1", "notify:progress"),
		record("p2", "notify:session_completed"),
	}))

	byProject, err := d.ListEvents("p1", "", 10)
	require.NoError(t, err)
	assert.Len(t, byProject, 2)

	byPrefix, err := d.ListEvents("", "notify:", 10)
	require.NoError(t, err)
	assert.Len(t, byPrefix, 2)

	both, err := d.ListEvents("p1", "notify:", 10)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "notify:progress", both[0].EventType)
}

func TestListEventsLimit(t *testing.T) {
	d := newTestDB(t)

	var batch []*Record
	for i := 0; i < 20; i++ {
		batch = append(batch, record("p1", "task:updated"))
	}
	require.NoError(t, d.SaveEvents(batch))

	got, err := d.ListEvents("p1", "", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// Zero limit falls back to the default cap.
	got, err = d.ListEvents("p1", "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestSaveEventsEmptyBatch(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.SaveEvents(nil))

	n, err := d.CountEvents()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveEventsNilData(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.SaveEvents([]*Record{{
		ProjectID: "p1",
		EventType: "task:deleted",
		Source:    "test",
		CreatedAt: time.Now(),
	}}))

	got, err := d.ListEvents("p1", "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "null", string(got[0].Data))
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.Error(t, err)
}
