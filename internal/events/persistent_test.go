package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/db"
)

func newTestLog(t *testing.T) *db.DB {
	t.Helper()
	log, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestPersistentPublisherDeliversRealtime(t *testing.T) {
	p := NewPersistentPublisher(newTestLog(t), "test", nil)
	defer p.Close()

	ch := p.Subscribe("proj-1")
	p.Publish(New(TaskCreated, "proj-1", map[string]string{"id": "t1"}))

	got := recv(t, ch)
	assert.Equal(t, TaskCreated, got.Type)
}

func TestPersistentPublisherFlushesOnClose(t *testing.T) {
	log := newTestLog(t)
	p := NewPersistentPublisher(log, "test", nil)

	p.Publish(New(TaskCreated, "proj-1", Deleted{ID: "t1"}))
	p.Publish(New(SessionUpdated, "proj-2", nil))
	p.Close()

	n, err := log.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	records, err := log.ListEvents("proj-1", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, string(TaskCreated), records[0].EventType)
	assert.Equal(t, "test", records[0].Source)
	assert.JSONEq(t, `{"id":"t1"}`, string(records[0].Data))
}

func TestPersistentPublisherFlushesOnThreshold(t *testing.T) {
	log := newTestLog(t)
	p := NewPersistentPublisher(log, "test", nil)
	defer p.Close()

	for i := 0; i < bufferSizeThreshold; i++ {
		p.Publish(New(TaskUpdated, "proj-1", i))
	}

	// The threshold flush is synchronous with the last Publish.
	n, err := log.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(bufferSizeThreshold), n)
}

func TestPersistentPublisherNilLog(t *testing.T) {
	p := NewPersistentPublisher(nil, "test", nil)
	defer p.Close()

	ch := p.Subscribe("proj-1")
	p.Publish(New(TaskCreated, "proj-1", nil))
	assert.Equal(t, TaskCreated, recv(t, ch).Type)
}

func TestPersistentPublisherCloseIdempotent(t *testing.T) {
	p := NewPersistentPublisher(newTestLog(t), "test", nil)
	p.Close()
	p.Close()
}

func TestPersistentPublisherUnserializablePayload(t *testing.T) {
	log := newTestLog(t)
	p := NewPersistentPublisher(log, "test", nil)

	p.Publish(New(TaskCreated, "proj-1", make(chan int)))
	p.Close()

	records, err := log.ListEvents("proj-1", "", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "null", string(records[0].Data))
}

func TestPersistentPublisherPeriodicFlush(t *testing.T) {
	log := newTestLog(t)
	p := NewPersistentPublisher(log, "test", nil)
	defer p.Close()

	p.Publish(New(TaskCreated, "proj-1", nil))

	require.Eventually(t, func() bool {
		n, err := log.CountEvents()
		return err == nil && n == 1
	}, 10*time.Second, 100*time.Millisecond)
}
