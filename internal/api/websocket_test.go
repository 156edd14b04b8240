package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/events"
)

type wsTestEnv struct {
	server  *httptest.Server
	pub     *events.MemoryPublisher
	handler *WSHandler
}

func newWSEnv(t *testing.T) *wsTestEnv {
	t.Helper()
	pub := events.NewMemoryPublisher()
	h := NewWSHandler(pub, nil)
	ts := httptest.NewServer(h)
	t.Cleanup(func() {
		ts.Close()
		h.Close()
		pub.Close()
	})
	return &wsTestEnv{server: ts, pub: pub, handler: h}
}

func (e *wsTestEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg WSMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func TestWSSubscribeAndReceive(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "")

	send(t, conn, WSMessage{Type: "subscribe", ProjectID: "p1"})
	ack := readWS(t, conn)
	assert.Equal(t, "subscribed", ack["type"])
	assert.Equal(t, "p1", ack["project_id"])

	env.pub.Publish(events.New(events.TaskCreated, "p1", map[string]string{"id": "t1"}))

	msg := readWS(t, conn)
	assert.Equal(t, "event", msg["type"])
	assert.Equal(t, string(events.TaskCreated), msg["event"])
	assert.Equal(t, "p1", msg["project_id"])
}

func TestWSQueryParamSubscription(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "?project_id=p1")

	ack := readWS(t, conn)
	assert.Equal(t, "subscribed", ack["type"])

	env.pub.Publish(events.New(events.SessionUpdated, "p1", nil))
	assert.Equal(t, string(events.SessionUpdated), readWS(t, conn)["event"])
}

func TestWSGlobalSubscription(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "?project_id=*")
	readWS(t, conn) // ack

	env.pub.Publish(events.New(events.TaskCreated, "p1", nil))
	env.pub.Publish(events.New(events.TaskCreated, "p2", nil))

	assert.Equal(t, "p1", readWS(t, conn)["project_id"])
	assert.Equal(t, "p2", readWS(t, conn)["project_id"])
}

func TestWSSubscriptionScopeFilters(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "?project_id=p1")
	readWS(t, conn) // ack

	env.pub.Publish(events.New(events.TaskCreated, "p2", nil))
	env.pub.Publish(events.New(events.TaskCreated, "p1", nil))

	// Only the p1 event arrives.
	msg := readWS(t, conn)
	assert.Equal(t, "p1", msg["project_id"])
}

func TestWSOrderingPreserved(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "?project_id=p1")
	readWS(t, conn) // ack

	for i := 0; i < 20; i++ {
		env.pub.Publish(events.New(events.TaskUpdated, "p1", float64(i)))
	}
	for i := 0; i < 20; i++ {
		msg := readWS(t, conn)
		assert.Equal(t, float64(i), msg["data"])
	}
}

func TestWSResubscribeReplacesScope(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "")

	send(t, conn, WSMessage{Type: "subscribe", ProjectID: "p1"})
	readWS(t, conn) // ack
	send(t, conn, WSMessage{Type: "subscribe", ProjectID: "p2"})
	readWS(t, conn) // ack

	env.pub.Publish(events.New(events.TaskCreated, "p1", nil))
	env.pub.Publish(events.New(events.TaskCreated, "p2", nil))

	msg := readWS(t, conn)
	assert.Equal(t, "p2", msg["project_id"])
}

func TestWSApplicationPing(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "")

	send(t, conn, WSMessage{Type: "ping"})
	assert.Equal(t, "pong", readWS(t, conn)["type"])
}

func TestWSErrors(t *testing.T) {
	env := newWSEnv(t)
	conn := env.dial(t, "")

	send(t, conn, WSMessage{Type: "subscribe"})
	msg := readWS(t, conn)
	assert.Equal(t, "error", msg["type"])

	send(t, conn, WSMessage{Type: "bogus"})
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestWSConnectionCount(t *testing.T) {
	env := newWSEnv(t)
	require.Equal(t, 0, env.handler.ConnectionCount())

	conn := env.dial(t, "")
	require.Eventually(t, func() bool { return env.handler.ConnectionCount() == 1 },
		time.Second, 10*time.Millisecond)

	_ = conn.Close()
	require.Eventually(t, func() bool { return env.handler.ConnectionCount() == 0 },
		time.Second, 10*time.Millisecond)
}
