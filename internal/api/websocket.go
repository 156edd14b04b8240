package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/conductor/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// WSMessage is one client → server WebSocket message.
type WSMessage struct {
	Type      string `json:"type"` // subscribe, unsubscribe, ping
	ProjectID string `json:"project_id,omitempty"`
}

// WSHandler manages WebSocket connections. Each connection subscribes
// to one project's events (or "*" for all) and receives them as an
// ordered stream; no filtering happens beyond the subscription scope.
type WSHandler struct {
	upgrader    websocket.Upgrader
	publisher   events.Publisher
	connections map[*websocket.Conn]*wsConnection
	mu          sync.RWMutex
	logger      *slog.Logger
}

// wsConnection tracks a single WebSocket connection.
type wsConnection struct {
	conn         *websocket.Conn
	mu           sync.Mutex // protects projectID, eventChan, unsubscribed
	projectID    string
	eventChan    <-chan events.Event
	send         chan []byte
	done         chan struct{}
	unsubscribed bool
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(pub events.Publisher, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Desktop clients connect from file:// and app origins.
				return true
			},
		},
		publisher:   pub,
		connections: make(map[*websocket.Conn]*wsConnection),
		logger:      logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	wsConn := &wsConnection{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.connections[conn] = wsConn
	h.mu.Unlock()

	go h.readPump(wsConn)
	go h.writePump(wsConn)

	// ?project_id= subscribes immediately, saving one round trip.
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		h.handleSubscribe(wsConn, projectID)
	}
}

// readPump reads messages from the WebSocket connection.
func (h *WSHandler) readPump(c *wsConnection) {
	defer func() {
		h.closeConnection(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("websocket read error", "error", err)
			}
			return
		}

		h.handleMessage(c, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (h *WSHandler) writePump(c *wsConnection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so every frame is valid JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
			n := len(c.send)
			for i := 0; i < n; i++ {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming WebSocket messages.
func (h *WSHandler) handleMessage(c *wsConnection, data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, "invalid message format")
		return
	}

	switch msg.Type {
	case "subscribe":
		h.handleSubscribe(c, msg.ProjectID)
	case "unsubscribe":
		h.handleUnsubscribe(c)
	case "ping":
		h.sendJSON(c, map[string]any{"type": "pong"})
	default:
		h.sendError(c, "unknown message type: "+msg.Type)
	}
}

// handleSubscribe subscribes the connection to a project's events.
// Use projectID "*" to receive events for all projects.
func (h *WSHandler) handleSubscribe(c *wsConnection, projectID string) {
	if projectID == "" {
		h.sendError(c, "project_id required for subscribe (use \"*\" for all projects)")
		return
	}

	// Replace any previous subscription.
	h.handleUnsubscribe(c)

	c.mu.Lock()
	c.projectID = projectID
	c.eventChan = h.publisher.Subscribe(projectID)
	c.unsubscribed = false
	c.mu.Unlock()

	go h.forwardEvents(c)

	h.sendJSON(c, map[string]any{
		"type":       "subscribed",
		"project_id": projectID,
	})
	h.logger.Debug("websocket subscribed", "project_id", projectID)
}

// handleUnsubscribe unsubscribes the connection from its current project.
func (h *WSHandler) handleUnsubscribe(c *wsConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.projectID != "" && c.eventChan != nil && !c.unsubscribed {
		h.publisher.Unsubscribe(c.projectID, c.eventChan)
		c.unsubscribed = true
		c.projectID = ""
		c.eventChan = nil
	}
}

// forwardEvents forwards events from the publisher to the WebSocket.
// The publisher channel is already ordered per subscription, so the
// client sees events in mutation order.
func (h *WSHandler) forwardEvents(c *wsConnection) {
	c.mu.Lock()
	eventChan := c.eventChan
	c.mu.Unlock()

	if eventChan == nil {
		return
	}

	for {
		select {
		case <-c.done:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}

			c.mu.Lock()
			unsubscribed := c.unsubscribed
			c.mu.Unlock()
			if unsubscribed {
				return
			}

			h.sendJSON(c, map[string]any{
				"type":       "event",
				"event":      string(event.Type),
				"project_id": event.ProjectID,
				"data":       event.Data,
				"time":       event.Time,
			})
		}
	}
}

// closeConnection cleans up a WebSocket connection.
func (h *WSHandler) closeConnection(c *wsConnection) {
	h.mu.Lock()
	_, exists := h.connections[c.conn]
	if !exists {
		h.mu.Unlock()
		return
	}
	delete(h.connections, c.conn)
	h.mu.Unlock()

	h.handleUnsubscribe(c)

	select {
	case <-c.done:
	default:
		close(c.done)
	}

	_ = c.conn.Close()
}

// sendJSON sends a JSON message to a connection. Never blocks: when
// the send buffer is full the message is dropped and the client is
// expected to resync, matching the bus's best-effort delivery.
func (h *WSHandler) sendJSON(c *wsConnection, data any) {
	msg, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal JSON", "error", err)
		return
	}

	select {
	case c.send <- msg:
	default:
		h.logger.Warn("websocket send buffer full, dropping message")
	}
}

// sendError sends an error message to a connection.
func (h *WSHandler) sendError(c *wsConnection, message string) {
	h.sendJSON(c, map[string]any{
		"type":  "error",
		"error": message,
	})
}

// ConnectionCount returns the number of active connections.
func (h *WSHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close closes all connections.
func (h *WSHandler) Close() {
	h.mu.Lock()
	conns := make([]*wsConnection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.closeConnection(c)
	}
}
