package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	backoffInitial = time.Second
	backoffMax     = 30 * time.Second
)

// Realtime maintains the WebSocket subscription feeding the cache.
// On every (re)connect it resyncs the cache over REST first, so events
// missed while disconnected are repaired before new ones apply.
type Realtime struct {
	client    *Client
	projectID string // subscription scope; "*" for all projects
	logger    *slog.Logger

	// OnChange, when set, is called after every applied event.
	OnChange func(WireEvent)
}

// NewRealtime creates a realtime subscriber for the client. projectID
// scopes the subscription; use "*" to follow every project.
func NewRealtime(c *Client, projectID string, logger *slog.Logger) *Realtime {
	if logger == nil {
		logger = slog.Default()
	}
	if projectID == "" {
		projectID = "*"
	}
	return &Realtime{client: c, projectID: projectID, logger: logger}
}

// Run connects and consumes events until the context is canceled.
// Connection failures retry with capped exponential backoff; an
// established connection resets the backoff.
func (r *Realtime) Run(ctx context.Context) error {
	backoff := backoffInitial
	for {
		established, err := r.connectAndConsume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("realtime connection lost", "error", err, "retry_in", backoff)
		}
		if established {
			backoff = backoffInitial
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// connectAndConsume performs one connection lifetime: resync, dial,
// subscribe, then forward events into the cache until the connection
// drops. established reports whether the subscription was delivered,
// which resets the reconnect backoff.
func (r *Realtime) connectAndConsume(ctx context.Context) (established bool, _ error) {
	// Resync first: anything that happened while we were away.
	if err := r.client.Resync(ctx); err != nil {
		return false, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.wsURL(), nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage
	// unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sub, err := json.Marshal(map[string]string{"type": "subscribe", "project_id": r.projectID})
	if err != nil {
		return false, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return false, err
	}
	r.logger.Info("realtime connected", "project_id", r.projectID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}

		var msg WireEvent
		if err := json.Unmarshal(data, &msg); err != nil {
			r.logger.Warn("dropping malformed realtime message", "error", err)
			continue
		}
		if msg.Type != "event" {
			continue
		}

		r.client.Cache().ApplyEvent(msg)
		if r.OnChange != nil {
			r.OnChange(msg)
		}
	}
}

// wsURL derives the WebSocket endpoint from the REST base URL. The
// subscription itself is sent as a message after the dial.
func (r *Realtime) wsURL() string {
	base := r.client.BaseURL()
	base = strings.Replace(base, "http://", "ws://", 1)
	base = strings.Replace(base, "https://", "wss://", 1)
	return base + "/ws"
}
