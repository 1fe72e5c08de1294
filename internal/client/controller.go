// Package client owns one outbound connection to a codesync server and
// bridges its events to a local editor buffer.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"codesync/internal/models"
)

// Origin tags where a buffer mutation came from. Only user-typed mutations
// are broadcast; remote-applied ones must never echo back out.
type Origin int

const (
	OriginUser Origin = iota
	OriginRemote
)

// Callbacks surface room events to the UI layer. All fields are optional.
type Callbacks struct {
	PeerJoined   func(username string)
	PeerLeft     func(username string)
	CodeApplied  func(code string)
	ConnectError func(err error)
}

// Config holds connection settings. Retry count and backoff are transport
// configuration, not protocol.
type Config struct {
	URL          string
	Username     string
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Controller runs the join handshake and keeps the local roster and buffer
// in step with the room.
type Controller struct {
	cfg Config
	cb  Callbacks

	mu     sync.Mutex
	conn   *websocket.Conn
	hook   func(models.WSFrame)
	roomID string
	selfID string
	buffer string
	roster []models.RoomMember
}

func New(cfg Config, cb Callbacks) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Controller{cfg: cfg, cb: cb}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Controller) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Connect dials the server, retrying up to MaxAttempts with a fixed backoff.
// When every attempt fails the terminal error goes to ConnectError and is
// returned; surfacing it (and navigating away) is the caller's problem.
func (c *Controller) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return c.connectFailed(ctx.Err())
			}
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.conn = conn
		c.selfID = ""
		c.mu.Unlock()
		go c.readLoop(conn)
		return nil
	}
	return c.connectFailed(lastErr)
}

func (c *Controller) connectFailed(cause error) error {
	err := fmt.Errorf("connect %s: %w", c.cfg.URL, cause)
	if c.cb.ConnectError != nil {
		c.cb.ConnectError(err)
	}
	return err
}

// Join announces this client to a room. Must follow a successful Connect.
func (c *Controller) Join(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
	c.send(models.WSFrame{Type: models.EventJoinIntent, Data: models.JoinIntent{
		RoomID:   roomID,
		Username: c.cfg.Username,
	}})
}

// Apply mutates the local buffer. User-typed changes that alter the content
// are broadcast as a full-state code-change; remote-applied ones are not,
// which is what breaks the echo loop.
func (c *Controller) Apply(code string, origin Origin) {
	c.mu.Lock()
	changed := code != c.buffer
	c.buffer = code
	roomID := c.roomID
	c.mu.Unlock()

	if origin == OriginUser && changed {
		c.send(models.WSFrame{Type: models.EventCodeChange, Data: models.CodeChange{
			RoomID: roomID,
			Code:   code,
		}})
	}
}

func (c *Controller) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

func (c *Controller) Roster() []models.RoomMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.RoomMember, len(c.roster))
	copy(out, c.roster)
	return out
}

// Leave closes the transport. Server-side cleanup rides on the disconnect,
// there is no leave message.
func (c *Controller) Leave() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Controller) readLoop(conn *websocket.Conn) {
	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			c.mu.Lock()
			// Leave clears c.conn first, so a mismatch means the close was
			// intentional and the drop must not be reported.
			unexpected := c.conn == conn
			if unexpected {
				c.conn = nil
			}
			c.mu.Unlock()
			if unexpected && c.cb.ConnectError != nil {
				c.cb.ConnectError(fmt.Errorf("connection lost: %w", err))
			}
			return
		}
		c.handle(frame)
	}
}

func (c *Controller) handle(frame models.WSFrame) {
	switch frame.Type {
	case models.EventJoined:
		var ev models.JoinedEvent
		unmarshal(frame.Data, &ev)
		c.onJoined(ev)

	case models.EventCodeChange:
		var payload models.CodeChange
		unmarshal(frame.Data, &payload)
		c.Apply(payload.Code, OriginRemote)
		if c.cb.CodeApplied != nil {
			c.cb.CodeApplied(payload.Code)
		}

	case models.EventDisconnected:
		var ev models.DisconnectedEvent
		unmarshal(frame.Data, &ev)
		c.onDisconnected(ev)
	}
}

// onJoined replaces the roster. When the event announces someone else, this
// client is an existing peer: it notifies the UI and pushes its buffer to the
// newcomer so the late joiner syncs from a peer, not from the server.
//
// Self-detection works on socket ids, not display names, since names are not
// unique. The first joined event after a connect is always the client's own
// (per-connection delivery is in order and fan-out for later joiners is
// emitted after ours), so its socket id is recorded as this client's id.
func (c *Controller) onJoined(ev models.JoinedEvent) {
	c.mu.Lock()
	c.roster = ev.Clients
	buffer := c.buffer
	if c.selfID == "" {
		c.selfID = ev.SocketID
	}
	self := ev.SocketID == c.selfID
	c.mu.Unlock()

	if self {
		return
	}
	if c.cb.PeerJoined != nil {
		c.cb.PeerJoined(ev.Username)
	}
	c.send(models.WSFrame{Type: models.EventSyncRequest, Data: models.SyncRequest{
		SocketID: ev.SocketID,
		Code:     buffer,
	}})
}

func (c *Controller) onDisconnected(ev models.DisconnectedEvent) {
	c.mu.Lock()
	kept := c.roster[:0]
	for _, m := range c.roster {
		if m.SocketID != ev.SocketID {
			kept = append(kept, m)
		}
	}
	c.roster = kept
	c.mu.Unlock()

	if c.cb.PeerLeft != nil {
		c.cb.PeerLeft(ev.Username)
	}
}

func (c *Controller) send(frame models.WSFrame) {
	c.mu.Lock()
	hook, conn := c.hook, c.conn
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
		return
	}
	if conn == nil {
		return
	}
	_ = conn.WriteJSON(frame)
}

func unmarshal(in any, out any) {
	// Data arrives as map[string]any after the envelope decode.
	b, _ := json.Marshal(in)
	_ = json.Unmarshal(b, out)
}
