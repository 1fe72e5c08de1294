// Package relay fans room events out to room members. The server never
// interprets document content; it only forwards frames.
package relay

import (
	"go.uber.org/zap"

	"codesync/internal/models"
	"codesync/internal/registry"
	"codesync/internal/session"
)

type Relay struct {
	log *zap.SugaredLogger
	reg *registry.Registry
	hub *session.Hub
	bp  *Backplane
}

func New(log *zap.SugaredLogger, reg *registry.Registry, hub *session.Hub) *Relay {
	return &Relay{log: log, reg: reg, hub: hub}
}

// AttachBackplane enables cross-instance fan-out. Must be called before the
// server starts accepting connections.
func (r *Relay) AttachBackplane(bp *Backplane) { r.bp = bp }

// Connect makes a fresh connection addressable. The connection has no
// identity and no rooms until its first join-intent.
func (r *Relay) Connect(c *session.Client) {
	r.hub.Add(c)
	r.log.Infow("socket connected", "socketId", c.ID)
}

// Roster joins the room's member set against the identity map. Members that
// raced a disconnect and lost their identity entry still appear, with an
// empty username, rather than being dropped from the list.
func (r *Relay) Roster(roomID string) []models.RoomMember {
	members := r.hub.Members(roomID)
	out := make([]models.RoomMember, 0, len(members))
	for _, m := range members {
		name, _ := r.reg.Lookup(m.ID)
		out = append(out, models.RoomMember{SocketID: m.ID, Username: name})
	}
	return out
}

// Join registers the identity, adds the connection to the room and announces
// the newcomer to every member, the newcomer included, so all clients
// rebuild their roster from the same event.
func (r *Relay) Join(c *session.Client, req models.JoinIntent) {
	r.reg.Register(c.ID, req.Username)
	r.hub.Join(req.RoomID, c)

	frame := models.WSFrame{Type: models.EventJoined, Data: models.JoinedEvent{
		Clients:  r.Roster(req.RoomID),
		Username: req.Username,
		SocketID: c.ID,
	}}
	r.Deliver(req.RoomID, "", frame)
	r.publish(req.RoomID, "", frame)
	r.log.Infow("joined room", "socketId", c.ID, "roomId", req.RoomID, "username", req.Username)
}

// CodeChange rebroadcasts the full buffer to everyone in the room except the
// sender. The code is opaque to the server.
func (r *Relay) CodeChange(sender *session.Client, change models.CodeChange) {
	frame := models.WSFrame{Type: models.EventCodeChange, Data: models.CodeChange{Code: change.Code}}
	r.Deliver(change.RoomID, sender.ID, frame)
	r.publish(change.RoomID, sender.ID, frame)
}

// SyncCode pushes a buffer to exactly one connection, addressed by socket id.
// A target that already disconnected is a silent no-op.
func (r *Relay) SyncCode(req models.SyncRequest) {
	target, ok := r.hub.Get(req.SocketID)
	if !ok {
		return
	}
	target.Send(models.WSFrame{Type: models.EventCodeChange, Data: models.CodeChange{Code: req.Code}})
}

// Disconnecting notifies every room the connection is still in, then releases
// its memberships and identity. Rooms are enumerated before any teardown so
// the notifications see the full membership.
func (r *Relay) Disconnecting(c *session.Client) {
	rooms := r.hub.RoomsOf(c.ID)
	username, _ := r.reg.Lookup(c.ID)
	for _, roomID := range rooms {
		frame := models.WSFrame{Type: models.EventDisconnected, Data: models.DisconnectedEvent{
			SocketID: c.ID,
			Username: username,
		}}
		r.Deliver(roomID, c.ID, frame)
		r.publish(roomID, c.ID, frame)
	}
	r.hub.Remove(c.ID)
	r.reg.Remove(c.ID)
	r.log.Infow("socket disconnected", "socketId", c.ID, "rooms", len(rooms))
}

// Deliver sends a frame to every local member of a room except excludeID
// (empty string excludes nobody). Also the entry point for frames replayed
// from other instances via the backplane.
func (r *Relay) Deliver(roomID, excludeID string, frame models.WSFrame) {
	for _, m := range r.hub.Members(roomID) {
		if m.ID == excludeID {
			continue
		}
		m.Send(frame)
	}
}

func (r *Relay) publish(roomID, excludeID string, frame models.WSFrame) {
	if r.bp == nil {
		return
	}
	r.bp.Publish(roomID, excludeID, frame)
}
