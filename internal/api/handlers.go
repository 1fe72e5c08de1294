package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codesync/internal/models"
	"codesync/internal/relay"
	"codesync/internal/session"
)

type Handlers struct {
	log   *zap.SugaredLogger
	relay *relay.Relay
	hub   *session.Hub
}

func NewHandlers(log *zap.SugaredLogger, rly *relay.Relay, hub *session.Hub) *Handlers {
	return &Handlers{log: log, relay: rly, hub: hub}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	rooms, conns := h.hub.Counts()
	writeJSON(w, map[string]int{"rooms": rooms, "connections": conns})
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// RoomWS upgrades the connection and runs its event loop. One goroutine per
// connection; each inbound frame is handled to completion before the next
// read, so per-connection ordering matches send order.
func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := session.NewClient(uuid.New().String(), conn)
	h.relay.Connect(client)
	defer h.relay.Disconnecting(client)

	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case models.EventJoinIntent:
			var req models.JoinIntent
			marshal(frame.Data, &req)
			h.relay.Join(client, req)

		case models.EventCodeChange:
			var change models.CodeChange
			marshal(frame.Data, &change)
			h.relay.CodeChange(client, change)

		case models.EventSyncRequest:
			var req models.SyncRequest
			marshal(frame.Data, &req)
			h.relay.SyncCode(req)

		default:
			// No negative acks in this protocol; unknown frames are dropped.
			h.log.Debugw("unknown frame type", "socketId", client.ID, "type", frame.Type)
		}
	}
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
