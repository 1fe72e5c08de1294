package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codesync/internal/models"
	"codesync/internal/registry"
	"codesync/internal/relay"
	"codesync/internal/session"
)

func newWSServer(t *testing.T) (*httptest.Server, *session.Hub) {
	t.Helper()
	log := zap.NewNop().Sugar()
	hub := session.NewHub()
	rly := relay.New(log, registry.New(), hub)
	h := NewHandlers(log, rly, hub)

	server := httptest.NewServer(http.HandlerFunc(h.RoomWS))
	t.Cleanup(server.Close)
	return server, hub
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame models.WSFrame) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readFrame blocks for one frame and decodes its data into out (which may be
// nil when only the type matters).
func readFrame(t *testing.T, conn *websocket.Conn, wantType string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame models.WSFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != wantType {
		t.Fatalf("expected %q frame, got %q", wantType, frame.Type)
	}
	if out != nil {
		b, _ := json.Marshal(frame.Data)
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decode %q payload: %v", wantType, err)
		}
	}
}

func joinFrame(roomID, username string) models.WSFrame {
	return models.WSFrame{Type: models.EventJoinIntent, Data: models.JoinIntent{
		RoomID:   roomID,
		Username: username,
	}}
}

func TestJoinHandshakeAndRosterFanOut(t *testing.T) {
	server, _ := newWSServer(t)

	alice := dial(t, server)
	sendFrame(t, alice, joinFrame("R1", "alice"))

	var first models.JoinedEvent
	readFrame(t, alice, models.EventJoined, &first)
	if first.Username != "alice" || len(first.Clients) != 1 {
		t.Fatalf("unexpected first joined event: %#v", first)
	}
	aliceID := first.SocketID

	bob := dial(t, server)
	sendFrame(t, bob, joinFrame("R1", "bob"))

	var toAlice, toBob models.JoinedEvent
	readFrame(t, alice, models.EventJoined, &toAlice)
	readFrame(t, bob, models.EventJoined, &toBob)

	for _, ev := range []models.JoinedEvent{toAlice, toBob} {
		if ev.Username != "bob" || len(ev.Clients) != 2 {
			t.Fatalf("unexpected joined event: %#v", ev)
		}
	}
	if toAlice.SocketID == aliceID {
		t.Fatalf("newcomer id must differ from alice's")
	}
}

func TestCodeChangeSkipsSenderAndSyncIsDirect(t *testing.T) {
	server, _ := newWSServer(t)

	alice := dial(t, server)
	sendFrame(t, alice, joinFrame("R1", "alice"))
	var ev models.JoinedEvent
	readFrame(t, alice, models.EventJoined, &ev)
	aliceID := ev.SocketID

	bob := dial(t, server)
	sendFrame(t, bob, joinFrame("R1", "bob"))
	readFrame(t, alice, models.EventJoined, nil)
	readFrame(t, bob, models.EventJoined, nil)

	sendFrame(t, alice, models.WSFrame{Type: models.EventCodeChange, Data: models.CodeChange{
		RoomID: "R1",
		Code:   "let x=1",
	}})

	var change models.CodeChange
	readFrame(t, bob, models.EventCodeChange, &change)
	if change.Code != "let x=1" {
		t.Fatalf("unexpected code: %q", change.Code)
	}

	// direct sync from bob back to alice; alice must not have seen her own
	// broadcast, so the very next frame she reads is the sync
	sendFrame(t, bob, models.WSFrame{Type: models.EventSyncRequest, Data: models.SyncRequest{
		SocketID: aliceID,
		Code:     "synced",
	}})
	var sync models.CodeChange
	readFrame(t, alice, models.EventCodeChange, &sync)
	if sync.Code != "synced" {
		t.Fatalf("unexpected sync payload: %q", sync.Code)
	}
}

func TestDisconnectNotifiesPeersAndReleasesState(t *testing.T) {
	server, hub := newWSServer(t)

	alice := dial(t, server)
	sendFrame(t, alice, joinFrame("R1", "alice"))
	readFrame(t, alice, models.EventJoined, nil)

	bob := dial(t, server)
	sendFrame(t, bob, joinFrame("R1", "bob"))
	var ev models.JoinedEvent
	readFrame(t, bob, models.EventJoined, &ev)
	bobID := ev.SocketID
	readFrame(t, alice, models.EventJoined, nil)

	_ = bob.Close()

	var gone models.DisconnectedEvent
	readFrame(t, alice, models.EventDisconnected, &gone)
	if gone.SocketID != bobID || gone.Username != "bob" {
		t.Fatalf("unexpected disconnect event: %#v", gone)
	}

	// server-side membership shrinks to alice alone
	deadline := time.Now().Add(2 * time.Second)
	for {
		if rooms, conns := hub.Counts(); rooms == 1 && conns == 1 {
			break
		}
		if time.Now().After(deadline) {
			rooms, conns := hub.Counts()
			t.Fatalf("expected 1 room / 1 conn, got %d/%d", rooms, conns)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUnknownFrameIsIgnored(t *testing.T) {
	server, _ := newWSServer(t)

	conn := dial(t, server)
	sendFrame(t, conn, models.WSFrame{Type: "bogus", Data: "whatever"})
	sendFrame(t, conn, joinFrame("R1", "alice"))

	// the join still works; nothing was echoed back for the bogus frame
	var ev models.JoinedEvent
	readFrame(t, conn, models.EventJoined, &ev)
	if ev.Username != "alice" {
		t.Fatalf("unexpected joined event: %#v", ev)
	}
}

func TestStatsEndpoint(t *testing.T) {
	log := zap.NewNop().Sugar()
	hub := session.NewHub()
	rly := relay.New(log, registry.New(), hub)
	h := NewHandlers(log, rly, hub)

	hub.Add(session.NewClient("c1", nil))

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if body["connections"] != 1 || body["rooms"] != 0 {
		t.Fatalf("unexpected stats: %v", body)
	}
}
