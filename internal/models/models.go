package models

// Wire event names. These are the socket event vocabulary shared with the
// browser client; changing one is a protocol break.
const (
	EventJoinIntent   = "join-intent"
	EventJoined       = "joined"
	EventCodeChange   = "code-change"
	EventSyncRequest  = "sync-request"
	EventDisconnected = "disconnected"
)

// WSFrame is the envelope for every message on the socket.
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// JoinIntent is sent by a client that wants to enter a room.
type JoinIntent struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// RoomMember is one roster entry.
type RoomMember struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// JoinedEvent is fanned out to every member of a room (the new joiner
// included) after a join. Username and SocketID identify the newcomer.
type JoinedEvent struct {
	Clients  []RoomMember `json:"clients"`
	Username string       `json:"username"`
	SocketID string       `json:"socketId"`
}

// CodeChange carries the full document text. RoomID is set on the inbound
// client frame; server-to-client frames carry only the code.
type CodeChange struct {
	RoomID string `json:"roomId,omitempty"`
	Code   string `json:"code"`
}

// SyncRequest asks the server to push the sender's buffer to exactly one
// connection, identified by its socket id.
type SyncRequest struct {
	SocketID string `json:"socketId"`
	Code     string `json:"code"`
}

// DisconnectedEvent tells remaining room members that a peer is gone.
type DisconnectedEvent struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}
