package session

import "sync"

// Hub is the membership table: which connections exist and which rooms each
// one is in. A room has no object of its own. It exists exactly while its
// member set is non-empty, and the empty set is deleted eagerly so there are
// no stale room entries to special-case.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Client),
		rooms: make(map[string]map[string]*Client),
	}
}

// Add makes a connection addressable by id. Called once at upgrade time,
// before any join.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[connID]
	return c, ok
}

// Join adds the client to a room, creating the member set on first join.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
}

// Leave removes the connection from one room, dropping the room when it
// empties. Safe to call for rooms the connection never joined.
func (h *Hub) Leave(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, connID)
}

func (h *Hub) leaveLocked(roomID, connID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Remove tears the connection down completely: out of every room, then out of
// the address table. Idempotent.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, members := range h.rooms {
		if _, ok := members[connID]; ok {
			h.leaveLocked(roomID, connID)
		}
	}
	delete(h.conns, connID)
}

// Members returns a snapshot of the room's clients. Order is map iteration
// order; callers must not rely on it being stable.
func (h *Hub) Members(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// RoomsOf lists every room the connection currently belongs to.
func (h *Hub) RoomsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for roomID, members := range h.rooms {
		if _, ok := members[connID]; ok {
			out = append(out, roomID)
		}
	}
	return out
}

// Counts reports live room and connection totals for the stats endpoint.
func (h *Hub) Counts() (rooms, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.conns)
}
