// Package registry tracks the display name behind each live connection.
package registry

import "sync"

// Registry is the process-wide connection-id to username map. Entries live
// exactly as long as the connection: registered on join, removed
// synchronously on disconnect. Nothing is persisted; a restart drops every
// identity.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
}

func New() *Registry { return &Registry{names: make(map[string]string)} }

// Register inserts or overwrites the username for a connection. Empty
// usernames are allowed and nothing is deduplicated.
func (r *Registry) Register(connID, username string) {
	r.mu.Lock()
	r.names[connID] = username
	r.mu.Unlock()
}

func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[connID]
	return name, ok
}

// Remove deletes the mapping. Removing an absent id is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	delete(r.names, connID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
