// Package session is the core of the gateway: the registry mapping
// client ids to venue sessions, the connect/disconnect lifecycle on top
// of it, and the guarded operations everything else goes through.
package session

import (
	"sort"
	"sync"

	"ibgate/internal/broker"
)

// Factory constructs a new, not-yet-connected venue session for a client
// id. It is invoked under the registry's structural lock and must not
// perform I/O.
type Factory func(clientID int) broker.Session

// Entry is one registry slot: a client id and its venue session. The
// connection state is never stored here; it is always derived from the
// session itself.
type Entry struct {
	ClientID int
	Session  broker.Session
}

// Registry owns the client id → session mapping. The mutex guards only
// structural mutation of the map; venue I/O never happens under it.
// At most one entry exists per client id, and CreateIfAbsent is the only
// path that inserts one.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	entries map[int]*Entry
}

// NewRegistry creates an empty registry that builds sessions with
// factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		entries: make(map[int]*Entry),
	}
}

// Lookup returns the entry for clientID, if present. It never creates.
func (r *Registry) Lookup(clientID int) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[clientID]
	return e, ok
}

// CreateIfAbsent returns the existing entry for clientID, or atomically
// constructs and inserts a new disconnected one. The second return value
// reports whether a new entry was created. Holding the lock across the
// factory call is what guarantees two concurrent callers for a
// never-seen client id cannot both construct a session.
func (r *Registry) CreateIfAbsent(clientID int) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[clientID]; ok {
		return e, false
	}

	e := &Entry{ClientID: clientID, Session: r.factory(clientID)}
	r.entries[clientID] = e
	return e, true
}

// Remove deletes and returns the entry for clientID, if present.
func (r *Registry) Remove(clientID int) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[clientID]
	if ok {
		delete(r.entries, clientID)
	}
	return e, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ClientIDs returns a sorted snapshot of the registered client ids.
func (r *Registry) ClientIDs() []int {
	r.mu.Lock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Ints(ids)
	return ids
}
