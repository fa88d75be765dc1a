package ws

import (
	"sync"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

// Registry tracks the live connections of this instance per namespace.
// Methods are safe for concurrent use; lookups return snapshots.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[models.Namespace]*namespaceIndex
}

type namespaceIndex struct {
	clients map[string]*Client
	users   map[string]map[string]*Client
	rooms   map[string]map[string]*Client
}

func newNamespaceIndex() *namespaceIndex {
	return &namespaceIndex{
		clients: make(map[string]*Client),
		users:   make(map[string]map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[models.Namespace]*namespaceIndex)}
}

// Register adds a client. Registering the same client twice is a no-op.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.namespaces[c.Namespace]
	if !ok {
		idx = newNamespaceIndex()
		r.namespaces[c.Namespace] = idx
	}
	if _, exists := idx.clients[c.ID()]; exists {
		return
	}
	idx.clients[c.ID()] = c
	addTo(idx.users, c.UserID(), c)
	observability.IncWSActive(c.Namespace.Label())
}

// Unregister removes a client and its room memberships, reporting whether it was registered.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.namespaces[c.Namespace]
	if !ok {
		return false
	}
	if _, exists := idx.clients[c.ID()]; !exists {
		return false
	}
	delete(idx.clients, c.ID())
	removeFrom(idx.users, c.UserID(), c)
	for _, room := range c.Rooms() {
		removeFrom(idx.rooms, room, c)
	}
	observability.DecWSActive(c.Namespace.Label())
	return true
}

// Join adds a registered client to rooms. It reports false for unregistered clients.
func (r *Registry) Join(c *Client, rooms ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.namespaces[c.Namespace]
	if !ok {
		return false
	}
	if _, exists := idx.clients[c.ID()]; !exists {
		return false
	}
	for _, room := range rooms {
		if room == "" {
			continue
		}
		addTo(idx.rooms, room, c)
		c.addRoom(room)
	}
	return true
}

// FindByUser returns every connection of userID in ns.
func (r *Registry) FindByUser(ns models.Namespace, userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.namespaces[ns]
	if !ok {
		return nil
	}
	return snapshot(idx.users[userID])
}

// UsersOnline returns the subset of candidates with at least one connection
// to ns on this instance.
func (r *Registry) UsersOnline(ns models.Namespace, candidates []string) map[string]struct{} {
	online := make(map[string]struct{})
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.namespaces[ns]
	if !ok {
		return online
	}
	for _, userID := range candidates {
		if len(idx.users[userID]) > 0 {
			online[userID] = struct{}{}
		}
	}
	return online
}

// InRoom returns the connections of ns that joined room.
func (r *Registry) InRoom(ns models.Namespace, room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.namespaces[ns]
	if !ok {
		return nil
	}
	return snapshot(idx.rooms[room])
}

// Count returns the number of connections registered in ns.
func (r *Registry) Count(ns models.Namespace) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx, ok := r.namespaces[ns]; ok {
		return len(idx.clients)
	}
	return 0
}

// All returns every registered connection across namespaces.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Client
	for _, idx := range r.namespaces {
		for _, c := range idx.clients {
			all = append(all, c)
		}
	}
	return all
}

func addTo(index map[string]map[string]*Client, key string, c *Client) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]*Client)
		index[key] = set
	}
	set[c.ID()] = c
}

func removeFrom(index map[string]map[string]*Client, key string, c *Client) {
	if set, ok := index[key]; ok {
		delete(set, c.ID())
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func snapshot(set map[string]*Client) []*Client {
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
