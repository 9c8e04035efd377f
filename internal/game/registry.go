package game

import (
	"fmt"
	"sync"

	"github.com/scythe504/winenight-backend/internal"
)

// Binding ties a live connection to one user inside one room.
type Binding struct {
	RoomCode string
	UserID   string
}

// Registry is the lookup table of live connections and their room
// bindings. It never sends anything.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	bindings map[string]Binding
}

func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[string]*Client),
		bindings: make(map[string]Binding),
	}
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	r.mu.Unlock()
}

func (r *Registry) Client(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Forget drops the connection and returns the binding it held, if any.
func (r *Registry) Forget(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	b, ok := r.bindings[connID]
	delete(r.bindings, connID)
	return b, ok
}

// Bind attaches connID to (roomCode, userID). Binding again to the same
// room and user is a no-op.
func (r *Registry) Bind(connID, roomCode, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[connID]; !ok {
		return fmt.Errorf("%w: connection %s is gone", internal.ErrNotFound, connID)
	}
	if b, ok := r.bindings[connID]; ok {
		if b.RoomCode == roomCode && b.UserID == userID {
			return nil
		}
		return internal.ErrAlreadyBoundElsewhere
	}
	r.bindings[connID] = Binding{RoomCode: roomCode, UserID: userID}
	return nil
}

func (r *Registry) Unbind(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[connID]
	delete(r.bindings, connID)
	return b, ok
}

func (r *Registry) Lookup(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[connID]
	return b, ok
}

// UnbindRoom drops every binding into roomCode and returns the affected
// connection ids.
func (r *Registry) UnbindRoom(roomCode string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conns []string
	for connID, b := range r.bindings {
		if b.RoomCode == roomCode {
			delete(r.bindings, connID)
			conns = append(conns, connID)
		}
	}
	return conns
}

func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
