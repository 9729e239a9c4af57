package ws

import "sync"

// Group is the broadcast group for one room: the set of local connections
// that receive everything sent "to the room".
type Group struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewGroup() *Group { return &Group{clients: map[*client]struct{}{}} }

// Join adds a connection to the group
func (g *Group) Join(c *client) {
	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
}

// Leave removes a connection from the group
func (g *Group) Leave(c *client) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
}

// Size returns the number of local connections in the group
func (g *Group) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Broadcast sends a frame to all connections without blocking
func (g *Group) Broadcast(b []byte) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.clients {
		c.send(b)
	}
}
