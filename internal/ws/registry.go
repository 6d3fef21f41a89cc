package ws

import (
	"sync"
	"time"
)

// connMeta is the per-connection bookkeeping owned by the Registry.
type connMeta struct {
	conn         *clientConn
	employeeID   string
	joinedRooms  map[string]struct{}
	lastActivity time.Time
}

// OnlineConn is one (employee, connection) pair, exported for the
// presence mirror and the ops endpoint.
type OnlineConn struct {
	EmployeeID   string
	ConnectionID string
	LastActivity time.Time
}

// Registry is the only owner of connection lifetime. It keeps a
// bidirectional index: employee → live connections, and connection id →
// metadata, so both lookups are O(1).
type Registry struct {
	mu         sync.RWMutex
	byEmployee map[string]map[string]*clientConn
	meta       map[string]*connMeta
}

func NewRegistry() *Registry {
	return &Registry{
		byEmployee: make(map[string]map[string]*clientConn),
		meta:       make(map[string]*connMeta),
	}
}

// Add registers an authenticated connection under its employee. Returns
// true when this is the employee's first live connection (the offline →
// online transition).
func (r *Registry) Add(employeeID string, c *clientConn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byEmployee[employeeID]
	if !ok {
		conns = make(map[string]*clientConn)
		r.byEmployee[employeeID] = conns
	}
	first = len(conns) == 0
	conns[c.id] = c
	r.meta[c.id] = &connMeta{
		conn:         c,
		employeeID:   employeeID,
		joinedRooms:  make(map[string]struct{}),
		lastActivity: time.Now(),
	}
	return first
}

// Remove drops the connection from both indexes. Idempotent: removing an
// unknown or already-removed id is a no-op. Returns the owning employee
// and whether this was the employee's last live connection.
func (r *Registry) Remove(connID string) (employeeID string, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, found := r.meta[connID]
	if !found {
		return "", false, false
	}
	delete(r.meta, connID)

	employeeID = m.employeeID
	if conns, exists := r.byEmployee[employeeID]; exists {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byEmployee, employeeID)
			last = true
		}
	}
	return employeeID, last, true
}

// ForEmployee returns a snapshot of the employee's live connections.
// Empty slice when offline.
func (r *Registry) ForEmployee(employeeID string) []*clientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*clientConn, 0, len(r.byEmployee[employeeID]))
	for _, c := range r.byEmployee[employeeID] {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) Exists(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.meta[connID]
	return ok
}

// Touch refreshes the connection's activity clock. Called on every inbound
// frame; the heartbeat monitor reads it to find dead transports.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.meta[connID]; ok {
		m.lastActivity = time.Now()
	}
}

func (r *Registry) JoinRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.meta[connID]; ok {
		m.joinedRooms[roomID] = struct{}{}
	}
}

func (r *Registry) LeaveRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.meta[connID]; ok {
		delete(m.joinedRooms, roomID)
	}
}

// allConns snapshots every live connection regardless of owner.
func (r *Registry) allConns() []*clientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*clientConn, 0, len(r.meta))
	for _, m := range r.meta {
		conns = append(conns, m.conn)
	}
	return conns
}

// idleConns returns connections with no inbound activity since the cutoff.
func (r *Registry) idleConns(cutoff time.Time) []*clientConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var idle []*clientConn
	for _, m := range r.meta {
		if m.lastActivity.Before(cutoff) {
			idle = append(idle, m.conn)
		}
	}
	return idle
}

// OnlineEmployees lists the employees with at least one live connection.
func (r *Registry) OnlineEmployees() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byEmployee))
	for id := range r.byEmployee {
		out = append(out, id)
	}
	return out
}

// Snapshot lists every live (employee, connection) pair.
func (r *Registry) Snapshot() []OnlineConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OnlineConn, 0, len(r.meta))
	for id, m := range r.meta {
		out = append(out, OnlineConn{
			EmployeeID:   m.employeeID,
			ConnectionID: id,
			LastActivity: m.lastActivity,
		})
	}
	return out
}

// ConnCount returns the number of live connections.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.meta)
}
