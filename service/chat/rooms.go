package chat

import (
	"sync"
)

// BroadcastRoom is the global room every staff connection joins on
// registration; message fan-out and presence events go there.
const BroadcastRoom = "staff:broadcast"

// Rooms tracks which connections subscribe to which conversation.
// Pure membership: no lifecycle of its own, empty rooms are not kept,
// and membership never outlives the owning connection (Drop removes a
// connection from everything on unregister).
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]struct{} // conversation id -> conn ids
	byConn map[string]map[string]struct{} // conn id -> conversation ids
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(connID, roomID string) {
	if connID == "" || roomID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.byRoom[roomID]
	if m == nil {
		m = make(map[string]struct{})
		r.byRoom[roomID] = m
	}
	m[connID] = struct{}{}

	cm := r.byConn[connID]
	if cm == nil {
		cm = make(map[string]struct{})
		r.byConn[connID] = cm
	}
	cm[roomID] = struct{}{}
}

func (r *Rooms) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

func (r *Rooms) leaveLocked(connID, roomID string) {
	if m := r.byRoom[roomID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byRoom, roomID)
		}
	}
	if cm := r.byConn[connID]; cm != nil {
		delete(cm, roomID)
		if len(cm) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Drop removes a connection from every room it belonged to and
// returns the rooms it left.
func (r *Rooms) Drop(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cm := r.byConn[connID]
	if len(cm) == 0 {
		delete(r.byConn, connID)
		return nil
	}
	left := make([]string, 0, len(cm))
	for roomID := range cm {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		r.leaveLocked(connID, roomID)
	}
	return left
}

// Members snapshots a room's connection ids.
func (r *Rooms) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[roomID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// RoomsOf snapshots the rooms one connection belongs to.
func (r *Rooms) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cm := r.byConn[connID]
	if len(cm) == 0 {
		return nil
	}
	out := make([]string, 0, len(cm))
	for id := range cm {
		out = append(out, id)
	}
	return out
}

func (r *Rooms) Contains(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byRoom[roomID]
	if m == nil {
		return false
	}
	_, ok := m[connID]
	return ok
}
