// Package presence tracks which connections are joined to which notepad.
package presence

import "sync"

// Registry maps notepad ids to the set of joined connection ids, with a
// reverse index so a connection's room is found without scanning.
// A connection id is in at most one room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
	conns map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]string),
	}
}

// Add puts connId into the notepad's room, creating the room if needed.
// The caller must remove connId from any other room first.
func (r *Registry) Add(notepadId, connId string) (count int, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[notepadId]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[notepadId] = room
		created = true
	}

	room[connId] = struct{}{}
	r.conns[connId] = notepadId

	return len(room), created
}

// Remove takes connId out of its room and deletes the room once empty.
func (r *Registry) Remove(connId string) (notepadId string, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notepadId, ok = r.conns[connId]
	if !ok {
		return "", 0, false
	}
	delete(r.conns, connId)

	room := r.rooms[notepadId]
	delete(room, connId)
	if len(room) == 0 {
		delete(r.rooms, notepadId)
		return notepadId, 0, true
	}

	return notepadId, len(room), true
}

func (r *Registry) RoomOf(connId string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notepadId, ok := r.conns[connId]
	return notepadId, ok
}

func (r *Registry) Members(notepadId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[notepadId]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}

	return ids
}

func (r *Registry) Count(notepadId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[notepadId])
}

// Rooms returns the number of non-empty rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
