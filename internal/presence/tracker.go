package presence

import (
	"sync"

	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/types"
	"go.uber.org/zap"
)

type Broadcaster interface {
	Broadcast(notepadId string, event broadcast.Event, payload any, exclude string) int
}

// Tracker applies joins and leaves to a Registry and announces the new
// member count to the room. Each mutation and its announcement form one step,
// so counts are observed in mutation order.
type Tracker struct {
	mu    sync.Mutex
	reg   *Registry
	bc    Broadcaster
	log   *zap.SugaredLogger
	stats stats.StatsProvider
}

func NewTracker(reg *Registry, bc Broadcaster, logger *zap.SugaredLogger, su stats.StatsProvider) *Tracker {
	su.RegisterMetric(stats.ActiveRooms)

	return &Tracker{
		reg:   reg,
		bc:    bc,
		log:   logger,
		stats: su,
	}
}

// Join adds connId to the notepad's room and broadcasts the new count to the
// whole room, joiner included. Joining again is idempotent. A connection
// already in a different room leaves that room first.
func (t *Tracker) Join(notepadId, connId string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.reg.RoomOf(connId); ok && prev != notepadId {
		t.log.Infof("connection %q moving from notepad %q to %q", connId, prev, notepadId)
		t.leaveLocked(connId)
	}

	count, created := t.reg.Add(notepadId, connId)
	if created {
		t.stats.Incr(stats.ActiveRooms)
	}

	t.log.Infof("connection %q joined notepad %q (%d active)", connId, notepadId, count)
	t.announce(notepadId, count)

	return count
}

// Leave removes connId from its room, if any. It reports the room it left
// and the remaining count. Unknown connections are a no-op.
func (t *Tracker) Leave(connId string) (string, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.leaveLocked(connId)
}

func (t *Tracker) leaveLocked(connId string) (string, int, bool) {
	notepadId, remaining, ok := t.reg.Remove(connId)
	if !ok {
		return "", 0, false
	}

	if remaining == 0 {
		t.log.Infof("connection %q left notepad %q, room closed", connId, notepadId)
		t.stats.Decr(stats.ActiveRooms)
		return notepadId, 0, true
	}

	t.log.Infof("connection %q left notepad %q (%d active)", connId, notepadId, remaining)
	t.announce(notepadId, remaining)

	return notepadId, remaining, true
}

func (t *Tracker) announce(notepadId string, count int) {
	t.bc.Broadcast(notepadId, broadcast.ActiveUsers, types.ActiveUsers{
		NotepadId: notepadId,
		Count:     count,
	}, "")
}

func (t *Tracker) RoomOf(connId string) (string, bool) {
	return t.reg.RoomOf(connId)
}

func (t *Tracker) Count(notepadId string) int {
	return t.reg.Count(notepadId)
}
