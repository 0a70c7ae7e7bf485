// Package collab is the synchronization core: it commits full-content
// snapshots with last-writer-wins and fans each commit out to the rest of the
// notepad's room.
package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/types"
	"go.uber.org/zap"
)

type ContentWriter interface {
	UpdateNotepadContent(ctx context.Context, params database.UpdateContentParams) error
}

type Broadcaster interface {
	Broadcast(notepadId string, event broadcast.Event, payload any, exclude string) int
}

// Edit is one full-content snapshot submitted by a participant. ConnectionId
// may be empty when the edit did not arrive over a room connection.
type Edit struct {
	NotepadId    string
	ConnectionId string
	Content      string
	Editor       string
}

// Ack is returned to the submitter only.
type Ack struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

type Option func(*Core)

// WithClock replaces the wall clock used to stamp commits.
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.clock = newClock(now)
	}
}

type Core struct {
	store ContentWriter
	bc    Broadcaster
	seq   *sequencer
	clock *clock
	log   *zap.SugaredLogger
	stats stats.StatsProvider
}

func NewCore(store ContentWriter, bc Broadcaster, logger *zap.SugaredLogger, su stats.StatsProvider, opts ...Option) *Core {
	su.RegisterMetric(stats.EditsCommitted)
	su.RegisterMetric(stats.EditsFailed)

	c := &Core{
		store: store,
		bc:    bc,
		seq:   newSequencer(),
		clock: newClock(nil),
		log:   logger,
		stats: su,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SubmitEdit persists e.Content as the notepad's content and, once the write
// has succeeded, sends a content-update to every other connection in the room.
// There is no merge and no staleness check: whichever submission commits last
// wins. Commit and broadcast happen under the notepad's sequencer entry, so
// other participants observe updates in commit order. A failed write is
// reported only through the returned Ack and nothing is broadcast.
func (c *Core) SubmitEdit(ctx context.Context, e Edit) Ack {
	release := c.seq.lock(e.NotepadId)
	defer release()

	ts := c.clock.Now()
	err := c.persist(ctx, database.UpdateContentParams{
		NotepadId: e.NotepadId,
		Content:   e.Content,
		Editor:    e.Editor,
		Timestamp: ts,
	})
	if err != nil {
		c.log.Errorf("persist edit for notepad %q by %q: %v", e.NotepadId, e.Editor, err)
		c.stats.Incr(stats.EditsFailed)
		return Ack{Success: false, Err: err}
	}
	c.stats.Incr(stats.EditsCommitted)

	n := c.bc.Broadcast(e.NotepadId, broadcast.ContentUpdate, types.ContentUpdate{
		NotepadId: e.NotepadId,
		Content:   e.Content,
		Editor:    e.Editor,
		Timestamp: ts,
	}, e.ConnectionId)
	c.log.Debugf("committed edit for notepad %q by %q at %s, sent to %d", e.NotepadId, e.Editor, ts, n)

	return Ack{Success: true, Timestamp: ts}
}

// persist converts a panicking store into an ordinary error.
func (c *Core) persist(ctx context.Context, params database.UpdateContentParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()

	return c.store.UpdateNotepadContent(ctx, params)
}

// ForwardFeedback relays a stored feedback entry to the whole room unchanged.
func (c *Core) ForwardFeedback(notepadId string, fb types.Feedback) int {
	return c.bc.Broadcast(notepadId, broadcast.FeedbackAdded, fb, "")
}

// ForwardFile relays a stored attachment's metadata to the whole room.
func (c *Core) ForwardFile(notepadId string, f types.File) int {
	return c.bc.Broadcast(notepadId, broadcast.FileAdded, f, "")
}
