// Package broadcast fans events out to every connection joined to a notepad room.
package broadcast

import (
	"sync"

	"github.com/npezzotti/go-notepad/internal/stats"
	"go.uber.org/zap"
)

type Event string

const (
	ActiveUsers   Event = "active-users"
	ContentUpdate Event = "content-update"
	FeedbackAdded Event = "feedback-added"
	FileAdded     Event = "file-added"
)

// Sender is one live connection. Send must not block; it reports whether the
// event was queued.
type Sender interface {
	ID() string
	Send(event Event, payload any) bool
}

// Membership resolves the connection ids currently joined to a room.
type Membership interface {
	Members(notepadId string) []string
}

type Channel struct {
	mu      sync.RWMutex
	conns   map[string]Sender
	members Membership
	log     *zap.SugaredLogger
	stats   stats.StatsProvider
}

func NewChannel(members Membership, logger *zap.SugaredLogger, su stats.StatsProvider) *Channel {
	su.RegisterMetric(stats.BroadcastDelivered)
	su.RegisterMetric(stats.BroadcastDropped)

	return &Channel{
		conns:   make(map[string]Sender),
		members: members,
		log:     logger,
		stats:   su,
	}
}

func (c *Channel) Register(s Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[s.ID()] = s
}

func (c *Channel) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, id)
}

// Broadcast delivers payload tagged with event to every connection in the
// notepad's room except exclude, which may be empty. Delivery is at most once;
// connections whose queue is full miss the event. It returns the number of
// connections the event was queued for.
func (c *Channel) Broadcast(notepadId string, event Event, payload any, exclude string) int {
	ids := c.members.Members(notepadId)

	c.mu.RLock()
	defer c.mu.RUnlock()

	delivered := 0
	for _, id := range ids {
		if id == exclude {
			continue
		}

		s, ok := c.conns[id]
		if !ok {
			continue
		}

		if !s.Send(event, payload) {
			c.log.Warnf("dropped %s for connection %q in notepad %q", event, id, notepadId)
			c.stats.Incr(stats.BroadcastDropped)
			continue
		}

		c.stats.Incr(stats.BroadcastDelivered)
		delivered++
	}

	c.log.Debugf("broadcast %s to notepad %q: %d/%d delivered", event, notepadId, delivered, len(ids))
	return delivered
}
