package broadcast

import (
	"testing"

	"github.com/npezzotti/go-notepad/internal/stats"
	"github.com/npezzotti/go-notepad/internal/testutil"
	"github.com/stretchr/testify/assert"
)

type staticMembers map[string][]string

func (m staticMembers) Members(notepadId string) []string {
	return m[notepadId]
}

type fakeSender struct {
	id       string
	full     bool
	received []Event
	payloads []any
}

func (f *fakeSender) ID() string { return f.id }

func (f *fakeSender) Send(event Event, payload any) bool {
	if f.full {
		return false
	}
	f.received = append(f.received, event)
	f.payloads = append(f.payloads, payload)
	return true
}

func newTestChannel(t *testing.T, members Membership) *Channel {
	return NewChannel(members, testutil.TestLogger(t), stats.NoopStats{})
}

func TestBroadcast(t *testing.T) {
	t.Run("delivers to every room member", func(t *testing.T) {
		c1, c2 := &fakeSender{id: "c1"}, &fakeSender{id: "c2"}
		ch := newTestChannel(t, staticMembers{"doc1": {"c1", "c2"}})
		ch.Register(c1)
		ch.Register(c2)

		n := ch.Broadcast("doc1", ActiveUsers, 2, "")
		assert.Equal(t, 2, n)
		assert.Equal(t, []Event{ActiveUsers}, c1.received)
		assert.Equal(t, []Event{ActiveUsers}, c2.received)
	})

	t.Run("skips excluded connection", func(t *testing.T) {
		c1, c2 := &fakeSender{id: "c1"}, &fakeSender{id: "c2"}
		ch := newTestChannel(t, staticMembers{"doc1": {"c1", "c2"}})
		ch.Register(c1)
		ch.Register(c2)

		n := ch.Broadcast("doc1", ContentUpdate, "hello", "c1")
		assert.Equal(t, 1, n)
		assert.Empty(t, c1.received, "expected excluded connection to receive nothing")
		assert.Equal(t, []any{"hello"}, c2.payloads)
	})

	t.Run("ignores other rooms and unregistered members", func(t *testing.T) {
		c1, c3 := &fakeSender{id: "c1"}, &fakeSender{id: "c3"}
		ch := newTestChannel(t, staticMembers{"doc1": {"c1", "gone"}, "doc2": {"c3"}})
		ch.Register(c1)
		ch.Register(c3)

		n := ch.Broadcast("doc1", FeedbackAdded, nil, "")
		assert.Equal(t, 1, n)
		assert.Empty(t, c3.received)
	})

	t.Run("full queue drops event", func(t *testing.T) {
		c1, c2 := &fakeSender{id: "c1", full: true}, &fakeSender{id: "c2"}
		ch := newTestChannel(t, staticMembers{"doc1": {"c1", "c2"}})
		ch.Register(c1)
		ch.Register(c2)

		n := ch.Broadcast("doc1", ContentUpdate, "x", "")
		assert.Equal(t, 1, n)
		assert.Len(t, c2.received, 1)
	})

	t.Run("empty room is a no-op", func(t *testing.T) {
		ch := newTestChannel(t, staticMembers{})
		assert.Equal(t, 0, ch.Broadcast("doc1", ActiveUsers, 0, ""))
	})
}

func TestRegisterUnregister(t *testing.T) {
	c1 := &fakeSender{id: "c1"}
	ch := newTestChannel(t, staticMembers{"doc1": {"c1"}})

	ch.Register(c1)
	assert.Contains(t, ch.conns, "c1")

	ch.Unregister("c1")
	assert.NotContains(t, ch.conns, "c1")
	assert.Equal(t, 0, ch.Broadcast("doc1", ActiveUsers, 1, ""), "expected unregistered connection to be skipped")
}
