package server

import (
	"testing"

	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/testutil"
	"github.com/npezzotti/go-notepad/internal/types"
	"github.com/stretchr/testify/assert"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{} // Pre-fill the send channel to simulate a full channel
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func TestClient_Send(t *testing.T) {
	c := &Client{
		send: make(chan *ServerMessage, 1),
		log:  testutil.TestLogger(t),
	}

	payload := types.ActiveUsers{NotepadId: "abc", Count: 2}
	assert.True(t, c.Send(broadcast.ActiveUsers, payload))

	msg := <-c.send
	assert.Equal(t, "active-users", msg.Event)
	assert.Equal(t, payload, msg.Data)
	assert.Nil(t, msg.Response, "expected broadcast not to look like a response")
	assert.Zero(t, msg.Id)

	c.send <- &ServerMessage{}
	assert.False(t, c.Send(broadcast.ActiveUsers, payload), "expected a full queue to drop the event")
}

func TestNewClient(t *testing.T) {
	id := types.Identity{NotepadId: "abc", Username: "alice"}
	c1 := NewClient(id, nil, nil, testutil.TestLogger(t))
	c2 := NewClient(id, nil, nil, testutil.TestLogger(t))

	assert.NotEmpty(t, c1.ID())
	assert.NotEqual(t, c1.ID(), c2.ID(), "expected unique connection ids")
	assert.Equal(t, id, c1.identity)
	assert.Equal(t, sendBufferSize, cap(c1.send))
	assert.NoError(t, c1.ctx.Err())
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	assert.NotPanics(t, c.stopClient, "expected stopClient to be idempotent")

	select {
	case <-c.stop:
		// Channel is closed as expected
	default:
		t.Error("expected stop channel to be closed")
	}
}
