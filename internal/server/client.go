package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/collab"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/types"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

// Client is one websocket connection. It is bound to the notepad named in its
// session identity and joins that notepad's room on request.
type Client struct {
	id       string
	conn     *websocket.Conn
	srv      *NotepadServer
	log      *zap.SugaredLogger
	identity types.Identity
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewClient(identity types.Identity, conn *websocket.Conn, srv *NotepadServer, l *zap.SugaredLogger) *Client {
	id := xid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:       id,
		conn:     conn,
		srv:      srv,
		log:      l.With("conn", id),
		identity: identity,
		send:     make(chan *ServerMessage, sendBufferSize),
		stop:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a broadcast event without blocking.
func (c *Client) Send(event broadcast.Event, payload any) bool {
	return c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       string(event),
		Data:        payload,
	})
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug("write exiting")
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Errorf("failed to serialize message: %v", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warnf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debugf("error parsing message: %v", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

// dispatch handles one request. A panic is contained to the request.
func (c *Client) dispatch(msg *ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("panic handling message %d: %v", msg.Id, r)
			c.queueMessage(ErrInternalError(msg.Id, nil))
		}
	}()

	switch {
	case msg.Join != nil:
		c.joinNotepad(msg)
	case msg.Leave != nil:
		c.leaveNotepad(msg)
	case msg.ContentChange != nil:
		c.changeContent(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// joinNotepad adds the client to the room before reading the snapshot it
// returns, so any commit the snapshot misses is delivered as a content-update.
// Unknown notepads are rejected before presence changes.
func (c *Client) joinNotepad(msg *ClientMessage) {
	notepadId := msg.Join.NotepadId
	if notepadId != c.identity.NotepadId {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if _, err := c.srv.docs.GetNotepad(c.ctx, notepadId); err != nil {
		c.joinFailed(msg.Id, notepadId, err)
		return
	}

	room, ok := c.srv.tracker.RoomOf(c.id)
	member := ok && room == notepadId
	count := c.srv.tracker.Join(notepadId, c.id)

	n, err := c.srv.docs.GetNotepad(c.ctx, notepadId)
	if err != nil {
		// a member retrying a join keeps its place
		if !member {
			c.srv.tracker.Leave(c.id)
		}
		c.joinFailed(msg.Id, notepadId, err)
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{
		"notepad": types.Notepad{
			Id:           n.Id,
			Content:      n.Content,
			LastModified: n.LastModified,
			LastEditor:   n.LastEditor,
			CreatedAt:    n.CreatedAt,
		},
		"active_users": count,
		"identity":     c.identity,
	}))
}

func (c *Client) joinFailed(msgId int, notepadId string, err error) {
	if errors.Is(err, database.ErrNotFound) {
		c.queueMessage(ErrNotFound(msgId, "notepad"))
		return
	}
	c.log.Errorf("get notepad %q: %v", notepadId, err)
	c.queueMessage(ErrInternalError(msgId, nil))
}

func (c *Client) leaveNotepad(msg *ClientMessage) {
	if room, ok := c.srv.tracker.RoomOf(c.id); !ok || room != msg.Leave.NotepadId {
		c.queueMessage(ErrNotFound(msg.Id, "room"))
		return
	}

	c.srv.tracker.Leave(c.id)
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) changeContent(msg *ClientMessage) {
	notepadId := msg.ContentChange.NotepadId
	if notepadId != c.identity.NotepadId {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}
	if room, ok := c.srv.tracker.RoomOf(c.id); !ok || room != notepadId {
		c.queueMessage(ErrNotFound(msg.Id, "room"))
		return
	}

	ack := c.srv.core.SubmitEdit(c.ctx, collab.Edit{
		NotepadId:    notepadId,
		ConnectionId: c.id,
		Content:      msg.ContentChange.Content,
		Editor:       c.identity.Username,
	})
	if !ack.Success {
		c.queueMessage(ErrInternalError(msg.Id, map[string]any{"success": false}))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, ack))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warnf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.cancel()
	c.srv.DeRegisterClient(c)
	c.stopClient()
}
