package server

import (
	"context"
	"errors"
	"sync"

	"github.com/npezzotti/go-notepad/internal/broadcast"
	"github.com/npezzotti/go-notepad/internal/collab"
	"github.com/npezzotti/go-notepad/internal/database"
	"github.com/npezzotti/go-notepad/internal/presence"
	"github.com/npezzotti/go-notepad/internal/stats"
	"go.uber.org/zap"
)

var ErrServerClosed = errors.New("server is shutting down")

type DocumentReader interface {
	GetNotepad(ctx context.Context, id string) (database.Notepad, error)
}

// NotepadServer owns every live websocket client and connects them to the
// presence tracker, the broadcast channel and the synchronization core.
type NotepadServer struct {
	log     *zap.SugaredLogger
	docs    DocumentReader
	tracker *presence.Tracker
	channel *broadcast.Channel
	core    *collab.Core
	stats   stats.StatsProvider

	clientsLock sync.Mutex
	clients     map[string]*Client
	closing     bool
	wg          sync.WaitGroup
}

func NewNotepadServer(
	logger *zap.SugaredLogger,
	docs DocumentReader,
	tracker *presence.Tracker,
	channel *broadcast.Channel,
	core *collab.Core,
	su stats.StatsProvider,
) *NotepadServer {
	su.RegisterMetric(stats.ConnectedClients)

	return &NotepadServer{
		log:     logger,
		docs:    docs,
		tracker: tracker,
		channel: channel,
		core:    core,
		stats:   su,
		clients: make(map[string]*Client),
	}
}

// RegisterClient makes c reachable by broadcasts. It fails once Shutdown has
// started.
func (s *NotepadServer) RegisterClient(c *Client) error {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	if s.closing {
		return ErrServerClosed
	}
	if _, ok := s.clients[c.id]; ok {
		return nil
	}

	s.clients[c.id] = c
	s.wg.Add(1)
	s.channel.Register(c)
	s.stats.Incr(stats.ConnectedClients)
	s.log.Debugf("registered client %s for %q", c.id, c.identity.Username)

	return nil
}

// DeRegisterClient is the disconnect path: the client leaves its room and
// stops receiving broadcasts. Calling it twice is a no-op.
func (s *NotepadServer) DeRegisterClient(c *Client) {
	s.clientsLock.Lock()
	_, ok := s.clients[c.id]
	delete(s.clients, c.id)
	s.clientsLock.Unlock()

	if !ok {
		return
	}

	if notepadId, remaining, left := s.tracker.Leave(c.id); left {
		s.log.Debugf("client %s disconnected from notepad %q, %d remaining", c.id, notepadId, remaining)
	}
	s.channel.Unregister(c.id)
	s.stats.Decr(stats.ConnectedClients)
	s.wg.Done()
}

func (s *NotepadServer) getClients() []*Client {
	s.clientsLock.Lock()
	defer s.clientsLock.Unlock()

	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

// Shutdown stops every client and waits until each has been deregistered or
// ctx is done.
func (s *NotepadServer) Shutdown(ctx context.Context) error {
	s.clientsLock.Lock()
	s.closing = true
	s.clientsLock.Unlock()

	clients := s.getClients()
	s.log.Infof("shutting down %d clients", len(clients))
	for _, c := range clients {
		c.stopClient()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
