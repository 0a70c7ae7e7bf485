package collab

import "sync"

// sequencer serializes work per notepad id. Entries are reference counted and
// dropped when no caller holds or waits on them.
type sequencer struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newSequencer() *sequencer {
	return &sequencer{locks: make(map[string]*docLock)}
}

// lock blocks until the caller owns notepadId and returns the release func.
func (s *sequencer) lock(notepadId string) func() {
	s.mu.Lock()
	l, ok := s.locks[notepadId]
	if !ok {
		l = &docLock{}
		s.locks[notepadId] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, notepadId)
		}
		s.mu.Unlock()
	}
}

func (s *sequencer) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
