package collab

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequencer_SerializesSameNotepad(t *testing.T) {
	s := newSequencer()

	release := s.lock("doc1")
	acquired := make(chan struct{})
	go func() {
		r := s.lock("doc1")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("expected second lock on the same notepad to wait")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("timeout: second lock was never acquired")
	}
}

func TestSequencer_IndependentNotepads(t *testing.T) {
	s := newSequencer()

	release := s.lock("doc1")
	defer release()

	done := make(chan struct{})
	go func() {
		s.lock("doc2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a different notepad not to wait")
	}
}

func TestSequencer_ReleasesEntries(t *testing.T) {
	s := newSequencer()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.lock("doc1")()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, s.len(), "expected no entries to remain once idle")
}
