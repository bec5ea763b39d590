package whatsapp

import (
	"sync"
	"time"
)

// Sessions remembers the last document each sender uploaded.
// Entries idle longer than ttl are forgotten.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]session
	ttl     time.Duration
	now     func() time.Time
}

type session struct {
	documentID string
	touched    time.Time
}

// NewSessions creates an empty session table. A non-positive ttl keeps entries forever.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		entries: make(map[string]session),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the sender's document id and refreshes the entry.
func (s *Sessions) Get(sender string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sender]
	if !ok {
		return "", false
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(e.touched) >= s.ttl {
		delete(s.entries, sender)
		return "", false
	}
	e.touched = now
	s.entries[sender] = e
	return e.documentID, true
}

func (s *Sessions) Set(sender, documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sender] = session{documentID: documentID, touched: s.now()}
}

func (s *Sessions) Clear(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sender)
}

// Sweep drops idle entries and returns how many were removed.
func (s *Sessions) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for k, e := range s.entries {
		if now.Sub(e.touched) >= s.ttl {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
