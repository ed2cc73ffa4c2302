package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 24 * time.Hour

// Session is an authenticated browser session.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// SessionStore is a thread-safe LRU of live sessions. When full, the least
// recently used session is evicted. Expired sessions are dropped on lookup.
type SessionStore struct {
	ttl        time.Duration
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	session Session
	prev    *entry
	next    *entry
}

// NewSessionStore creates a session store holding at most maxEntries sessions.
func NewSessionStore(ttl time.Duration, maxEntries int, clock clockwork.Clock) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

// TTL returns the lifetime of new sessions.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Create starts a session for username.
func (s *SessionStore) Create(username string) Session {
	sess := Session{
		Token:     uuid.NewString(),
		Username:  username,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{session: sess}
	s.entries[sess.Token] = e
	s.addToFront(e)
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.evictTail()
	}
	return sess
}

// Lookup returns the live session for token.
func (s *SessionStore) Lookup(token string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return Session{}, false
	}
	if !s.clock.Now().Before(e.session.ExpiresAt) {
		delete(s.entries, token)
		s.remove(e)
		return Session{}, false
	}
	s.moveToFront(e)
	return e.session, true
}

// Revoke ends a session. Revoking an unknown token is a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[token]; ok {
		delete(s.entries, token)
		s.remove(e)
	}
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SessionStore) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

func (s *SessionStore) addToFront(e *entry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *SessionStore) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
}

func (s *SessionStore) evictTail() {
	if s.tail == nil {
		return
	}
	delete(s.entries, s.tail.session.Token)
	s.remove(s.tail)
}
