package session

import (
	"log"
	"sync"
	"time"
)

// Store is the in-memory registry of active sessions. It is the only
// shared mutable resource in the service; the catalog and clients are
// read-only. A session judged idle-expired by either the periodic sweep
// or the lazy check on read behaves as if it never existed.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	now         func() time.Time
}

// NewStore creates a session store. The clock is injectable so tests
// can advance time without sleeping; pass nil for time.Now.
func NewStore(idleTimeout time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         now,
	}
}

// Now returns the store's current time.
func (st *Store) Now() time.Time { return st.now() }

// Create registers a session.
func (st *Store) Create(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get returns the session for id. A session idle beyond the timeout is
// evicted on the spot and reported as not found, indistinguishable from
// an id that never existed.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if st.expired(s) {
		delete(st.sessions, id)
		return nil, false
	}
	return s, true
}

// Touch refreshes a session's last-activity timestamp.
func (st *Store) Touch(id string) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.LastActivityAt = st.now()
	s.mu.Unlock()
}

// Delete removes a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Count returns the number of registered sessions, expired or not.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// SweepExpired removes every session idle beyond the timeout and
// returns how many were evicted.
func (st *Store) SweepExpired() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for id, s := range st.sessions {
		if st.expired(s) {
			delete(st.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("Evicted %d expired sessions", evicted)
	}
	return evicted
}

func (st *Store) expired(s *Session) bool {
	s.mu.Lock()
	last := s.LastActivityAt
	s.mu.Unlock()
	return st.now().Sub(last) > st.idleTimeout
}
