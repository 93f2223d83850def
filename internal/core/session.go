package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/iconforge/internal/backend/icons"
	"github.com/jo-hoe/iconforge/internal/metrics"
)

// Session holds the latest generation run of one browser
type Session struct {
	ID string

	mu       sync.RWMutex
	master   *icons.MasterImage
	icons    []icons.GeneratedIcon
	lastSeen time.Time
}

// Icons returns a copy of the current run
func (s *Session) Icons() []icons.GeneratedIcon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]icons.GeneratedIcon, len(s.icons))
	copy(out, s.icons)
	return out
}

// Master returns the master image of the current run, or nil
func (s *Session) Master() *icons.MasterImage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.master
}

// replace swaps in a completed run
func (s *Session) replace(master *icons.MasterImage, list []icons.GeneratedIcon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = master
	s.icons = list
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// SessionStore keeps sessions in memory and forgets idle ones after ttl
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the session for id and marks it as used
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	session, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		session.touch(st.now())
	}
	return session, ok
}

// GetOrCreate returns the session for id, or a new session with a fresh id
func (st *SessionStore) GetOrCreate(id string) *Session {
	if id != "" {
		if session, ok := st.Get(id); ok {
			return session
		}
	}

	session := &Session{ID: uuid.NewString(), lastSeen: st.now()}
	st.mu.Lock()
	st.sessions[session.ID] = session
	count := len(st.sessions)
	st.mu.Unlock()
	metrics.ActiveSessions.Set(float64(count))
	return session
}

// Prune drops sessions idle for longer than the ttl and returns how many were dropped
func (st *SessionStore) Prune() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, session := range st.sessions {
		if session.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(st.sessions)))
	return removed
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
