package service

import (
	"sync"
	"time"

	"clinical-annotator/models"

	"github.com/google/uuid"
)

// Session holds the state of one annotator working through one document.
// All service operations take the session explicitly.
type Session struct {
	ID          uuid.UUID
	AnnotatorID string
	FileName    string

	mu           sync.Mutex
	document     *models.Document
	currentIndex int
}

// CurrentIndex returns the zero-based index of the note being viewed
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// NoteCount returns the number of notes in the session's document
func (s *Session) NoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.document.Notes)
}

// SessionStore keeps active sessions in memory. Sessions not looked up for
// longer than the idle timeout are dropped; a zero timeout keeps them until
// they are removed.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]*Session
	lastSeen    map[uuid.UUID]time.Time
	idleTimeout time.Duration
	now         func() time.Time
}

// NewSessionStore creates an empty session store
func NewSessionStore(idleTimeout time.Duration) *SessionStore {
	return &SessionStore{
		sessions:    make(map[uuid.UUID]*Session),
		lastSeen:    make(map[uuid.UUID]time.Time),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Add registers a session and drops any that have expired
func (st *SessionStore) Add(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pruneLocked()
	st.sessions[s.ID] = s
	st.lastSeen[s.ID] = st.now()
}

// Get looks up a session by ID and marks it as used
func (st *SessionStore) Get(id uuid.UUID) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if st.expiredLocked(id) {
		st.removeLocked(id)
		return nil, false
	}
	st.lastSeen[id] = st.now()
	return s, true
}

// Remove forgets a session
func (st *SessionStore) Remove(id uuid.UUID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.removeLocked(id)
}

// Len returns the number of sessions held, expired ones included until the
// next Add
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) expiredLocked(id uuid.UUID) bool {
	return st.idleTimeout > 0 && st.now().Sub(st.lastSeen[id]) > st.idleTimeout
}

func (st *SessionStore) pruneLocked() {
	for id := range st.sessions {
		if st.expiredLocked(id) {
			st.removeLocked(id)
		}
	}
}

func (st *SessionStore) removeLocked(id uuid.UUID) {
	delete(st.sessions, id)
	delete(st.lastSeen, id)
}
