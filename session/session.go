// Package session tracks per-conversation state: the conversation history
// manager and any action parked for confirmation. Turns within one session
// are strictly serialized by the session lock; turns in different sessions
// proceed concurrently.
//
// Additional backends (Redis, Postgres, etc.) only need to implement Store;
// the wiring layer decides which implementation to instantiate.
package session

import (
	"sync"
	"time"

	"github.com/barefootzenith/supportmesh/coordinator"
	"github.com/barefootzenith/supportmesh/history"
)

// Session is the durable state of one conversation.
type Session struct {
	ID         string
	History    *history.Manager
	Pending    *coordinator.PendingAction
	CreatedAt  time.Time
	LastActive time.Time

	mu sync.Mutex
}

// Lock acquires the session's turn lock. While held, no other turn may run
// in this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the turn lock, recording activity.
func (s *Session) Unlock() {
	s.LastActive = time.Now().UTC()
	s.mu.Unlock()
}

// Store provides session lookup and lifecycle.
type Store interface {
	// GetOrCreate returns the session with the given id, creating it on
	// first use.
	GetOrCreate(sessionID string) (*Session, error)
	// Delete removes a session and its history. Deleting an unknown id is
	// a no-op.
	Delete(sessionID string) error
}

// InMemoryStore is a volatile Store keeping sessions in a process-local map.
// It is safe for concurrent access and suited for tests and single-process
// deployments.
type InMemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	newHistory func() (*history.Manager, error)
}

// NewInMemoryStore constructs an empty store. newHistory builds the history
// manager for each fresh session.
func NewInMemoryStore(newHistory func() (*history.Manager, error)) *InMemoryStore {
	return &InMemoryStore{
		sessions:   make(map[string]*Session),
		newHistory: newHistory,
	}
}

// GetOrCreate implements Store. Sessions are created lazily on first use.
func (s *InMemoryStore) GetOrCreate(sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess, nil
	}
	hist, err := s.newHistory()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess = &Session{ID: sessionID, History: hist, CreatedAt: now, LastActive: now}
	s.sessions[sessionID] = sess
	return sess, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
