package session

import (
	"context"
	"sync"
	"time"
)

// Store abstracts session persistence so handlers never touch global
// state. Implementations must return copies from Get; changes become
// visible only through Put.
type Store interface {
	// Get returns the session for id, or false if it does not exist or
	// has been idle longer than the store's timeout.
	Get(id string) (*Session, bool)
	// Put creates or replaces the session stored under id.
	Put(id string, s *Session)
	// Update replaces the session stored under id only while it still
	// exists and has not expired. It reports whether it did.
	Update(id string, s *Session) bool
	// Delete removes the session for id.
	Delete(id string)
}

// MemoryStore keeps sessions in process memory with an idle timeout.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	idleTimeout time.Duration
	now         func() time.Time
}

func NewMemoryStore(idleTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*Session),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return m.idleTimeout > 0 && now.Sub(s.LastActivity) > m.idleTimeout
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if m.expired(s, m.now()) {
		m.Delete(id)
		return nil, false
	}
	return s.clone(), true
}

func (m *MemoryStore) Put(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s.clone()
}

func (m *MemoryStore) Update(id string, s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[id]
	if !ok {
		return false
	}
	if m.expired(current, m.now()) {
		delete(m.sessions, id)
		return false
	}
	m.sessions[id] = s.clone()
	return true
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes idle sessions.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker runs Cleanup every interval until ctx is done.
func (m *MemoryStore) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
