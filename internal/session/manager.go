package session

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")

	// ErrUserBusy rejects a second concurrent session for a user_id.
	// Dialogue memory writes for one user are only safe because at most
	// one session is active per user.
	ErrUserBusy = errors.New("user already has an active session")
)

// Manager tracks active sessions and enforces the single active session
// per user rule.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	sessionByUser map[string]string
}

func NewManager() *Manager {
	return &Manager{
		sessions:      make(map[string]*Session),
		sessionByUser: make(map[string]string),
	}
}

func (m *Manager) Create(userID, language string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.sessionByUser[userID]; busy {
		return nil, ErrUserBusy
	}

	s := newSession(userID, language)
	m.sessions[s.ID] = s
	m.sessionByUser[userID] = s.ID
	return s, nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// End marks the session ended and releases the user slot. Ending twice
// is an error; the record save path relies on exactly-once ending.
func (m *Manager) End(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status == StatusEnded {
		return ErrNotFound
	}
	s.Status = StatusEnded
	s.EndedAt = time.Now().UTC()
	delete(m.sessionByUser, s.UserID)
	return nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}
