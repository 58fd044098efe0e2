package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	session   *Session
	expiresAt time.Time
}

// Manager хранит сессии в памяти процесса
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]entry // chatID -> session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager создаёт менеджер сессий. ttl <= 0 означает без срока.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[int64]entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get получает сессию чата, копию, чтобы избежать race condition
func (m *Manager) Get(_ context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[chatID]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.sessions[chatID]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.sessions, chatID)
		}
		m.mu.Unlock()
		return nil, nil
	}

	return e.session.clone(), nil
}

// Set сохраняет сессию и продлевает её срок
func (m *Manager) Set(_ context.Context, chatID int64, s *Session) error {
	now := m.now()
	s.UpdatedAt = now

	e := entry{session: s.clone()}
	if m.ttl > 0 {
		e.expiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[chatID] = e
	return nil
}

// Delete удаляет сессию (logout)
func (m *Manager) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, chatID)
	return nil
}
