package storeclient

import "sync"

// Session is the credential pair issued by the user service.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// SessionStore holds the most recently stored session.
type SessionStore interface {
	Load() (Session, bool)
	Save(Session)
	Clear()
}

// MemorySessionStore is a SessionStore safe for concurrent use.
type MemorySessionStore struct {
	mu      sync.RWMutex
	session Session
	ok      bool
}

// NewMemorySessionStore returns a store seeded with s when s carries a token.
func NewMemorySessionStore(s Session) *MemorySessionStore {
	return &MemorySessionStore{session: s, ok: s.Token != ""}
}

func (m *MemorySessionStore) Load() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.ok
}

func (m *MemorySessionStore) Save(s Session) {
	m.mu.Lock()
	m.session, m.ok = s, s.Token != ""
	m.mu.Unlock()
}

func (m *MemorySessionStore) Clear() {
	m.mu.Lock()
	m.session, m.ok = Session{}, false
	m.mu.Unlock()
}
