package recovery

import (
	"sync"
	"time"
)

// Session is the server-held proof that security-answer verification
// succeeded for an account. Its existence authorizes exactly one password
// reset. It carries no question or answer data.
type Session struct {
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's lifetime has elapsed at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStore abstracts recovery-session persistence so the Protocol never
// touches ambient state. Tokens are opaque; the caller (typically the HTTP
// layer) decides how they reach the client.
type SessionStore interface {
	// Get retrieves a live session by token. Returns false if the
	// session does not exist or has expired.
	Get(token string) (Session, bool)
	// Put creates or replaces the session for the given token.
	Put(token string, session Session)
	// Delete removes a session by token.
	Delete(token string)
}

// MemorySessionStore is a thread-safe in-memory SessionStore. Sessions are
// lost on restart, which is acceptable: an interrupted recovery simply
// restarts from the beginning.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string]Session)}
}

func (s *MemorySessionStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.data[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if session.Expired(time.Now()) {
		s.Delete(token)
		return Session{}, false
	}
	return session, true
}

func (s *MemorySessionStore) Put(token string, session Session) {
	s.mu.Lock()
	s.data[token] = session
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}
