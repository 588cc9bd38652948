package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

const (
	sessionCookieName = "lifeops_session"
	sessionLifetime   = 7 * 24 * time.Hour
)

// SessionManager tracks web sessions server-side under opaque random ids,
// so sign-out can revoke every open session at once.
type SessionManager struct {
	secure bool
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewSessionManager(secure bool) *SessionManager {
	return &SessionManager{
		secure:   secure,
		now:      time.Now,
		sessions: map[string]time.Time{},
	}
}

// Issue opens a session and sets its cookie.
func (m *SessionManager) Issue(w http.ResponseWriter) error {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	id := hex.EncodeToString(buf)
	expires := m.now().Add(sessionLifetime)

	m.mu.Lock()
	m.sessions[id] = expires
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Valid reports whether the request carries a live session cookie.
func (m *SessionManager) Valid(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expires, ok := m.sessions[cookie.Value]
	if !ok {
		return false
	}
	if m.now().After(expires) {
		delete(m.sessions, cookie.Value)
		return false
	}
	return true
}

// Clear drops the request's session and its cookie.
func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		m.mu.Lock()
		delete(m.sessions, cookie.Value)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:    sessionCookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		Secure:  m.secure,
	})
}

// RevokeAll drops every open session; used on sign-out after an
// unauthorized remote response.
func (m *SessionManager) RevokeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = map[string]time.Time{}
}
