package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/amirk1998/daybook/pkg/errors"
)

const DefaultCookieName = "daybook_session"

// Manager binds server-side sessions to a signed, http-only cookie that
// carries nothing but the session id.
type Manager struct {
	store      Store
	codec      *securecookie.SecureCookie
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewManager(store Store, hashKey []byte, cookieName string, secure bool) *Manager {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Manager{
		store:      store,
		codec:      securecookie.New(hashKey, nil),
		cookieName: cookieName,
		secure:     secure,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string { return m.cookieName }

// Create starts a fresh session after a successful credential check.
// A session referenced by the request's cookie is discarded first.
func (m *Manager) Create(w http.ResponseWriter, r *http.Request, userID int, username string) (*Session, error) {
	if id, ok := m.sessionID(r); ok {
		m.store.Delete(id)
	}

	now := m.now()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Username:     username,
		CreatedAt:    now,
		LastActivity: now,
	}

	encoded, err := m.codec.Encode(m.cookieName, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session cookie: %w", err)
	}

	m.store.Put(s.ID, s)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return s, nil
}

// Load resolves the request's session and refreshes its last activity.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	id, ok := m.sessionID(r)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	s, ok := m.store.Get(id)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	s.LastActivity = m.now()
	if !m.store.Update(id, s) {
		return nil, errors.ErrUnauthorized
	}
	return s, nil
}

// Save persists changes made to s during a request. A session destroyed
// or expired in the meantime stays gone; Save reports false then.
func (m *Manager) Save(s *Session) bool {
	s.LastActivity = m.now()
	return m.store.Update(s.ID, s)
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if id, ok := m.sessionID(r); ok {
		m.store.Delete(id)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	var id string
	if err := m.codec.Decode(m.cookieName, c.Value, &id); err != nil {
		return "", false
	}
	return id, id != ""
}
