// Package session holds the logged-in operator's identity and token as an
// explicit object with a begin/end lifecycle.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/xid"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrSessionInvalidated = errors.New("session invalidated")
)

type EndReason string

const (
	EndLogout      EndReason = "logout"
	EndDeactivated EndReason = "deactivated"
	EndExpired     EndReason = "expired"
	EndShutdown    EndReason = "shutdown"
)

type Session struct {
	ID         string
	Identity   domain.Identity
	Token      string
	StartedAt  time.Time
	ExpiresAt  time.Time
	Generation uint64
}

// Expired is false for tokens that carry no expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

type Manager struct {
	mu         sync.RWMutex
	current    *Session
	generation uint64
}

func NewManager() *Manager {
	return &Manager{}
}

// Begin replaces any existing session. The previous one, if any, is returned
// so the caller can tear it down.
func (m *Manager) Begin(result domain.LoginResult, now time.Time) (Session, *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	next := &Session{
		ID:         xid.New("sess"),
		Identity:   result.Identity,
		Token:      result.Token,
		StartedAt:  now,
		ExpiresAt:  TokenExpiry(result.Token),
		Generation: m.generation,
	}
	previous := m.current
	m.current = next
	return *next, previous
}

func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Require returns the current session or ErrNoSession.
func (m *Manager) Require() (Session, error) {
	s, ok := m.Current()
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// End clears the session if it is still the one identified by generation.
// It reports the ended session and whether anything was ended.
func (m *Manager) End(generation uint64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Generation != generation {
		return Session{}, false
	}
	ended := *m.current
	m.current = nil
	m.generation++
	return ended, true
}

// IsCurrent reports whether generation still names the live session. Results
// of requests started under an older generation are discarded.
func (m *Manager) IsCurrent(generation uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil && m.current.Generation == generation
}

// UpdateIdentity applies a profile change to the live session.
func (m *Manager) UpdateIdentity(generation uint64, name string, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.Generation != generation {
		return
	}
	m.current.Identity.Name = name
	m.current.Identity.Email = email
}

// TokenExpiry reads the exp claim without verifying the signature; the
// console does not hold the issuer's key. Opaque tokens yield a zero time.
func TokenExpiry(token string) time.Time {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}
	claims := &jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
