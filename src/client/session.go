package client

import (
	"strconv"
	"sync"
	"time"

	"accessbus/src/types"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens is the persisted form of a Session.
type Tokens struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	UserID       uint       `json:"user_id"`
	Role         types.Role `json:"role"`
}

// Session holds the credentials of the signed in user. The zero value is an
// empty session.
type Session struct {
	mu        sync.RWMutex
	access    string
	refresh   string
	userID    uint
	role      types.Role
	expiresAt time.Time
}

func NewSession() *Session {
	return &Session{}
}

// unverifiedClaims reads the token payload. The server verifies signatures;
// the client only needs role, subject and expiry.
func unverifiedClaims(token string) *types.Claims {
	if token == "" {
		return nil
	}
	claims := &types.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

func (s *Session) Set(t Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = t.AccessToken
	s.refresh = t.RefreshToken
	s.userID = t.UserID
	s.role = t.Role
	s.expiresAt = time.Time{}
	s.applyClaims(unverifiedClaims(t.AccessToken))
}

func (s *Session) applyClaims(c *types.Claims) {
	if c == nil {
		return
	}
	if c.Role != "" {
		s.role = c.Role
	}
	if id, err := strconv.ParseUint(c.Subject, 10, 64); err == nil {
		s.userID = uint(id)
	}
	if c.ExpiresAt != nil {
		s.expiresAt = c.ExpiresAt.Time
	}
}

// UpdateAccess swaps the access token after a refresh.
func (s *Session) UpdateAccess(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
	s.applyClaims(unverifiedClaims(token))
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	s.userID = 0
	s.role = ""
	s.expiresAt = time.Time{}
}

func (s *Session) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Session) Role() types.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) UserID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != "" || s.refresh != ""
}

func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Tokens{
		AccessToken:  s.access,
		RefreshToken: s.refresh,
		UserID:       s.userID,
		Role:         s.role,
	}
}
