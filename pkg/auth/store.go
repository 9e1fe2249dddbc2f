// Package auth holds the token lifecycle consumed by the command channel:
// a process-wide token store shared by every open session, and the HTTP
// refresh collaborator that replaces an expired access token.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoRefreshToken is returned when a refresh is requested without a stored
// refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

// Tokens is the current access/refresh token pair.
type Tokens struct {
	Access  string `yaml:"access_token" json:"access_token"`
	Refresh string `yaml:"refresh_token" json:"refresh_token"`
}

// Identity is the subject decoded from the access token. The claims are not
// signature-verified client side; the backend is the enforcement point.
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

// Store holds the token pair shared across sessions. A refresh triggered by
// one session updates the store and benefits any other open session; the
// store holds only the latest value, so a concurrent refresh wastes a round
// trip but cannot corrupt state.
type Store struct {
	mu     sync.RWMutex
	tokens Tokens
}

// NewStore creates a Store seeded with the given token pair.
func NewStore(tokens Tokens) *Store {
	return &Store{tokens: tokens}
}

// Get returns the current token pair.
func (s *Store) Get() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// Set replaces the stored tokens. An empty refresh token keeps the previous
// one, matching refresh responses that rotate only the access token.
func (s *Store) Set(tokens Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tokens.Refresh == "" {
		tokens.Refresh = s.tokens.Refresh
	}
	s.tokens = tokens
}

// Clear wipes both tokens.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
}

// Identity decodes the stored access token's claims. Returns nil when no
// token is stored or the token is not a parseable JWT.
func (s *Store) Identity() *Identity {
	access := s.Get().Access
	if access == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(access, claims); err != nil {
		return nil
	}
	id := &Identity{}
	if sub, err := claims.GetSubject(); err == nil {
		id.UserID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id
}

// AccessExpired reports whether the stored access token carries an exp claim
// in the past. Opaque (non-JWT) tokens are treated as unexpired and left to
// the server to reject.
func (s *Store) AccessExpired(now time.Time) bool {
	id := s.Identity()
	if id == nil || id.ExpiresAt.IsZero() {
		return false
	}
	return now.After(id.ExpiresAt)
}
