package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshLeeway is how long before expiry a token is considered stale.
const refreshLeeway = 30 * time.Second

// Session holds the bearer tokens for the authenticated user. The
// access token's expiry is read from its JWT claims (unverified: the
// server is the authority; the client only needs the timestamp) so the
// token can be refreshed proactively instead of on the first 401.
type Session struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// Set installs a new token pair.
func (s *Session) Set(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = accessToken
	s.refreshToken = refreshToken
	s.expiresAt = tokenExpiry(accessToken)
}

// tokenExpiry extracts the exp claim. A token without a readable expiry
// is treated as non-expiring; the server will still reject it if stale.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Token returns the current access token, refreshing it first through
// refreshFn when it is about to expire.
func (s *Session) Token(ctx context.Context, refreshFn func(ctx context.Context, refreshToken string) (access, refresh string, err error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken == "" {
		return "", nil
	}
	if s.expiresAt.IsZero() || time.Until(s.expiresAt) > refreshLeeway || s.refreshToken == "" || refreshFn == nil {
		return s.accessToken, nil
	}

	access, refresh, err := refreshFn(ctx, s.refreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing session: %w", err)
	}
	s.accessToken = access
	s.refreshToken = refresh
	s.expiresAt = tokenExpiry(access)
	return s.accessToken, nil
}

// Clear drops the session tokens.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}
