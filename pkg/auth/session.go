package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// SessionKey is the cache key of the persisted session.
const SessionKey = "session"

// defaultLifetime is assumed when the access token carries no exp claim.
const defaultLifetime = 24 * time.Hour

var (
	// ErrAuth means the credentials were rejected, the auth endpoint could
	// not be reached, or every authentication tier failed.
	ErrAuth = errors.New("authentication failed")

	// ErrSessionExpired is the internal signal that the current token was
	// rejected. It never leaves the Manager.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotLoggedIn means no session has been persisted yet.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Credentials are kept with the session so the last tier can log in again.
type Credentials struct {
	Username string
	Password string
}

// Session is the authenticated state persisted between invocations.
type Session struct {
	Token       oauth2.Token
	BaseURL     string
	AccountID   int
	Credentials *Credentials
}

// ExpiresAt is when the access token stops being accepted.
func (s *Session) ExpiresAt() time.Time {
	return s.Token.Expiry
}

// tokenExpiry reads the exp claim of an access token without verifying its
// signature. Tokens that are not JWTs, or carry no exp, live for
// defaultLifetime from now.
func tokenExpiry(access string, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now.Add(defaultLifetime)
}

func newToken(access, refresh string, now time.Time) oauth2.Token {
	return oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Expiry:       tokenExpiry(access, now),
	}
}
