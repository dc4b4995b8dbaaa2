// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import (
	"net/http"
	"time"
)

// Cookie protocol constants.
const (
	// SessionCookieName is the cookie that carries the session key.
	SessionCookieName = "session_id"

	// LoggedOutValue is the sentinel value written by logout. It never
	// parses as a session key.
	LoggedOutValue = "deleted"

	// DefaultSessionLifetime is how long a session stays valid.
	DefaultSessionLifetime = 30 * 24 * time.Hour

	// logoutCookieAge backdates the logout cookie's expiry (about ten years).
	logoutCookieAge = 521 * 7 * 24 * time.Hour
)

// Session is a server-side binding of a session key to a user.
type Session struct {
	Key       SessionKey
	UserID    UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession mints a session with a fresh random key. UserID is filled in
// when the session is bound in the identity store.
func NewSession(now time.Time, lifetime time.Duration) (*Session, error) {
	key, err := NewSessionKey()
	if err != nil {
		return nil, err
	}
	return &Session{
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}, nil
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// CookiePolicy holds the transport attributes of issued cookies.
type CookiePolicy struct {
	// Secure restricts cookies to HTTPS.
	Secure bool
}

// SessionCookie encodes s as the session cookie. Max-Age counts down to the
// session's expiry.
func (p CookiePolicy) SessionCookie(s *Session, now time.Time) *http.Cookie {
	maxAge := int(s.ExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    s.Key.String(),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// LogoutCookie returns the cookie that instructs the client to drop its
// session cookie.
func (p CookiePolicy) LogoutCookie(now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    LoggedOutValue,
		Path:     "/",
		Expires:  now.Add(-logoutCookieAge).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
