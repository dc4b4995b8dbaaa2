// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosauth/aosauth/internal/auth"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestNewSession(t *testing.T) {
	s, err := auth.NewSession(fixedNow, time.Hour)
	require.NoError(t, err)

	assert.False(t, s.Key.IsZero())
	assert.Equal(t, fixedNow, s.CreatedAt)
	assert.Equal(t, fixedNow.Add(time.Hour), s.ExpiresAt)
	assert.False(t, s.IsExpired(fixedNow))
	assert.False(t, s.IsExpired(fixedNow.Add(59*time.Minute)))
	assert.True(t, s.IsExpired(fixedNow.Add(time.Hour)))
}

func TestCookiePolicy_SessionCookie(t *testing.T) {
	s, err := auth.NewSession(fixedNow, auth.DefaultSessionLifetime)
	require.NoError(t, err)

	c := auth.CookiePolicy{}.SessionCookie(s, fixedNow)

	assert.Equal(t, "session_id", c.Name)
	assert.Equal(t, s.Key.String(), c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 30*24*60*60, c.MaxAge)

	parsed, err := auth.ParseSessionKey(c.Value)
	require.NoError(t, err)
	assert.Equal(t, s.Key, parsed)
}

func TestCookiePolicy_SecureFlag(t *testing.T) {
	s, err := auth.NewSession(fixedNow, time.Hour)
	require.NoError(t, err)

	policy := auth.CookiePolicy{Secure: true}
	assert.True(t, policy.SessionCookie(s, fixedNow).Secure)
	assert.True(t, policy.LogoutCookie(fixedNow).Secure)
}

func TestCookiePolicy_SessionCookieAfterExpiry(t *testing.T) {
	s, err := auth.NewSession(fixedNow, time.Minute)
	require.NoError(t, err)

	c := auth.CookiePolicy{}.SessionCookie(s, fixedNow.Add(time.Hour))
	assert.Negative(t, c.MaxAge)
}

func TestCookiePolicy_LogoutCookie(t *testing.T) {
	c := auth.CookiePolicy{}.LogoutCookie(fixedNow)

	assert.Equal(t, "session_id", c.Name)
	assert.Equal(t, "deleted", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.Negative(t, c.MaxAge)
	assert.True(t, c.Expires.Before(fixedNow.AddDate(-9, 0, 0)))

	_, err := auth.ParseSessionKey(c.Value)
	assert.ErrorIs(t, err, auth.ErrMalformedKey)
}
