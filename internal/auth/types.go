// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

const redacted = "[REDACTED]"

// maxEmailLength follows the RFC 5321 path limit.
const maxEmailLength = 254

// Email is a normalized email address. The zero value is not a valid email.
type Email string

// ParseEmail trims and lower-cases raw, then checks that it has a single
// "@" separating a non-empty local part from a non-empty domain.
func ParseEmail(raw string) (Email, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("reason", "empty").Wrap(ErrValidation)
	}
	if len(s) > maxEmailLength {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("reason", "too long").Wrap(ErrValidation)
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("reason", "whitespace").Wrap(ErrValidation)
	}
	local, domain, found := strings.Cut(s, "@")
	if !found || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", oops.Code("AUTH_INVALID_EMAIL").With("reason", "format").Wrap(ErrValidation)
	}
	return Email(s), nil
}

// String returns the normalized address.
func (e Email) String() string {
	return string(e)
}

// MarshalText implements encoding.TextMarshaler.
func (e Email) MarshalText() ([]byte, error) {
	return []byte(e), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and normalizes the input.
func (e *Email) UnmarshalText(text []byte) error {
	parsed, err := ParseEmail(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// Password is a plaintext password. It is never persisted and renders as
// [REDACTED] in every formatting and logging path.
type Password struct {
	secret string
}

// ParsePassword wraps raw as a Password. Empty passwords are rejected.
func ParsePassword(raw string) (Password, error) {
	if raw == "" {
		return Password{}, oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrValidation)
	}
	return Password{secret: raw}, nil
}

// IsZero reports whether p holds no password.
func (p Password) IsZero() bool {
	return p.secret == ""
}

func (p Password) bytes() []byte {
	return []byte(p.secret)
}

// String implements fmt.Stringer.
func (Password) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (Password) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (Password) LogValue() slog.Value { return slog.StringValue(redacted) }

// PasswordHash is an encoded argon2id hash in PHC string format.
type PasswordHash string

// String implements fmt.Stringer without revealing the hash.
func (PasswordHash) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (PasswordHash) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (PasswordHash) LogValue() slog.Value { return slog.StringValue(redacted) }

// Encoded returns the PHC string for persistence and verification.
func (h PasswordHash) Encoded() string {
	return string(h)
}

// UserID identifies a registered user. IDs are assigned by the identity
// store and are never reused.
type UserID uint64

// ParseUserID parses a decimal user id.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, oops.Code("AUTH_INVALID_USER_ID").Wrap(ErrValidation)
	}
	return UserID(n), nil
}

// String returns the decimal form of the id.
func (id UserID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// SessionKey is the opaque random identifier carried in the session cookie.
type SessionKey struct {
	id uuid.UUID
}

// canonicalUUIDLen is the length of the hyphenated 8-4-4-4-12 form.
const canonicalUUIDLen = 36

// NewSessionKey mints a random (version 4) session key.
func NewSessionKey() (SessionKey, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return SessionKey{}, oops.Code("AUTH_SESSION_KEY_FAILED").Wrap(err)
	}
	return SessionKey{id: id}, nil
}

// ParseSessionKey parses the canonical textual form of a session key.
// Anything else, including the URN and braced UUID forms, is rejected.
func ParseSessionKey(s string) (SessionKey, error) {
	if len(s) != canonicalUUIDLen {
		return SessionKey{}, oops.Code("AUTH_MALFORMED_KEY").Wrap(ErrMalformedKey)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return SessionKey{}, oops.Code("AUTH_MALFORMED_KEY").Wrap(ErrMalformedKey)
	}
	return SessionKey{id: id}, nil
}

// IsZero reports whether k is the zero key.
func (k SessionKey) IsZero() bool {
	return k.id == uuid.Nil
}

// String returns the canonical form used as the cookie value.
func (k SessionKey) String() string {
	return k.id.String()
}

// LogValue implements slog.LogValuer so keys never reach logs.
func (SessionKey) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalText implements encoding.TextMarshaler.
func (k SessionKey) MarshalText() ([]byte, error) {
	return []byte(k.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SessionKey) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
