// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import "errors"

// Sentinel errors for the authentication flow. They are wrapped with oops
// codes at the point of failure; match them with errors.Is.
var (
	// ErrValidation indicates malformed user input (email, password).
	ErrValidation = errors.New("invalid input")

	// ErrNoCookie indicates a protected request carried no session cookie.
	ErrNoCookie = errors.New("no session cookie")

	// ErrMalformedKey indicates the session cookie value is not a session key.
	ErrMalformedKey = errors.New("malformed session key")

	// ErrUnknownSession indicates a well-formed key with no live binding.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNoSuchAccount indicates login for an email that is not registered.
	ErrNoSuchAccount = errors.New("no such account")

	// ErrBadCredentials indicates a password mismatch.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrNoSuchUser indicates a session bind for an unregistered email.
	ErrNoSuchUser = errors.New("no such user")

	// ErrInfrastructure indicates a storage or hashing failure. Callers
	// should treat it as a server fault, never as a failed login.
	ErrInfrastructure = errors.New("infrastructure failure")

	// ErrHashing indicates the password hasher could not produce a hash.
	ErrHashing = errors.New("password hashing failed")

	// ErrVerification indicates the hasher could not evaluate a stored hash.
	// It is distinct from a mismatch.
	ErrVerification = errors.New("password verification failed")
)

// IsUnauthenticated reports whether err is one of the unauthenticated
// outcomes (missing cookie, malformed key, unknown session, no account,
// bad credentials).
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrNoCookie) ||
		errors.Is(err, ErrMalformedKey) ||
		errors.Is(err, ErrUnknownSession) ||
		errors.Is(err, ErrNoSuchAccount) ||
		errors.Is(err, ErrBadCredentials)
}
