// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import "context"

// IdentityStore is the persistence the login flow and session protocol
// depend on. Lookups return found=false for absent entries; err is reserved
// for storage failures.
type IdentityStore interface {
	// PasswordHashFromEmail returns the stored hash for email.
	PasswordHashFromEmail(ctx context.Context, email Email) (PasswordHash, bool, error)

	// UserIDFromSession resolves a live session binding.
	UserIDFromSession(ctx context.Context, key SessionKey) (UserID, bool, error)

	// CreateUser registers email with hash, or returns the existing id
	// without touching the stored hash.
	CreateUser(ctx context.Context, email Email, hash PasswordHash) (UserID, error)

	// SetSession binds session to the user registered under email and
	// returns that user's id. Unregistered emails yield ErrNoSuchUser.
	SetSession(ctx context.Context, email Email, session *Session) (UserID, error)

	// DeleteSession removes a session binding. Deleting an absent binding
	// is not an error.
	DeleteSession(ctx context.Context, key SessionKey) error
}
