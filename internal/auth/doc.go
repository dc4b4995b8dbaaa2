// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

// Package auth provides the session-based identity primitives for aosauth.
//
// # Domain Types
//
// Values crossing the trust boundary are parsed into validated types before
// any other code sees them:
//   - ParseEmail - trims and lower-cases, then checks the address shape
//   - ParsePassword - rejects empty passwords; the value never prints
//   - ParseSessionKey - accepts only the canonical UUID text form
//
// PasswordHash and SessionKey redact themselves in logs.
//
// # Services
//
// Service coordinates the flows that need both the IdentityStore and the
// PasswordHasher:
//   - Login - verifies credentials and binds a fresh session
//   - Logout - revokes the session and returns the clearing cookie
//   - Authenticate - resolves a request's session cookie to a UserID
//   - Register - hashes a password and creates the user
//
// Failures wrap the sentinels in errors.go; use errors.Is to classify them.
package auth
