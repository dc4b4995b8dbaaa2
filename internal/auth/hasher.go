// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultArgon2Time    = 1         // iterations
	DefaultArgon2Memory  = 64 * 1024 // 64 MB
	DefaultArgon2Threads = 4         // parallelism

	argon2SaltLen = 16 // salt length in bytes
	argon2KeyLen  = 32 // output length in bytes

	// maxArgon2Memory bounds what a stored hash may ask for (4 GB).
	maxArgon2Memory = 4 * 1024 * 1024
)

// MinHashKeyLen is the minimum accepted secret key length in bytes.
const MinHashKeyLen = 16

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted, keyed hash of the password.
	Hash(ctx context.Context, password Password) (PasswordHash, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an error
	// wrapping ErrVerification when the hash cannot be evaluated.
	Verify(ctx context.Context, password Password, hash PasswordHash) (bool, error)
}

// Argon2Params are the cost parameters used for new hashes. Verification
// always uses the parameters recorded in the stored hash.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultArgon2Params returns the OWASP-recommended parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    DefaultArgon2Time,
		Memory:  DefaultArgon2Memory,
		Threads: DefaultArgon2Threads,
	}
}

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithParams sets the cost parameters for new hashes.
func WithParams(p Argon2Params) HasherOption {
	return func(h *Argon2idHasher) {
		h.params = p
	}
}

// WithMaxConcurrent bounds the number of argon2 computations in flight.
func WithMaxConcurrent(n int) HasherOption {
	return func(h *Argon2idHasher) {
		if n > 0 {
			h.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// Argon2idHasher implements PasswordHasher using argon2id. The password is
// first keyed with HMAC-SHA256 under the process-wide secret, so hashes
// cannot be verified without that secret.
//
// An Argon2idHasher is immutable after construction and safe for
// concurrent use.
type Argon2idHasher struct {
	key    []byte
	params Argon2Params
	sem    *semaphore.Weighted
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a hasher keyed with secret.
func NewArgon2idHasher(secret []byte, opts ...HasherOption) (*Argon2idHasher, error) {
	if len(secret) < MinHashKeyLen {
		return nil, oops.Code("AUTH_HASH_KEY_INVALID").
			With("min_length", MinHashKeyLen).
			Errorf("hash key must be at least %d bytes", MinHashKeyLen)
	}

	h := &Argon2idHasher{
		key:    append([]byte(nil), secret...),
		params: DefaultArgon2Params(),
		sem:    semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.params.Time == 0 || h.params.Memory == 0 || h.params.Threads == 0 {
		return nil, oops.Code("AUTH_HASH_PARAMS_INVALID").
			With("time", h.params.Time).
			With("memory", h.params.Memory).
			With("threads", h.params.Threads).
			Errorf("argon2 parameters must be positive")
	}

	return h, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(ctx context.Context, password Password) (PasswordHash, error) {
	if password.IsZero() {
		return "", oops.Code("AUTH_EMPTY_PASSWORD").Wrap(ErrValidation)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("stage", "acquire").Wrap(errors.Join(ErrHashing, err))
	}
	defer h.sem.Release(1)

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("stage", "salt").Wrap(errors.Join(ErrHashing, err))
	}

	p := h.params
	hash := argon2.IDKey(h.keyed(password), salt, p.Time, p.Memory, p.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Time,
		p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return PasswordHash(encoded), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(ctx context.Context, password Password, hash PasswordHash) (bool, error) {
	params, salt, expected, err := decodeHash(hash.Encoded())
	if err != nil {
		return false, err
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_VERIFY_FAILED").With("stage", "acquire").Wrap(errors.Join(ErrVerification, err))
	}
	defer h.sem.Release(1)

	//nolint:gosec // keyLen bounded by decodeHash
	computed := argon2.IDKey(h.keyed(password), salt, params.Time, params.Memory, params.Threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func (h *Argon2idHasher) keyed(password Password) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(password.bytes())
	return mac.Sum(nil)
}

func invalidHash(reason string) error {
	return oops.Code("AUTH_INVALID_HASH").With("reason", reason).Wrap(ErrVerification)
}

// decodeHash parses a PHC-formatted argon2id hash.
func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return params, nil, nil, invalidHash("format")
	}
	if parts[1] != "argon2id" {
		return params, nil, nil, invalidHash("algorithm")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, invalidHash("version")
	}
	if version != argon2.Version {
		return params, nil, nil, invalidHash("version")
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return params, nil, nil, invalidHash("parameters")
	}
	if threads == 0 || threads > 255 || time == 0 || memory == 0 || memory > maxArgon2Memory {
		return params, nil, nil, invalidHash("parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, invalidHash("salt")
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, invalidHash("hash")
	}
	if len(expected) == 0 || len(expected) > 1024 {
		return params, nil, nil, invalidHash("key length")
	}

	params = Argon2Params{Time: time, Memory: memory, Threads: uint8(threads)}
	return params, salt, expected, nil
}
