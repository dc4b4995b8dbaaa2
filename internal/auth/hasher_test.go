// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/pkg/errutil"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

// cheapParams keeps the suite fast; production uses DefaultArgon2Params.
var cheapParams = auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}

func newTestHasher(t *testing.T, key []byte) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasher(key, auth.WithParams(cheapParams), auth.WithMaxConcurrent(2))
	require.NoError(t, err)
	return h
}

func mustPassword(t *testing.T, raw string) auth.Password {
	t.Helper()
	p, err := auth.ParsePassword(raw)
	require.NoError(t, err)
	return p
}

func TestNewArgon2idHasher(t *testing.T) {
	t.Run("rejects short key", func(t *testing.T) {
		_, err := auth.NewArgon2idHasher([]byte("short"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_HASH_KEY_INVALID")
	})

	t.Run("rejects zero parameters", func(t *testing.T) {
		_, err := auth.NewArgon2idHasher(testHashKey, auth.WithParams(auth.Argon2Params{}))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_HASH_PARAMS_INVALID")
	})

	t.Run("defaults", func(t *testing.T) {
		h, err := auth.NewArgon2idHasher(testHashKey)
		require.NoError(t, err)
		assert.NotNil(t, h)
	})
}

func TestArgon2idHasher_Hash(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, testHashKey)

	t.Run("produces PHC format", func(t *testing.T) {
		hash, err := h.Hash(ctx, mustPassword(t, "pw1"))
		require.NoError(t, err)

		encoded := hash.Encoded()
		assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))
		assert.Len(t, strings.Split(encoded, "$"), 6)
	})

	t.Run("salts every hash", func(t *testing.T) {
		a, err := h.Hash(ctx, mustPassword(t, "same"))
		require.NoError(t, err)
		b, err := h.Hash(ctx, mustPassword(t, "same"))
		require.NoError(t, err)
		assert.NotEqual(t, a.Encoded(), b.Encoded())
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := h.Hash(ctx, auth.Password{})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrValidation)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, testHashKey)

	hash, err := h.Hash(ctx, mustPassword(t, "pw1"))
	require.NoError(t, err)

	t.Run("matching password", func(t *testing.T) {
		ok, err := h.Verify(ctx, mustPassword(t, "pw1"), hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("different password", func(t *testing.T) {
		ok, err := h.Verify(ctx, mustPassword(t, "pw2"), hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different key never verifies", func(t *testing.T) {
		other := newTestHasher(t, []byte("fedcba9876543210fedcba9876543210"))
		ok, err := other.Verify(ctx, mustPassword(t, "pw1"), hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verifies with parameters recorded in the hash", func(t *testing.T) {
		stronger, err := auth.NewArgon2idHasher(testHashKey,
			auth.WithParams(auth.Argon2Params{Time: 2, Memory: 16 * 1024, Threads: 2}))
		require.NoError(t, err)

		ok, err := stronger.Verify(ctx, mustPassword(t, "pw1"), hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestArgon2idHasher_VerifyCorruptHash(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, testHashKey)

	tests := []struct {
		name string
		hash auth.PasswordHash
	}{
		{name: "empty", hash: ""},
		{name: "wrong segment count", hash: "$argon2id$v=19$m=8192,t=1,p=1$salt"},
		{name: "unsupported algorithm", hash: "$bcrypt$v=19$m=8192,t=1,p=1$AAAA$AAAA"},
		{name: "unknown version", hash: "$argon2id$v=16$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{name: "bad parameters", hash: "$argon2id$v=19$m=x,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{name: "zero threads", hash: "$argon2id$v=19$m=8192,t=1,p=0$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{name: "threads overflow", hash: "$argon2id$v=19$m=8192,t=1,p=256$AAAAAAAAAAAAAAAAAAAAAA$AAAA"},
		{name: "bad salt encoding", hash: "$argon2id$v=19$m=8192,t=1,p=1$!!!$AAAA"},
		{name: "bad hash encoding", hash: "$argon2id$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$!!!"},
		{name: "empty hash", hash: "$argon2id$v=19$m=8192,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify(ctx, mustPassword(t, "pw1"), tt.hash)
			require.Error(t, err)
			assert.False(t, ok)
			assert.True(t, errors.Is(err, auth.ErrVerification))
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_HASH")
		})
	}
}

func TestArgon2idHasher_ConcurrentUse(t *testing.T) {
	ctx := context.Background()
	h := newTestHasher(t, testHashKey)

	hash, err := h.Hash(ctx, mustPassword(t, "shared"))
	require.NoError(t, err)

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			ok, verr := h.Verify(ctx, auth.Password{}, hash)
			if verr == nil && ok {
				verr = errors.New("empty password matched")
			}
			errs <- verr
		}()
	}
	for range 8 {
		assert.NoError(t, <-errs)
	}
}
