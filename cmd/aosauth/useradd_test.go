// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/internal/store"
	"github.com/aosauth/aosauth/pkg/errutil"
)

func TestUseradd(t *testing.T) {
	dir := isolateEnv(t)
	cfgPath := writeConfig(t, dir, "")

	out, err := execute(t, "--config", cfgPath, "useradd", "A@X.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(out))

	out, err = execute(t, "--config", cfgPath, "useradd", "b@x.com", "pw2")
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))

	t.Run("existing email keeps its id and password", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "useradd", "a@x.com", "other")
		require.NoError(t, err)
		assert.Equal(t, "1", strings.TrimSpace(out))
		assert.NotContains(t, out, "other")

		engine, err := store.OpenBolt(filepath.Join(dir, "identity.db"))
		require.NoError(t, err)
		identities := store.NewIdentityStore(engine)
		defer func() { _ = identities.Close() }()

		hasher, err := auth.NewArgon2idHasher([]byte(testHashKey),
			auth.WithParams(auth.Argon2Params{Time: 1, Memory: 8192, Threads: 1}))
		require.NoError(t, err)
		svc, err := auth.NewService(identities, hasher)
		require.NoError(t, err)

		email, err := auth.ParseEmail("a@x.com")
		require.NoError(t, err)
		original, err := auth.ParsePassword("pw1")
		require.NoError(t, err)
		session, err := svc.Login(context.Background(), email, original)
		require.NoError(t, err)
		assert.Equal(t, auth.UserID(1), session.UserID)

		replaced, err := auth.ParsePassword("other")
		require.NoError(t, err)
		_, err = svc.Login(context.Background(), email, replaced)
		assert.True(t, errors.Is(err, auth.ErrBadCredentials))
	})
}

func TestUseradd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		hashKey  bool
		wantCode string
	}{
		{"invalid email", []string{"useradd", "not-an-email", "pw"}, true, "AUTH_INVALID_EMAIL"},
		{"empty password", []string{"useradd", "a@x.com", ""}, true, "AUTH_EMPTY_PASSWORD"},
		{"missing hash key", []string{"useradd", "a@x.com", "pw"}, false, "CONFIG_INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolateEnv(t)
			args := append([]string{"--bolt-path", filepath.Join(dir, "identity.db")}, tt.args...)
			if tt.hashKey {
				t.Setenv("HASH_KEY", testHashKey)
			}

			_, err := execute(t, args...)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}

	t.Run("wrong argument count", func(t *testing.T) {
		isolateEnv(t)
		_, err := execute(t, "useradd", "a@x.com")
		require.Error(t, err)
	})
}
