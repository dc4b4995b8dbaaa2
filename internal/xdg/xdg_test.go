// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/config/aosauth", got)
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := ConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.config/aosauth", got)
	})
}

func TestDataDir(t *testing.T) {
	t.Run("env var", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		got, err := DataDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/data/aosauth", got)
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", "/home/testuser")
		got, err := DataDir()
		require.NoError(t, err)
		assert.Equal(t, "/home/testuser/.local/share/aosauth", got)
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/aosauth/config.yaml", got)
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	got, err := DatabasePath("identity")
	require.NoError(t, err)
	assert.Equal(t, "/custom/data/aosauth/identity.db", got)
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	require.NoError(t, EnsureDir(dir), "existing directory is fine")
}
