// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aosauth/aosauth/pkg/errutil"
)

func openTestBolt(t *testing.T) *BoltEngine {
	t.Helper()
	engine, err := OpenBolt(filepath.Join(t.TempDir(), "nested", "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestOpenBolt_CreatesPrivateDirectory(t *testing.T) {
	engine := openTestBolt(t)

	info, err := os.Stat(filepath.Dir(engine.Path()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestBoltEngine_GetApplyDelete(t *testing.T) {
	ctx := context.Background()
	engine := openTestBolt(t)

	_, found, err := engine.Get(ctx, IndexEmailUserID, []byte("k"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, engine.Apply(ctx,
		Entry{Index: IndexEmailUserID, Key: []byte("k"), Value: []byte("1")},
		Entry{Index: IndexUserIDEmail, Key: []byte("1"), Value: []byte("k")},
	))

	v, found, err := engine.Get(ctx, IndexEmailUserID, []byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, engine.Delete(ctx, IndexEmailUserID, []byte("k")))
	require.NoError(t, engine.Delete(ctx, IndexEmailUserID, []byte("k")))
	_, found, err = engine.Get(ctx, IndexEmailUserID, []byte("k"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltEngine_UnknownIndex(t *testing.T) {
	ctx := context.Background()
	engine := openTestBolt(t)

	_, _, err := engine.Get(ctx, Index("nope"), []byte("k"))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_UNKNOWN_INDEX")
	errutil.AssertErrorContext(t, err, "index", "nope")

	err = engine.Apply(ctx,
		Entry{Index: IndexEmailUserID, Key: []byte("k"), Value: []byte("1")},
		Entry{Index: Index("nope"), Key: []byte("k"), Value: []byte("1")},
	)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_UNKNOWN_INDEX")
	errutil.AssertErrorContext(t, err, "entries", 2)

	_, found, err := engine.Get(ctx, IndexEmailUserID, []byte("k"))
	require.NoError(t, err)
	assert.False(t, found, "failed batch must not leave partial writes")
}

func TestBoltEngine_Claim(t *testing.T) {
	ctx := context.Background()
	engine := openTestBolt(t)

	claim := Entry{Index: IndexEmailUserID, Key: []byte("k"), Value: []byte("1")}
	reverse := Entry{Index: IndexUserIDEmail, Key: []byte("1"), Value: []byte("k")}

	existing, claimed, err := engine.Claim(ctx, claim, reverse)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)

	loser := Entry{Index: IndexEmailUserID, Key: []byte("k"), Value: []byte("2")}
	loserReverse := Entry{Index: IndexUserIDEmail, Key: []byte("2"), Value: []byte("k")}
	existing, claimed, err = engine.Claim(ctx, loser, loserReverse)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, []byte("1"), existing)

	_, found, err := engine.Get(ctx, IndexUserIDEmail, []byte("2"))
	require.NoError(t, err)
	assert.False(t, found, "losing claim writes nothing")
}

func TestBoltEngine_NextIDStartsAtOne(t *testing.T) {
	ctx := context.Background()
	engine := openTestBolt(t)

	for want := uint64(1); want <= 3; want++ {
		got, err := engine.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBoltEngine_PingAfterClose(t *testing.T) {
	ctx := context.Background()
	engine, err := OpenBolt(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)

	require.NoError(t, engine.Ping(ctx))
	require.NoError(t, engine.Close())

	err = engine.Ping(ctx)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "STORE_BOLT_UNAVAILABLE")
}
