// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrStorage marks every failure that originates in the storage layer:
// engine faults, corrupt records and encoding errors. It is never used for
// an absent entry.
var ErrStorage = errors.New("storage failure")

// Index names one of the key-value trees of the identity store.
type Index string

// The four identity indices.
const (
	IndexEmailUserID       Index = "email__user_id"
	IndexEmailPasswordHash Index = "email__passwordhash"
	IndexSessionUserID     Index = "session__userid"
	IndexUserIDEmail       Index = "user_id__email"
)

// Indices lists every index an engine must provide.
var Indices = []Index{
	IndexEmailUserID,
	IndexEmailPasswordHash,
	IndexSessionUserID,
	IndexUserIDEmail,
}

// Entry is a single key-value write.
type Entry struct {
	Index Index
	Key   []byte
	Value []byte

	// ExpiresAt lets engines with native expiry drop the entry on their
	// own. The zero value means the entry never expires.
	ExpiresAt time.Time
}

// Engine is a transactional key-value backend for the identity store.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Get returns the value stored under key, with found=false when absent.
	Get(ctx context.Context, index Index, key []byte) (value []byte, found bool, err error)

	// Apply writes all entries atomically, overwriting existing values.
	Apply(ctx context.Context, entries ...Entry) error

	// Claim writes claim and rest atomically, but only if claim's key is
	// absent. When the key already exists nothing is written and the
	// stored value is returned with claimed=false.
	Claim(ctx context.Context, claim Entry, rest ...Entry) (existing []byte, claimed bool, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, index Index, key []byte) error

	// NextID returns the next value of the persisted id counter. Values
	// are strictly increasing across restarts and start at 1.
	NextID(ctx context.Context) (uint64, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
