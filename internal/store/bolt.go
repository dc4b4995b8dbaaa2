// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
	bolt "go.etcd.io/bbolt"
)

// counterBucket holds the persisted user id sequence.
var counterBucket = []byte("user_id")

// BoltEngine is an embedded Engine backed by a single bbolt file. Each
// index is a bucket; bucket sequences provide the id counter.
type BoltEngine struct {
	db *bolt.DB
}

var _ Engine = (*BoltEngine)(nil)

// OpenBolt opens or creates the database at path and ensures every index
// bucket exists. Parent directories are created with 0700.
func OpenBolt(path string) (*BoltEngine, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, oops.Code("STORE_BOLT_OPEN_FAILED").With("path", path).Wrap(err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, oops.Code("STORE_BOLT_OPEN_FAILED").With("path", path).Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, idx := range Indices {
			if _, err := tx.CreateBucketIfNotExists([]byte(idx)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucketIfNotExists(counterBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, oops.Code("STORE_BOLT_OPEN_FAILED").With("path", path).Wrap(err)
	}

	return &BoltEngine{db: db}, nil
}

// Path returns the database file path.
func (e *BoltEngine) Path() string {
	return e.db.Path()
}

func bucket(tx *bolt.Tx, index Index) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(index))
	if b == nil {
		return nil, oops.Code("STORE_UNKNOWN_INDEX").With("index", string(index)).Errorf("unknown index")
	}
	return b, nil
}

// Get implements Engine.
func (e *BoltEngine) Get(_ context.Context, index Index, key []byte) ([]byte, bool, error) {
	var value []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		b, err := bucket(tx, index)
		if err != nil {
			return err
		}
		if v := b.Get(key); v != nil {
			// bbolt values are only valid for the life of the transaction
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, oops.Code("STORE_BOLT_READ_FAILED").With("index", string(index)).Wrap(err)
	}
	return value, value != nil, nil
}

func putAll(tx *bolt.Tx, entries []Entry) error {
	for _, entry := range entries {
		b, err := bucket(tx, entry.Index)
		if err != nil {
			return err
		}
		if err := b.Put(entry.Key, entry.Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements Engine.
func (e *BoltEngine) Apply(_ context.Context, entries ...Entry) error {
	if err := e.db.Update(func(tx *bolt.Tx) error { return putAll(tx, entries) }); err != nil {
		return oops.Code("STORE_BOLT_WRITE_FAILED").With("entries", len(entries)).Wrap(err)
	}
	return nil
}

// Claim implements Engine.
func (e *BoltEngine) Claim(_ context.Context, claim Entry, rest ...Entry) ([]byte, bool, error) {
	var existing []byte
	err := e.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, claim.Index)
		if err != nil {
			return err
		}
		if v := b.Get(claim.Key); v != nil {
			existing = append([]byte(nil), v...)
			return nil
		}
		return putAll(tx, append([]Entry{claim}, rest...))
	})
	if err != nil {
		return nil, false, oops.Code("STORE_BOLT_WRITE_FAILED").With("index", string(claim.Index)).Wrap(err)
	}
	return existing, existing == nil, nil
}

// Delete implements Engine.
func (e *BoltEngine) Delete(_ context.Context, index Index, key []byte) error {
	err := e.db.Update(func(tx *bolt.Tx) error {
		b, err := bucket(tx, index)
		if err != nil {
			return err
		}
		return b.Delete(key)
	})
	if err != nil {
		return oops.Code("STORE_BOLT_WRITE_FAILED").With("index", string(index)).Wrap(err)
	}
	return nil
}

// NextID implements Engine.
func (e *BoltEngine) NextID(_ context.Context) (uint64, error) {
	var id uint64
	err := e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(counterBucket)
		if b == nil {
			return oops.Code("STORE_UNKNOWN_INDEX").With("index", string(counterBucket)).Errorf("missing counter bucket")
		}
		var err error
		id, err = b.NextSequence()
		return err
	})
	if err != nil {
		return 0, oops.Code("STORE_BOLT_SEQUENCE_FAILED").Wrap(err)
	}
	return id, nil
}

// Ping implements Engine. It fails once the database is closed.
func (e *BoltEngine) Ping(_ context.Context) error {
	if err := e.db.View(func(*bolt.Tx) error { return nil }); err != nil {
		return oops.Code("STORE_BOLT_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close implements Engine.
func (e *BoltEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return oops.Code("STORE_BOLT_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
