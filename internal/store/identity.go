// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/oops"

	"github.com/aosauth/aosauth/internal/auth"
	"github.com/aosauth/aosauth/pkg/errutil"
)

// lockShards is the number of registration mutexes.
const lockShards = 64

// sessionRecord is the persisted value of the session index.
type sessionRecord struct {
	UserID    auth.UserID `json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// IdentityStore maps emails, user ids, password hashes and sessions onto
// an Engine. Keys and values are JSON documents.
//
// IdentityStore is safe for concurrent use.
type IdentityStore struct {
	engine Engine
	logger *slog.Logger
	now    func() time.Time
	shards [lockShards]sync.Mutex
}

var _ auth.IdentityStore = (*IdentityStore)(nil)

// Option configures an IdentityStore.
type Option func(*IdentityStore)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *IdentityStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *IdentityStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIdentityStore creates an IdentityStore on engine.
func NewIdentityStore(engine Engine, opts ...Option) *IdentityStore {
	s := &IdentityStore{
		engine: engine,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func storageError(operation string, err error) error {
	return oops.Code("STORE_OPERATION_FAILED").
		With("operation", operation).
		Wrap(errors.Join(ErrStorage, err))
}

func corruptRecord(index Index, err error) error {
	return oops.Code("STORE_CORRUPT_RECORD").
		With("index", string(index)).
		Wrap(errors.Join(ErrStorage, err))
}

func encode(index Index, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, oops.Code("STORE_ENCODE_FAILED").
			With("index", string(index)).
			Wrap(errors.Join(ErrStorage, err))
	}
	return b, nil
}

// lookup reads index[key] and decodes the value into out.
func (s *IdentityStore) lookup(ctx context.Context, operation string, index Index, key, out any) (bool, error) {
	k, err := encode(index, key)
	if err != nil {
		return false, err
	}
	raw, found, err := s.engine.Get(ctx, index, k)
	if err != nil {
		return false, storageError(operation, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, corruptRecord(index, err)
	}
	return true, nil
}

func (s *IdentityStore) entry(index Index, key, value any) (Entry, error) {
	k, err := encode(index, key)
	if err != nil {
		return Entry{}, err
	}
	v, err := encode(index, value)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Index: index, Key: k, Value: v}, nil
}

// PasswordHashFromEmail returns the stored password hash for email.
func (s *IdentityStore) PasswordHashFromEmail(ctx context.Context, email auth.Email) (auth.PasswordHash, bool, error) {
	var hash auth.PasswordHash
	found, err := s.lookup(ctx, "password hash from email", IndexEmailPasswordHash, email, &hash)
	return hash, found, err
}

// UserIDFromEmail returns the user id registered under email.
func (s *IdentityStore) UserIDFromEmail(ctx context.Context, email auth.Email) (auth.UserID, bool, error) {
	var id auth.UserID
	found, err := s.lookup(ctx, "user id from email", IndexEmailUserID, email, &id)
	return id, found, err
}

// EmailFromUserID returns the email registered for id.
func (s *IdentityStore) EmailFromUserID(ctx context.Context, id auth.UserID) (auth.Email, bool, error) {
	var email auth.Email
	found, err := s.lookup(ctx, "email from user id", IndexUserIDEmail, id, &email)
	return email, found, err
}

// SessionFromKey returns the live session bound to key. Expired sessions
// are reported as absent and their binding is removed.
func (s *IdentityStore) SessionFromKey(ctx context.Context, key auth.SessionKey) (auth.Session, bool, error) {
	var rec sessionRecord
	found, err := s.lookup(ctx, "session from key", IndexSessionUserID, key, &rec)
	if err != nil || !found {
		return auth.Session{}, false, err
	}

	session := auth.Session{
		Key:       key,
		UserID:    rec.UserID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	if session.IsExpired(s.now()) {
		if err := s.DeleteSession(ctx, key); err != nil {
			errutil.LogErrorContext(ctx, s.logger, "failed to remove expired session", err)
		}
		return auth.Session{}, false, nil
	}
	return session, true, nil
}

// UserIDFromSession resolves a live session binding to its user.
func (s *IdentityStore) UserIDFromSession(ctx context.Context, key auth.SessionKey) (auth.UserID, bool, error) {
	session, found, err := s.SessionFromKey(ctx, key)
	return session.UserID, found, err
}

// SetPassword stores hash for email, replacing any previous value.
func (s *IdentityStore) SetPassword(ctx context.Context, email auth.Email, hash auth.PasswordHash) error {
	e, err := s.entry(IndexEmailPasswordHash, email, hash.Encoded())
	if err != nil {
		return err
	}
	if err := s.engine.Apply(ctx, e); err != nil {
		return storageError("set password", err)
	}
	return nil
}

// EmailJoinUserID writes both directions of the email/user id mapping in a
// single atomic batch.
func (s *IdentityStore) EmailJoinUserID(ctx context.Context, email auth.Email, id auth.UserID) error {
	forward, err := s.entry(IndexEmailUserID, email, id)
	if err != nil {
		return err
	}
	reverse, err := s.entry(IndexUserIDEmail, id, email)
	if err != nil {
		return err
	}
	if err := s.engine.Apply(ctx, forward, reverse); err != nil {
		return storageError("join email and user id", err)
	}
	return nil
}

// GenerateID returns a fresh user id from the persisted counter.
func (s *IdentityStore) GenerateID(ctx context.Context) (auth.UserID, error) {
	n, err := s.engine.NextID(ctx)
	if err != nil {
		return 0, storageError("generate id", err)
	}
	return auth.UserID(n), nil
}

// CreateUser registers email with hash and returns its id. An email that
// is already registered keeps its id and its stored hash.
//
// The email claim, the reverse mapping and the hash are written in one
// atomic engine operation conditioned on the email being unclaimed, so
// concurrent registrations of one email resolve to a single id.
func (s *IdentityStore) CreateUser(ctx context.Context, email auth.Email, hash auth.PasswordHash) (auth.UserID, error) {
	mu := &s.shards[xxhash.Sum64String(email.String())%lockShards]
	mu.Lock()
	defer mu.Unlock()

	if id, found, err := s.UserIDFromEmail(ctx, email); err != nil || found {
		return id, err
	}

	id, err := s.GenerateID(ctx)
	if err != nil {
		return 0, err
	}

	claim, err := s.entry(IndexEmailUserID, email, id)
	if err != nil {
		return 0, err
	}
	reverse, err := s.entry(IndexUserIDEmail, id, email)
	if err != nil {
		return 0, err
	}
	password, err := s.entry(IndexEmailPasswordHash, email, hash.Encoded())
	if err != nil {
		return 0, err
	}

	existing, claimed, err := s.engine.Claim(ctx, claim, reverse, password)
	if err != nil {
		return 0, storageError("create user", err)
	}
	if claimed {
		return id, nil
	}

	var winner auth.UserID
	if err := json.Unmarshal(existing, &winner); err != nil {
		return 0, corruptRecord(IndexEmailUserID, err)
	}
	s.logger.DebugContext(ctx, "registration lost to concurrent writer", "user_id", winner, "discarded_id", id)
	return winner, nil
}

// SetSession binds session to the user registered under email and returns
// that user's id.
func (s *IdentityStore) SetSession(ctx context.Context, email auth.Email, session *auth.Session) (auth.UserID, error) {
	id, found, err := s.UserIDFromEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, oops.Code("STORE_NO_SUCH_USER").Wrap(auth.ErrNoSuchUser)
	}

	e, err := s.entry(IndexSessionUserID, session.Key, sessionRecord{
		UserID:    id,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	})
	if err != nil {
		return 0, err
	}
	e.ExpiresAt = session.ExpiresAt

	if err := s.engine.Apply(ctx, e); err != nil {
		return 0, storageError("set session", err)
	}
	return id, nil
}

// DeleteSession removes the binding for key.
func (s *IdentityStore) DeleteSession(ctx context.Context, key auth.SessionKey) error {
	k, err := encode(IndexSessionUserID, key)
	if err != nil {
		return err
	}
	if err := s.engine.Delete(ctx, IndexSessionUserID, k); err != nil {
		return storageError("delete session", err)
	}
	return nil
}

// RepairIndex rewrites the user id to email entry from the email to user
// id entry when it is missing or points elsewhere. It reports whether a
// write happened.
func (s *IdentityStore) RepairIndex(ctx context.Context, email auth.Email) (bool, error) {
	id, found, err := s.UserIDFromEmail(ctx, email)
	if err != nil || !found {
		return false, err
	}

	reverse, found, err := s.EmailFromUserID(ctx, id)
	if err != nil {
		return false, err
	}
	if found && reverse == email {
		return false, nil
	}

	if err := s.EmailJoinUserID(ctx, email, id); err != nil {
		return false, err
	}
	s.logger.InfoContext(ctx, "repaired identity index", "user_id", id)
	return true, nil
}

// Ping checks the underlying engine.
func (s *IdentityStore) Ping(ctx context.Context) error {
	if err := s.engine.Ping(ctx); err != nil {
		return storageError("ping", err)
	}
	return nil
}

// Close closes the underlying engine.
func (s *IdentityStore) Close() error {
	if err := s.engine.Close(); err != nil {
		return storageError("close", err)
	}
	return nil
}
