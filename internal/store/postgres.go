// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the subset of pgxpool.Pool the engine uses; pgxmock
// satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

const (
	selectEntrySQL = `SELECT value FROM identity_entries
		WHERE index_name = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())`

	upsertEntrySQL = `INSERT INTO identity_entries (index_name, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (index_name, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	insertEntrySQL = `INSERT INTO identity_entries (index_name, key, value, expires_at)
		VALUES ($1, $2, $3, $4)`

	deleteEntrySQL = `DELETE FROM identity_entries WHERE index_name = $1 AND key = $2`

	nextIDSQL = `SELECT nextval('identity_user_id_seq')`
)

// PostgresEngine is an Engine backed by a PostgreSQL table. The schema is
// managed by Migrator.
type PostgresEngine struct {
	pool poolIface
}

var _ Engine = (*PostgresEngine)(nil)

// NewPostgresEngine wraps an existing pool.
func NewPostgresEngine(pool poolIface) *PostgresEngine {
	return &PostgresEngine{pool: pool}
}

// ConnectPostgres opens a pool for dsn and waits for the server to answer,
// retrying with exponential backoff up to connectAttempts times.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresEngine, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_PG_CONNECT_FAILED").Wrap(err)
	}

	if err := pingWithRetry(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_PG_CONNECT_FAILED").Wrap(err)
	}

	return NewPostgresEngine(pool), nil
}

// connectAttempts bounds startup retries for networked engines.
const connectAttempts = 5

func pingWithRetry(ctx context.Context, ping func(context.Context) error) error {
	backoff := retry.WithMaxRetries(connectAttempts, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func expiresArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Get implements Engine.
func (e *PostgresEngine) Get(ctx context.Context, index Index, key []byte) ([]byte, bool, error) {
	var value []byte
	err := e.pool.QueryRow(ctx, selectEntrySQL, string(index), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("STORE_PG_READ_FAILED").With("index", string(index)).Wrap(err)
	}
	return value, true, nil
}

func (e *PostgresEngine) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertAll(ctx context.Context, tx pgx.Tx, entries []Entry) error {
	for _, entry := range entries {
		if _, err := tx.Exec(ctx, upsertEntrySQL,
			string(entry.Index), entry.Key, entry.Value, expiresArg(entry.ExpiresAt)); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements Engine.
func (e *PostgresEngine) Apply(ctx context.Context, entries ...Entry) error {
	err := e.inTx(ctx, func(tx pgx.Tx) error { return upsertAll(ctx, tx, entries) })
	if err != nil {
		return oops.Code("STORE_PG_WRITE_FAILED").With("entries", len(entries)).Wrap(err)
	}
	return nil
}

// errClaimTaken aborts the claim transaction when the key already exists.
var errClaimTaken = errors.New("claim key taken")

// Claim implements Engine. The claim insert relies on the primary key: a
// unique violation means another writer holds the key.
func (e *PostgresEngine) Claim(ctx context.Context, claim Entry, rest ...Entry) ([]byte, bool, error) {
	err := e.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertEntrySQL,
			string(claim.Index), claim.Key, claim.Value, expiresArg(claim.ExpiresAt))
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return errClaimTaken
		}
		if err != nil {
			return err
		}
		return upsertAll(ctx, tx, rest)
	})

	if errors.Is(err, errClaimTaken) {
		existing, found, getErr := e.Get(ctx, claim.Index, claim.Key)
		if getErr != nil {
			return nil, false, getErr
		}
		if !found {
			return nil, false, oops.Code("STORE_PG_CLAIM_FAILED").
				With("index", string(claim.Index)).
				Errorf("claimed key vanished")
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("STORE_PG_CLAIM_FAILED").With("index", string(claim.Index)).Wrap(err)
	}
	return nil, true, nil
}

// Delete implements Engine.
func (e *PostgresEngine) Delete(ctx context.Context, index Index, key []byte) error {
	if _, err := e.pool.Exec(ctx, deleteEntrySQL, string(index), key); err != nil {
		return oops.Code("STORE_PG_WRITE_FAILED").With("index", string(index)).Wrap(err)
	}
	return nil
}

// NextID implements Engine.
func (e *PostgresEngine) NextID(ctx context.Context) (uint64, error) {
	var id int64
	if err := e.pool.QueryRow(ctx, nextIDSQL).Scan(&id); err != nil {
		return 0, oops.Code("STORE_PG_SEQUENCE_FAILED").Wrap(err)
	}
	if id <= 0 {
		return 0, oops.Code("STORE_PG_SEQUENCE_FAILED").With("value", id).Errorf("sequence returned non-positive id")
	}
	return uint64(id), nil
}

// Ping implements Engine.
func (e *PostgresEngine) Ping(ctx context.Context) error {
	if err := e.pool.Ping(ctx); err != nil {
		return oops.Code("STORE_PG_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close implements Engine.
func (e *PostgresEngine) Close() error {
	e.pool.Close()
	return nil
}
