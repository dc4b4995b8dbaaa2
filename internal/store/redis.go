// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 aosauth Contributors

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces every key the engine writes.
const DefaultRedisPrefix = "aosauth"

// claimScript sets KEYS[1..n] to ARGV[1..n] only when KEYS[1] is unset.
// ARGV[n+1..2n] carry per-key expiries in milliseconds (0 = none).
// Returns {1} when written, {0, existing} otherwise.
var claimScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
	return {0, existing}
end
local n = #KEYS
for i = 1, n do
	local ttl = tonumber(ARGV[n + i])
	if ttl > 0 then
		redis.call('SET', KEYS[i], ARGV[i], 'PX', ttl)
	else
		redis.call('SET', KEYS[i], ARGV[i])
	end
end
return {1}
`)

// RedisEngine is an Engine backed by Redis. Entries with an expiry use
// native key TTLs, so expired sessions disappear without a sweep.
type RedisEngine struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Engine = (*RedisEngine)(nil)

// RedisOptions configures ConnectRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisEngine wraps an existing client.
func NewRedisEngine(client redis.UniversalClient, prefix string) *RedisEngine {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisEngine{client: client, prefix: prefix, now: time.Now}
}

// ConnectRedis creates a client and waits for the server to answer.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*RedisEngine, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	err := pingWithRetry(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, oops.Code("STORE_REDIS_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}

	return NewRedisEngine(client, opts.Prefix), nil
}

func (e *RedisEngine) key(index Index, key []byte) string {
	return e.prefix + ":" + string(index) + ":" + string(key)
}

func (e *RedisEngine) counterKey() string {
	return e.prefix + ":" + string(counterBucket)
}

// ttl converts an absolute expiry to a relative one. Zero means no expiry;
// an expiry already in the past is clamped to the smallest positive TTL.
func (e *RedisEngine) ttl(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	if d := expiresAt.Sub(e.now()); d > time.Millisecond {
		return d
	}
	return time.Millisecond
}

// Get implements Engine.
func (e *RedisEngine) Get(ctx context.Context, index Index, key []byte) ([]byte, bool, error) {
	value, err := e.client.Get(ctx, e.key(index, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("STORE_REDIS_READ_FAILED").With("index", string(index)).Wrap(err)
	}
	return value, true, nil
}

// Apply implements Engine. The writes run in a MULTI/EXEC block.
func (e *RedisEngine) Apply(ctx context.Context, entries ...Entry) error {
	_, err := e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entry := range entries {
			pipe.Set(ctx, e.key(entry.Index, entry.Key), entry.Value, e.ttl(entry.ExpiresAt))
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_REDIS_WRITE_FAILED").With("entries", len(entries)).Wrap(err)
	}
	return nil
}

// Claim implements Engine using a server-side script, which Redis runs
// atomically.
func (e *RedisEngine) Claim(ctx context.Context, claim Entry, rest ...Entry) ([]byte, bool, error) {
	entries := append([]Entry{claim}, rest...)
	keys := make([]string, len(entries))
	args := make([]any, 2*len(entries))
	for i, entry := range entries {
		keys[i] = e.key(entry.Index, entry.Key)
		args[i] = entry.Value
		args[len(entries)+i] = strconv.FormatInt(e.ttl(entry.ExpiresAt).Milliseconds(), 10)
	}

	res, err := claimScript.Run(ctx, e.client, keys, args...).Slice()
	if err != nil {
		return nil, false, oops.Code("STORE_REDIS_CLAIM_FAILED").With("index", string(claim.Index)).Wrap(err)
	}

	if len(res) == 0 {
		return nil, false, oops.Code("STORE_REDIS_CLAIM_FAILED").Errorf("empty script reply")
	}
	if written, ok := res[0].(int64); ok && written == 1 {
		return nil, true, nil
	}
	if len(res) < 2 {
		return nil, false, oops.Code("STORE_REDIS_CLAIM_FAILED").Errorf("missing existing value in script reply")
	}
	existing, ok := res[1].(string)
	if !ok {
		return nil, false, oops.Code("STORE_REDIS_CLAIM_FAILED").With("type", fmt.Sprintf("%T", res[1])).Errorf("unexpected script reply")
	}
	return []byte(existing), false, nil
}

// Delete implements Engine.
func (e *RedisEngine) Delete(ctx context.Context, index Index, key []byte) error {
	if err := e.client.Del(ctx, e.key(index, key)).Err(); err != nil {
		return oops.Code("STORE_REDIS_WRITE_FAILED").With("index", string(index)).Wrap(err)
	}
	return nil
}

// NextID implements Engine with INCR; Redis persistence (AOF or RDB)
// determines durability across restarts.
func (e *RedisEngine) NextID(ctx context.Context) (uint64, error) {
	id, err := e.client.Incr(ctx, e.counterKey()).Uint64()
	if err != nil {
		return 0, oops.Code("STORE_REDIS_SEQUENCE_FAILED").Wrap(err)
	}
	return id, nil
}

// Ping implements Engine.
func (e *RedisEngine) Ping(ctx context.Context) error {
	if err := e.client.Ping(ctx).Err(); err != nil {
		return oops.Code("STORE_REDIS_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Close implements Engine.
func (e *RedisEngine) Close() error {
	if err := e.client.Close(); err != nil {
		return oops.Code("STORE_REDIS_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
