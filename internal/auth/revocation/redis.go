// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKeyPrefix namespaces revocation keys.
	DefaultKeyPrefix = "auth:revoked:"

	// DefaultCacheTTL caps how long a positive hit is served locally.
	DefaultCacheTTL = 30 * time.Second

	maxWatchRetries = 5
	scanBatch       = 256
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano
	encMode, err = options.EncMode()
	if err != nil {
		panic("revocation: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("revocation: CBOR decoder initialization failed: " + err.Error())
	}
}

// RedisStore shares one revocation list across instances.
//
// Each entry is a CBOR-encoded [Entry] whose Redis TTL ends at ExpiresAt.
// Positive hits are cached locally: a revocation never goes away before its
// expiry, so a cached "revoked" is never wrong. Misses are never cached.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	cacheTTL time.Duration
	cache    *ttlcache.Cache[string, time.Time]
	now      func() time.Time
}

// RedisOption configures a [RedisStore].
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides [DefaultKeyPrefix].
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithCacheTTL overrides [DefaultCacheTTL]. Zero disables the local cache.
func WithCacheTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.cacheTTL = ttl }
}

// WithRedisClock overrides the time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:   client,
		prefix:   DefaultKeyPrefix,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	store.cache = ttlcache.New(
		ttlcache.WithTTL[string, time.Time](store.cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	return store
}

/*
Add implements [Store].

The read-compare-write runs under WATCH so concurrent writers on different
instances cannot shorten an expiry.

Returns:
  - error: ErrEmptyIdentifier or Redis failures
*/
func (store *RedisStore) Add(context context.Context, identifier, reason string, expiresAt time.Time) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}

	now := store.now()
	if !now.Before(expiresAt) {
		return nil
	}

	key := store.prefix + Key(identifier)
	var written Entry

	transaction := func(tx *redis.Tx) error {
		written = Entry{Identifier: Key(identifier), Reason: reason, RevokedAt: now, ExpiresAt: expiresAt}

		existing, err := tx.Get(context, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var previous Entry
			if decodeErr := decMode.Unmarshal(existing, &previous); decodeErr == nil {
				written.RevokedAt = previous.RevokedAt
				if previous.ExpiresAt.After(written.ExpiresAt) {
					written.ExpiresAt = previous.ExpiresAt
				}
			}
		}

		payload, err := encMode.Marshal(written)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(context, func(pipe redis.Pipeliner) error {
			pipe.Set(context, key, payload, written.ExpiresAt.Sub(now))
			return nil
		})
		return err
	}

	// Retry when another writer touched the key between WATCH and EXEC
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := store.client.Watch(context, transaction, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis_revocation_add_failed: %w", err)
		}

		store.remember(key, written.ExpiresAt, now)
		return nil
	}

	return fmt.Errorf("redis_revocation_add_failed: %w", redis.TxFailedErr)
}

// AddIfAbsent implements [Store] with SET NX.
func (store *RedisStore) AddIfAbsent(context context.Context, identifier, reason string, expiresAt time.Time) (bool, error) {
	if identifier == "" {
		return false, ErrEmptyIdentifier
	}

	now := store.now()
	if !now.Before(expiresAt) {
		return true, nil
	}

	key := store.prefix + Key(identifier)
	payload, err := encMode.Marshal(Entry{Identifier: Key(identifier), Reason: reason, RevokedAt: now, ExpiresAt: expiresAt})
	if err != nil {
		return false, fmt.Errorf("redis_revocation_encode_failed: %w", err)
	}

	added, err := store.client.SetNX(context, key, payload, expiresAt.Sub(now)).Result()
	if err != nil {
		return false, fmt.Errorf("redis_revocation_claim_failed: %w", err)
	}

	store.remember(key, expiresAt, now)
	return added, nil
}

// Contains implements [Store].
func (store *RedisStore) Contains(context context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}

	now := store.now()
	key := store.prefix + Key(identifier)

	// Serve positive hits locally
	if item := store.cache.Get(key); item != nil && now.Before(item.Value()) {
		return true, nil
	}

	payload, err := store.client.Get(context, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis_revocation_contains_failed: %w", err)
	}

	// A present but unreadable value still means the key was revoked
	var entry Entry
	if err := decMode.Unmarshal(payload, &entry); err != nil {
		return true, nil
	}

	if !now.Before(entry.ExpiresAt) {
		return false, nil
	}

	store.remember(key, entry.ExpiresAt, now)
	return true, nil
}

// Stats implements [Store]. Redis expires keys itself, so nothing is ever
// pending purge.
func (store *RedisStore) Stats(context context.Context) (Stats, error) {
	var stats Stats

	iterator := store.client.Scan(context, 0, store.prefix+"*", scanBatch).Iterator()
	for iterator.Next(context) {
		stats.TotalActive++
	}
	if err := iterator.Err(); err != nil {
		return Stats{}, fmt.Errorf("redis_revocation_stats_failed: %w", err)
	}

	return stats, nil
}

// PurgeExpired implements [Store]. Only the local cache needs purging.
func (store *RedisStore) PurgeExpired(_ context.Context) (int, error) {
	before := store.cache.Len()
	store.cache.DeleteExpired()
	return before - store.cache.Len(), nil
}

func (store *RedisStore) remember(key string, expiresAt, now time.Time) {
	if store.cacheTTL <= 0 {
		return
	}
	ttl := expiresAt.Sub(now)
	if ttl > store.cacheTTL {
		ttl = store.cacheTTL
	}
	if ttl > 0 {
		store.cache.Set(key, expiresAt, ttl)
	}
}

// EncodeEntry returns the stored representation of entry.
func EncodeEntry(entry Entry) ([]byte, error) {
	return encMode.Marshal(entry)
}

// DecodeEntry parses a stored representation.
func DecodeEntry(payload []byte) (Entry, error) {
	var entry Entry
	err := decMode.Unmarshal(payload, &entry)
	return entry, err
}
