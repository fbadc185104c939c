// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-process revocation list. Readers never
// block each other; writers take the lock briefly.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// MemoryOption configures a [MemoryStore].
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the time source (tests).
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Add implements [Store]. An expiry already in the past is a no-op: the token
// is rejected on its own.
func (store *MemoryStore) Add(_ context.Context, identifier, reason string, expiresAt time.Time) error {
	if identifier == "" {
		return ErrEmptyIdentifier
	}

	now := store.now()
	if !now.Before(expiresAt) {
		return nil
	}

	key := Key(identifier)

	store.mu.Lock()
	defer store.mu.Unlock()

	entry, exists := store.entries[key]
	if !exists || !now.Before(entry.ExpiresAt) {
		store.entries[key] = Entry{Identifier: key, Reason: reason, RevokedAt: now, ExpiresAt: expiresAt}
		return nil
	}

	entry.Reason = reason
	if expiresAt.After(entry.ExpiresAt) {
		entry.ExpiresAt = expiresAt
	}
	store.entries[key] = entry
	return nil
}

// AddIfAbsent implements [Store].
func (store *MemoryStore) AddIfAbsent(_ context.Context, identifier, reason string, expiresAt time.Time) (bool, error) {
	if identifier == "" {
		return false, ErrEmptyIdentifier
	}

	now := store.now()
	key := Key(identifier)

	store.mu.Lock()
	defer store.mu.Unlock()

	if entry, exists := store.entries[key]; exists && now.Before(entry.ExpiresAt) {
		return false, nil
	}
	if now.Before(expiresAt) {
		store.entries[key] = Entry{Identifier: key, Reason: reason, RevokedAt: now, ExpiresAt: expiresAt}
	}
	return true, nil
}

// Contains implements [Store]. It never fails.
func (store *MemoryStore) Contains(_ context.Context, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}
	key := Key(identifier)

	store.mu.RLock()
	entry, exists := store.entries[key]
	store.mu.RUnlock()

	return exists && store.now().Before(entry.ExpiresAt), nil
}

// Lookup returns the live entry for identifier, if any.
func (store *MemoryStore) Lookup(identifier string) (Entry, bool) {
	store.mu.RLock()
	entry, exists := store.entries[Key(identifier)]
	store.mu.RUnlock()

	if !exists || !store.now().Before(entry.ExpiresAt) {
		return Entry{}, false
	}
	return entry, true
}

// Stats implements [Store].
func (store *MemoryStore) Stats(_ context.Context) (Stats, error) {
	now := store.now()

	store.mu.RLock()
	defer store.mu.RUnlock()

	var stats Stats
	for _, entry := range store.entries {
		if now.Before(entry.ExpiresAt) {
			stats.TotalActive++
		} else {
			stats.TotalExpiredPendingPurge++
		}
	}
	return stats, nil
}

// PurgeExpired implements [Store].
func (store *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	now := store.now()

	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0
	for key, entry := range store.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(store.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (store *MemoryStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.entries)
}
