// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package revocation tracks token identifiers that must be rejected before their
natural expiry.

Architecture:

  - Contract: every [Store] keeps an entry only until the token it mirrors
    would expire anyway. Contains reports false for an expired entry even when
    it has not been purged yet.
  - Backends: [MemoryStore] for a single process, [RedisStore] when several
    instances share one revocation list.
  - Hygiene: [Sweeper] purges expired entries in the background; reads never
    depend on it for correctness.

Identifiers are untrusted input. Every backend accepts arbitrary strings
(empty, binary, megabytes long) and answers "not revoked" for anything it has
not stored.
*/
package revocation

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

// MaxIdentifierLength is the longest identifier stored verbatim. Longer
// identifiers (raw tokens, mostly) are replaced by their BLAKE3 digest.
const MaxIdentifierLength = 256

const digestPrefix = "b3:"

// ErrEmptyIdentifier is returned by Add for an empty identifier.
var ErrEmptyIdentifier = errors.New("revocation: identifier is empty")

// Entry records that an identifier must be rejected until ExpiresAt.
type Entry struct {
	Identifier string    `json:"identifier" cbor:"1,keyasint"`
	Reason     string    `json:"reason" cbor:"2,keyasint"`
	RevokedAt  time.Time `json:"revoked_at" cbor:"3,keyasint"`
	ExpiresAt  time.Time `json:"expires_at" cbor:"4,keyasint"`
}

// Stats is a point-in-time view of a store.
type Stats struct {
	TotalActive              int `json:"total_active"`
	TotalExpiredPendingPurge int `json:"total_expired_pending_purge"`
}

// Store is the revocation list contract.
type Store interface {
	// Add is idempotent. Re-adding refreshes the reason and never shortens
	// an existing expiry.
	Add(ctx context.Context, identifier, reason string, expiresAt time.Time) error

	// AddIfAbsent stores the entry only when no live entry exists and reports
	// whether it did. It is the single-use primitive behind refresh rotation.
	AddIfAbsent(ctx context.Context, identifier, reason string, expiresAt time.Time) (bool, error)

	// Contains reports whether identifier is revoked and not yet expired.
	Contains(ctx context.Context, identifier string) (bool, error)

	Stats(ctx context.Context) (Stats, error)

	// PurgeExpired physically removes expired entries and returns how many.
	PurgeExpired(ctx context.Context) (int, error)
}

// Key returns the storage key for identifier.
func Key(identifier string) string {
	if len(identifier) <= MaxIdentifierLength {
		return identifier
	}
	digest := blake3.Sum256([]byte(identifier))
	return digestPrefix + hex.EncodeToString(digest[:])
}
