// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package revocation_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/auth/revocation"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newStore() (*revocation.MemoryStore, *clock) {
	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return revocation.NewMemoryStore(revocation.WithMemoryClock(clk.Now)), clk
}

/*
TestMemoryStore_AddContains covers the basic revoke-then-check flow.
*/
func TestMemoryStore_AddContains(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	require.NoError(t, store.Add(ctx, "jti-1", "logout", clk.Now().Add(time.Hour)))

	revoked, err := store.Contains(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.Contains(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, revocation.Stats{TotalActive: 1}, stats)
}

/*
TestMemoryStore_Idempotent ensures re-adding refreshes the reason but never
shortens the expiry.
*/
func TestMemoryStore_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()
	long := clk.Now().Add(2 * time.Hour)

	require.NoError(t, store.Add(ctx, "jti-1", "logout", long))
	require.NoError(t, store.Add(ctx, "jti-1", "compromised", clk.Now().Add(time.Minute)))

	entry, ok := store.Lookup("jti-1")
	require.True(t, ok)
	assert.Equal(t, "compromised", entry.Reason)
	assert.Equal(t, long, entry.ExpiresAt)
	assert.Equal(t, 1, store.Len())

	longer := clk.Now().Add(3 * time.Hour)
	require.NoError(t, store.Add(ctx, "jti-1", "compromised", longer))
	entry, _ = store.Lookup("jti-1")
	assert.Equal(t, longer, entry.ExpiresAt)
}

/*
TestMemoryStore_CheckThenIgnore verifies expired entries are treated as absent
before any purge runs, then removed by PurgeExpired.
*/
func TestMemoryStore_CheckThenIgnore(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	require.NoError(t, store.Add(ctx, "short", "logout", clk.Now().Add(time.Minute)))
	require.NoError(t, store.Add(ctx, "long", "logout", clk.Now().Add(time.Hour)))

	clk.Advance(2 * time.Minute)

	revoked, err := store.Contains(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, revocation.Stats{TotalActive: 1, TotalExpiredPendingPurge: 1}, stats)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	revoked, _ = store.Contains(ctx, "long")
	assert.True(t, revoked)
}

func TestMemoryStore_PastExpiryIsNoop(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	require.NoError(t, store.Add(ctx, "jti", "logout", clk.Now().Add(-time.Second)))
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_EmptyIdentifier(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	assert.ErrorIs(t, store.Add(ctx, "", "logout", clk.Now().Add(time.Hour)), revocation.ErrEmptyIdentifier)

	revoked, err := store.Contains(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

/*
TestMemoryStore_HostileInput checks that arbitrary identifiers never panic and
that oversized identifiers are stored under a bounded key.
*/
func TestMemoryStore_HostileInput(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()
	huge := strings.Repeat("x", 1<<20)

	inputs := []string{"\x00", "\xff\xfe\xfd", strings.Repeat("é", 1000), huge, "a.b.c", "' OR 1=1 --"}
	for _, input := range inputs {
		revoked, err := store.Contains(ctx, input)
		require.NoError(t, err)
		assert.False(t, revoked)
	}

	require.NoError(t, store.Add(ctx, huge, "compromised", clk.Now().Add(time.Hour)))
	revoked, err := store.Contains(ctx, huge)
	require.NoError(t, err)
	assert.True(t, revoked)

	entry, ok := store.Lookup(huge)
	require.True(t, ok)
	assert.LessOrEqual(t, len(entry.Identifier), revocation.MaxIdentifierLength)

	revoked, _ = store.Contains(ctx, huge[:len(huge)-1])
	assert.False(t, revoked)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()
	expires := clk.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = store.Add(ctx, fmt.Sprintf("jti-%d", i%10), "logout", expires)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Contains(ctx, fmt.Sprintf("jti-%d", i%10))
		}(i)
	}
	wg.Wait()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalActive)
}

func TestKey(t *testing.T) {
	short := strings.Repeat("a", revocation.MaxIdentifierLength)
	assert.Equal(t, short, revocation.Key(short))

	long := short + "b"
	key := revocation.Key(long)
	assert.True(t, strings.HasPrefix(key, "b3:"))
	assert.Len(t, key, 3+64)
	assert.Equal(t, key, revocation.Key(long))
}

/*
TestSweeper_Sweep purges expired entries and reports fresh stats.
*/
func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	require.NoError(t, store.Add(ctx, "a", "logout", clk.Now().Add(time.Minute)))
	require.NoError(t, store.Add(ctx, "b", "logout", clk.Now().Add(time.Hour)))
	clk.Advance(time.Hour - time.Second)

	var reported revocation.Stats
	sweeper := revocation.NewSweeper(store, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sweeper.OnSweep = func(stats revocation.Stats) { reported = stats }

	sweeper.Sweep(ctx)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, revocation.Stats{TotalActive: 1}, reported)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store, _ := newStore()
	sweeper := revocation.NewSweeper(store, time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

/*
TestMemoryStore_AddIfAbsent ensures only the first claim of an identifier
wins, and that an expired claim can be taken again.
*/
func TestMemoryStore_AddIfAbsent(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()

	added, err := store.AddIfAbsent(ctx, "refresh-1", "rotated", clk.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddIfAbsent(ctx, "refresh-1", "rotated", clk.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, added)

	clk.Advance(2 * time.Minute)
	added, err = store.AddIfAbsent(ctx, "refresh-1", "rotated", clk.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, added)

	_, err = store.AddIfAbsent(ctx, "", "rotated", clk.Now().Add(time.Minute))
	assert.ErrorIs(t, err, revocation.ErrEmptyIdentifier)
}

/*
TestMemoryStore_AddIfAbsentConcurrent races many claims on one identifier.
Exactly one must succeed.
*/
func TestMemoryStore_AddIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	store, clk := newStore()
	expiresAt := clk.Now().Add(time.Hour)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := store.AddIfAbsent(ctx, "refresh-race", "rotated", expiresAt)
			if err == nil && added {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
