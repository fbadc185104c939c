// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package secret_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/auth/secret"
	"github.com/taibuivan/rewards/internal/auth/token"
)

// strongSecret is 64+ bytes covering all four classes.
var strongSecret = []byte("Aa1!" + strings.Repeat("Zq9#", 16))

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

/*
TestValidate covers the strength rules and their stable messages.
*/
func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		material []byte
		valid    bool
		errors   []string
	}{
		{"empty", nil, false, []string{secret.ErrMsgEmpty, secret.ErrMsgTooShort}},
		{"short", []byte("Abc123!"), false, []string{secret.ErrMsgTooShort}},
		{"lowercase_only", []byte(strings.Repeat("a", 80)), false, []string{secret.ErrMsgDiversity}},
		{"short_and_flat", []byte("aaaa"), false, []string{secret.ErrMsgTooShort, secret.ErrMsgDiversity}},
		{"three_classes", []byte(strings.Repeat("aB3", 22)), true, nil},
		{"four_classes", strongSecret, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := secret.Validate(tt.material, secret.DefaultMinLength)
			assert.Equal(t, tt.valid, result.IsValid)
			assert.Equal(t, tt.errors, result.Errors)
		})
	}
}

func TestValidate_Score(t *testing.T) {
	assert.Equal(t, 8, secret.Validate(strongSecret[:64], 64).Score)
	assert.Greater(t, secret.Validate(strongSecret, 64).Score, secret.Validate([]byte("aB3aB3"), 64).Score)
}

func TestGenerateMaterial(t *testing.T) {
	first, err := secret.GenerateMaterial()
	require.NoError(t, err)
	second, err := secret.GenerateMaterial()
	require.NoError(t, err)

	assert.True(t, secret.Validate(first, secret.DefaultMinLength).IsValid)
	assert.NotEqual(t, first, second)
}

/*
TestNew_ConfiguredSecret uses strong configured material as version 1.
*/
func TestNew_ConfiguredSecret(t *testing.T) {
	manager, err := secret.New(context.Background(), strongSecret, secret.WithStrict(true))
	require.NoError(t, err)

	current, err := manager.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, strongSecret, current.Material)
	assert.True(t, current.IsCurrent())
	assert.True(t, manager.Status().IsValid)
}

func TestNew_WeakSecret(t *testing.T) {
	t.Run("strict_rejects", func(t *testing.T) {
		_, err := secret.New(context.Background(), []byte("changeme"), secret.WithStrict(true))
		assert.ErrorIs(t, err, secret.ErrWeakSecret)
	})

	t.Run("lenient_warns", func(t *testing.T) {
		manager, err := secret.New(context.Background(), []byte("changeme"))
		require.NoError(t, err)

		status := manager.Status()
		assert.False(t, status.IsValid)
		assert.Contains(t, status.Errors, secret.ErrMsgTooShort)
	})
}

func TestNew_GeneratesWhenUnset(t *testing.T) {
	manager, err := secret.New(context.Background(), nil, secret.WithStrict(true))
	require.NoError(t, err)

	current, err := manager.Current()
	require.NoError(t, err)
	assert.True(t, secret.Validate(current.Material, secret.DefaultMinLength).IsValid)
}

/*
TestRotate_GraceWindow verifies the retired secret keeps verifying until the
grace window elapses, then disappears.
*/
func TestRotate_GraceWindow(t *testing.T) {
	clk := newClock()
	manager, err := secret.New(context.Background(), strongSecret,
		secret.WithClock(clk.Now),
		secret.WithGraceWindow(time.Hour),
	)
	require.NoError(t, err)

	rotated, err := manager.Rotate(context.Background())
	require.NoError(t, err)
	require.True(t, rotated)

	current, err := manager.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.NotEqual(t, strongSecret, current.Material)

	old, ok := manager.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, strongSecret, old.Material)
	assert.False(t, old.IsCurrent())
	assert.Len(t, manager.VerificationSecrets(), 2)

	clk.Advance(time.Hour + time.Second)

	_, ok = manager.Lookup(1)
	assert.False(t, ok)
	assert.Len(t, manager.VerificationSecrets(), 1)
}

func TestRotate_CapsRetired(t *testing.T) {
	manager, err := secret.New(context.Background(), strongSecret, secret.WithMaxRetired(2))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := manager.Rotate(context.Background())
		require.NoError(t, err)
	}

	secrets := manager.VerificationSecrets()
	require.Len(t, secrets, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{secrets[0].Version, secrets[1].Version, secrets[2].Version})
}

/*
TestRotate_Concurrent checks that concurrent rotations produce strictly
increasing, unique versions.
*/
func TestRotate_Concurrent(t *testing.T) {
	manager, err := secret.New(context.Background(), strongSecret)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = manager.Rotate(context.Background())
			_, _ = manager.Current()
		}()
	}
	wg.Wait()

	current, err := manager.Current()
	require.NoError(t, err)
	assert.Equal(t, 11, current.Version)
}

// # Persistence

type memoryRepository struct {
	mu      sync.Mutex
	secrets []secret.SigningSecret
	saveErr error
}

func (r *memoryRepository) Load(context.Context) ([]secret.SigningSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]secret.SigningSecret, len(r.secrets))
	copy(out, r.secrets)
	return out, nil
}

func (r *memoryRepository) Save(_ context.Context, next secret.SigningSecret, retiredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for i := range r.secrets {
		if r.secrets[i].RetiredAt == nil {
			at := retiredAt
			r.secrets[i].RetiredAt = &at
		}
	}
	r.secrets = append([]secret.SigningSecret{next}, r.secrets...)
	return nil
}

func TestManager_PersistsAndReloads(t *testing.T) {
	repository := &memoryRepository{}

	first, err := secret.New(context.Background(), strongSecret, secret.WithRepository(repository))
	require.NoError(t, err)
	require.Len(t, repository.secrets, 1)

	// A second instance picks up the persisted version instead of its own material.
	second, err := secret.New(context.Background(), nil, secret.WithRepository(repository))
	require.NoError(t, err)
	current, err := second.Current()
	require.NoError(t, err)
	assert.Equal(t, strongSecret, current.Material)

	_, err = first.Rotate(context.Background())
	require.NoError(t, err)

	require.NoError(t, second.Reload(context.Background()))
	current, err = second.Current()
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)

	_, ok := second.Lookup(1)
	assert.True(t, ok)
}

func TestRotate_PersistenceFailureKeepsState(t *testing.T) {
	repository := &memoryRepository{}
	manager, err := secret.New(context.Background(), strongSecret, secret.WithRepository(repository))
	require.NoError(t, err)

	repository.saveErr = errors.New("connection reset")

	rotated, err := manager.Rotate(context.Background())
	require.Error(t, err)
	assert.False(t, rotated)

	current, err := manager.Current()
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
}

/*
TestWatch_PicksUpRotation verifies that a token signed after a rotation on one
instance verifies on another instance sharing the repository.
*/
func TestWatch_PicksUpRotation(t *testing.T) {
	repository := &memoryRepository{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	issuer, err := secret.New(ctx, strongSecret, secret.WithRepository(repository))
	require.NoError(t, err)
	verifier, err := secret.New(ctx, nil, secret.WithRepository(repository))
	require.NoError(t, err)

	go verifier.Watch(ctx, 10*time.Millisecond)

	rotated, err := issuer.Rotate(ctx)
	require.NoError(t, err)
	require.True(t, rotated)

	codec := token.NewCodec("rewards-api", "rewards-web")
	claims, err := codec.NewClaims(7, "alice@example.com", "customer", token.TypeAccess, time.Minute)
	require.NoError(t, err)
	signing, err := issuer.Current()
	require.NoError(t, err)
	raw, err := codec.Encode(claims, signing)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := verifier.Current()
		return err == nil && current.Version == 2
	}, time.Second, 5*time.Millisecond)

	decoded, failure := codec.Decode(raw, verifier)
	require.Nil(t, failure)
	assert.Equal(t, claims.ID, decoded.ID)
}

/* TestWatch_WithoutRepository verifies Watch returns at once when nothing is persisted. */
func TestWatch_WithoutRepository(t *testing.T) {
	manager, err := secret.New(context.Background(), strongSecret)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		manager.Watch(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return")
	}
}
