// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package secret

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taibuivan/rewards/internal/auth/tokencrypt"
)

// # Contracts

// Repository persists signing secrets so every instance signs with the same
// version after a restart or a rotation elsewhere.
type Repository interface {
	// Load returns stored secrets ordered newest version first.
	Load(ctx context.Context) ([]SigningSecret, error)

	// Save retires every current secret at retiredAt and stores next, atomically.
	Save(ctx context.Context, next SigningSecret, retiredAt time.Time) error
}

// # Manager

// keyring is an immutable snapshot. Never mutate one after publishing it.
type keyring struct {
	current SigningSecret
	retired []SigningSecret // newest first
}

// Manager owns the current and retired signing secrets.
//
// Reads are lock-free. Rotate and Reload serialize on a mutex and publish a
// new keyring with a single atomic store.
type Manager struct {
	ring     atomic.Pointer[keyring]
	rotateMu sync.Mutex

	minLength   int
	graceWindow time.Duration
	maxRetired  int
	strict      bool
	now         func() time.Time
	repository  Repository
	logger      *slog.Logger
}

// Option configures a [Manager].
type Option func(*Manager)

// WithMinLength overrides [DefaultMinLength].
func WithMinLength(length int) Option {
	return func(m *Manager) {
		if length > 0 {
			m.minLength = length
		}
	}
}

// WithGraceWindow overrides [DefaultGraceWindow].
func WithGraceWindow(window time.Duration) Option {
	return func(m *Manager) {
		if window > 0 {
			m.graceWindow = window
		}
	}
}

// WithMaxRetired overrides [DefaultMaxRetired].
func WithMaxRetired(count int) Option {
	return func(m *Manager) {
		if count >= 0 {
			m.maxRetired = count
		}
	}
}

// WithStrict makes a weak configured secret a construction error.
// Enable in production-like environments.
func WithStrict(strict bool) Option {
	return func(m *Manager) { m.strict = strict }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRepository enables persistence.
func WithRepository(repository Repository) Option {
	return func(m *Manager) { m.repository = repository }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

/*
New builds a Manager.

Resolution order for the initial current secret:
 1. The newest current secret in the repository, if one is configured. Rows
    that do not open under the repository's cipher are fatal in strict mode;
    otherwise the repository is detached and the Manager runs unpersisted.
 2. The configured material (validated; fatal in strict mode when weak).
 3. A freshly generated secret.

Returns:
  - *Manager: ready for issuance
  - error: ErrWeakSecret (strict mode), repository or entropy failures
*/
func New(ctx context.Context, configured []byte, opts ...Option) (*Manager, error) {
	manager := &Manager{
		minLength:   DefaultMinLength,
		graceWindow: DefaultGraceWindow,
		maxRetired:  DefaultMaxRetired,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(manager)
	}

	if manager.repository != nil {
		loaded, err := manager.repository.Load(ctx)
		switch {
		case errors.Is(err, tokencrypt.ErrDecryption) && !manager.strict:
			// Rows sealed under another key. Run unpersisted rather than
			// overwrite secrets other instances may still open.
			manager.logger.Warn("signing_secret_store_unreadable",
				slog.Any("error", err),
				slog.String("hint", "AUTH_TOKEN_ENCRYPTION_KEY differs from the key that sealed auth.signingsecret"),
			)
			manager.repository = nil
			loaded = nil
		case err != nil:
			return nil, fmt.Errorf("secret: load persisted secrets: %w", err)
		}
		if ring, ok := manager.buildRing(loaded); ok {
			manager.ring.Store(ring)
			manager.logger.Info("signing_secret_loaded",
				slog.Int("version", ring.current.Version),
				slog.Int("retired", len(ring.retired)),
			)
			return manager, nil
		}
	}

	initial, err := manager.initialSecret(configured)
	if err != nil {
		return nil, err
	}

	if manager.repository != nil {
		if err := manager.repository.Save(ctx, initial, initial.CreatedAt); err != nil {
			return nil, fmt.Errorf("secret: persist initial secret: %w", err)
		}
	}

	manager.ring.Store(&keyring{current: initial})
	return manager, nil
}

// initialSecret validates configured material or generates a new secret.
func (m *Manager) initialSecret(configured []byte) (SigningSecret, error) {
	now := m.now().UTC()

	if len(configured) == 0 {
		m.logger.Warn("signing_secret_not_configured_generating",
			slog.String("hint", "tokens will not survive a restart unless a repository is configured"),
		)
		return m.generate(1, now)
	}

	result := Validate(configured, m.minLength)
	if !result.IsValid {
		if m.strict {
			return SigningSecret{}, fmt.Errorf("%w: %v", ErrWeakSecret, result.Errors)
		}
		m.logger.Warn("signing_secret_weak", slog.Any("errors", result.Errors))
	}

	material := make([]byte, len(configured))
	copy(material, configured)

	return SigningSecret{
		Version:       1,
		Material:      material,
		CreatedAt:     now,
		StrengthScore: result.Score,
	}, nil
}

// # Read Path

// Current returns the secret used for new issuance.
func (m *Manager) Current() (SigningSecret, error) {
	ring := m.ring.Load()
	if ring == nil {
		return SigningSecret{}, ErrNoSecret
	}
	return ring.current, nil
}

// Lookup resolves a version for verification. Retired secrets past the grace
// window are not returned.
func (m *Manager) Lookup(version int) (SigningSecret, bool) {
	ring := m.ring.Load()
	if ring == nil {
		return SigningSecret{}, false
	}
	if ring.current.Version == version {
		return ring.current, true
	}

	now := m.now()
	for _, retired := range ring.retired {
		if retired.Version == version && retired.InGrace(now, m.graceWindow) {
			return retired, true
		}
	}
	return SigningSecret{}, false
}

// VerificationSecrets returns the current secret followed by every retired
// secret still in grace, newest first.
func (m *Manager) VerificationSecrets() []SigningSecret {
	ring := m.ring.Load()
	if ring == nil {
		return nil
	}

	now := m.now()
	secrets := make([]SigningSecret, 0, 1+len(ring.retired))
	secrets = append(secrets, ring.current)
	for _, retired := range ring.retired {
		if retired.InGrace(now, m.graceWindow) {
			secrets = append(secrets, retired)
		}
	}
	return secrets
}

// Status reports the health of the current secret. It never panics.
func (m *Manager) Status() (result ValidationResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = ValidationResult{IsValid: false, Errors: []string{fmt.Sprintf("status check failed: %v", recovered)}}
		}
	}()

	ring := m.ring.Load()
	if ring == nil {
		return ValidationResult{IsValid: false, Errors: []string{ErrNoSecret.Error()}}
	}
	return Validate(ring.current.Material, m.minLength)
}

// GraceWindow returns the configured verification grace window.
func (m *Manager) GraceWindow() time.Duration {
	return m.graceWindow
}

// # Write Path

/*
Rotate generates a new current secret and retires the previous one.

The previous secret keeps verifying for the grace window. When a repository is
configured the new version is persisted before it is published; a persistence
failure leaves the in-memory state untouched.

Returns:
  - bool: true when the new secret is active
  - error: entropy or persistence failures
*/
func (m *Manager) Rotate(ctx context.Context) (bool, error) {
	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	previous := m.ring.Load()
	if previous == nil {
		return false, ErrNoSecret
	}

	now := m.now().UTC()
	next, err := m.generate(previous.current.Version+1, now)
	if err != nil {
		return false, err
	}

	if m.repository != nil {
		if err := m.repository.Save(ctx, next, now); err != nil {
			m.logger.Error("signing_secret_rotation_failed",
				slog.Int("version", next.Version),
				slog.Any("error", err),
			)
			return false, fmt.Errorf("secret: persist rotated secret: %w", err)
		}
	}

	retiredAt := now
	outgoing := previous.current
	outgoing.RetiredAt = &retiredAt

	m.ring.Store(&keyring{
		current: next,
		retired: m.pruneRetired(append([]SigningSecret{outgoing}, previous.retired...), now),
	})

	m.logger.Info("signing_secret_rotated",
		slog.Int("previous_version", outgoing.Version),
		slog.Int("version", next.Version),
		slog.Duration("grace_window", m.graceWindow),
	)
	return true, nil
}

// Reload refreshes the keyring from the repository, picking up rotations made
// by other instances. It is a no-op without a repository.
func (m *Manager) Reload(ctx context.Context) error {
	if m.repository == nil {
		return nil
	}

	loaded, err := m.repository.Load(ctx)
	if err != nil {
		return fmt.Errorf("secret: reload: %w", err)
	}

	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	ring, ok := m.buildRing(loaded)
	if !ok {
		return errors.New("secret: reload: repository holds no current secret")
	}

	if existing := m.ring.Load(); existing != nil && existing.current.Version > ring.current.Version {
		return nil
	}
	m.ring.Store(ring)
	return nil
}

// DefaultReloadInterval is used by [Manager.Watch] when the interval is not positive.
const DefaultReloadInterval = 30 * time.Second

/*
Watch reloads the keyring every interval until ctx is cancelled, so a
rotation made by another instance is picked up here. Call it in its own
goroutine. Without a repository it returns immediately.

A token signed by a freshly rotated version can fail verification on this
instance for at most one interval.
*/
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if m.repository == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultReloadInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("signing_secret_watch_started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("signing_secret_watch_stopped")
			return
		case <-ticker.C:
			before := m.currentVersion()
			if err := m.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				m.logger.Warn("signing_secret_reload_failed", slog.Any("error", err))
				continue
			}
			if after := m.currentVersion(); after != before {
				m.logger.Info("signing_secret_reloaded",
					slog.Int("previous_version", before),
					slog.Int("version", after),
				)
			}
		}
	}
}

func (m *Manager) currentVersion() int {
	if ring := m.ring.Load(); ring != nil {
		return ring.current.Version
	}
	return 0
}

// # Helpers

// buildRing assembles a keyring from persisted rows (newest first).
func (m *Manager) buildRing(secrets []SigningSecret) (*keyring, bool) {
	ring := &keyring{}
	found := false

	for _, candidate := range secrets {
		if candidate.IsCurrent() && !found {
			ring.current = candidate
			found = true
			continue
		}
		if candidate.RetiredAt == nil {
			// A second "current" row means an interrupted rotation; treat it as retired now.
			retiredAt := m.now().UTC()
			candidate.RetiredAt = &retiredAt
		}
		ring.retired = append(ring.retired, candidate)
	}

	if !found {
		return nil, false
	}
	ring.retired = m.pruneRetired(ring.retired, m.now())
	return ring, true
}

// pruneRetired drops secrets past grace and caps the set at maxRetired.
func (m *Manager) pruneRetired(retired []SigningSecret, now time.Time) []SigningSecret {
	kept := make([]SigningSecret, 0, len(retired))
	for _, candidate := range retired {
		if candidate.InGrace(now, m.graceWindow) {
			kept = append(kept, candidate)
		}
	}
	if len(kept) > m.maxRetired {
		kept = kept[:m.maxRetired]
	}
	return kept
}

// generate creates fresh, validated material for the given version.
func (m *Manager) generate(version int, now time.Time) (SigningSecret, error) {
	material, err := GenerateMaterial()
	if err != nil {
		return SigningSecret{}, err
	}

	return SigningSecret{
		Version:       version,
		Material:      material,
		CreatedAt:     now,
		StrengthScore: Validate(material, m.minLength).Score,
	}, nil
}

// GenerateMaterial returns base64url text carrying 64 bytes of entropy.
//
// The encoded alphabet almost always covers three classes; the loop re-draws
// in the rare case it does not.
func GenerateMaterial() ([]byte, error) {
	raw := make([]byte, generatedEntropyBytes)

	for attempt := 0; attempt < 8; attempt++ {
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("secret: read entropy: %w", err)
		}
		encoded := []byte(base64.RawURLEncoding.EncodeToString(raw))
		if Validate(encoded, DefaultMinLength).IsValid {
			return encoded, nil
		}
	}
	return nil, errors.New("secret: could not generate a strong secret")
}
