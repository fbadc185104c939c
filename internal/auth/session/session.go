// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session issues, verifies, refreshes and revokes session tokens.

Architecture:

  - Codec: [token.Codec] owns the wire format and the cryptographic checks.
  - Keys: a [Keyring] (normally [*secret.Manager]) supplies the signing secret
    and every secret still inside its grace window.
  - Revocation: a [revocation.Store] is consulted only after the signature
    has been verified, so forged tokens never reach it.
  - Directory: a [UserDirectory] turns the token subject into a live account,
    which is how bans take effect before a token expires.

Expected negatives are returned as [*Failure] values. Any other error means a
collaborator is unavailable and the request must fail closed.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/auth/revocation"
	"github.com/taibuivan/rewards/internal/auth/secret"
	"github.com/taibuivan/rewards/internal/auth/token"
)

// # Contracts & Types

// Failure is an expected verification negative. See [token.Kind].
type Failure = token.Failure

// ErrInvalidSeed is returned by Issue for a seed that cannot become a token.
var ErrInvalidSeed = errors.New("session: invalid token seed")

// Keyring is the part of [*secret.Manager] the service depends on.
type Keyring interface {
	token.KeySource
	Current() (secret.SigningSecret, error)
	Rotate(ctx context.Context) (bool, error)
	Status() secret.ValidationResult
}

// User is the directory view of an account.
type User struct {
	ID     int64
	Email  string
	Role   authz.Role
	Status authz.Status
}

// UserDirectory resolves token subjects to accounts.
type UserDirectory interface {
	Lookup(ctx context.Context, userID int64) (user User, found bool, err error)
}

// Observer receives outcome labels for metrics.
type Observer interface {
	ObserveVerification(result string)
	ObserveRevocation(reason string)
}

type noopObserver struct{}

func (noopObserver) ObserveVerification(string) {}
func (noopObserver) ObserveRevocation(string)   {}

// Seed is the identity a token pair is issued for.
type Seed struct {
	UserID int64
	Email  string
	Role   authz.Role
}

// TokenPair is returned by Issue and Refresh. ExpiresIn values are seconds.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	RefreshExpiresIn int       `json:"refresh_expires_in"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// # Service

// Service is safe for concurrent use.
type Service struct {
	keys       Keyring
	codec      *token.Codec
	revoked    revocation.Store
	users      UserDirectory
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	observer   Observer
}

// Option configures a [Service].
type Option func(*Service)

// WithAccessTTL overrides [DefaultAccessTTL].
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides [DefaultRefreshTTL].
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source used for bare jti expiries. Token
// expiry is checked by the codec's own clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver attaches a metrics observer.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewService wires the session service. users may be nil, in which case every
// verified subject is treated as an active account with the role in its token.
func NewService(keys Keyring, codec *token.Codec, revoked revocation.Store, users UserDirectory, opts ...Option) *Service {
	service := &Service{
		keys:       keys,
		codec:      codec,
		revoked:    revoked,
		users:      users,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
		logger:     slog.Default(),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// AccessTTL returns the configured access token lifetime.
func (service *Service) AccessTTL() time.Duration { return service.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (service *Service) RefreshTTL() time.Duration { return service.refreshTTL }

// # Issuance

/*
Issue signs a fresh access and refresh token for seed with the current secret.

Parameters:
  - seed: the account the pair is issued for; the email is normalized

Returns:
  - TokenPair: two tokens with independent jtis
  - error: ErrInvalidSeed, secret.ErrNoSecret or a signing failure
*/
func (service *Service) Issue(_ context.Context, seed Seed) (TokenPair, error) {
	if seed.UserID <= 0 || !seed.Role.Valid() {
		return TokenPair{}, ErrInvalidSeed
	}

	signing, err := service.keys.Current()
	if err != nil {
		return TokenPair{}, fmt.Errorf("session_issue_secret_failed: %w", err)
	}

	email := NormalizeEmail(seed.Email)

	access, err := service.codec.NewClaims(seed.UserID, email, string(seed.Role), token.TypeAccess, service.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := service.codec.NewClaims(seed.UserID, email, string(seed.Role), token.TypeRefresh, service.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	accessToken, err := service.codec.Encode(access, signing)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := service.codec.Encode(refresh, signing)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(service.accessTTL.Seconds()),
		RefreshExpiresIn: int(service.refreshTTL.Seconds()),
		AccessExpiresAt:  access.ExpiresAt.Time,
		RefreshExpiresAt: refresh.ExpiresAt.Time,
	}, nil
}

// # Verification

/*
Verify authenticates an access token and rebuilds its principal.

Checks run in order: codec (structure, algorithm, signature, expiry,
issuer/audience), token type, revocation, then account status. Restricted
accounts pass with Status set; callers decide what they may do.

Returns:
  - authz.Principal: populated only on success
  - error: a *Failure for expected negatives, anything else for hard failures
*/
func (service *Service) Verify(ctx context.Context, raw string) (authz.Principal, error) {
	principal, err := service.verify(ctx, raw, token.TypeAccess)
	service.observeVerification(err)
	return principal, err
}

func (service *Service) verify(ctx context.Context, raw string, expected token.Type) (authz.Principal, error) {
	claims, failure := service.codec.Decode(raw, service.keys)
	if failure != nil {
		return authz.Principal{}, failure
	}
	if claims.Type != expected {
		return authz.Principal{}, token.Fail(token.KindMalformed, "unexpected token type")
	}

	revoked, err := service.revoked.Contains(ctx, claims.ID)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("session_revocation_lookup_failed: %w", err)
	}
	if revoked {
		return authz.Principal{}, token.Fail(token.KindRevoked, "")
	}

	return service.resolve(ctx, claims)
}

// resolve builds the principal from claims and the live account.
func (service *Service) resolve(ctx context.Context, claims *token.Claims) (authz.Principal, error) {
	role, err := authz.ParseRole(claims.Role)
	if err != nil {
		return authz.Principal{}, token.Fail(token.KindMalformed, "unknown role")
	}

	principal := authz.Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      role,
		TokenID:   claims.ID,
		Status:    authz.StatusActive,
		IssuedAt:  timeOf(claims.IssuedAt),
		ExpiresAt: timeOf(claims.ExpiresAt),
	}

	if service.users == nil {
		return principal, nil
	}

	user, found, err := service.users.Lookup(ctx, claims.UserID)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("session_user_lookup_failed: %w", err)
	}
	if !found {
		return authz.Principal{}, token.Fail(token.KindUserNotFound, "")
	}

	switch user.Status {
	case authz.StatusBanned:
		return authz.Principal{}, token.Fail(token.KindUserBanned, "")
	case authz.StatusRestricted:
		service.logger.WarnContext(ctx, "restricted_user_authenticated",
			slog.Int64("user_id", user.ID),
		)
	}

	// The directory is authoritative: a demotion applies before the token expires
	if user.Role.Valid() {
		principal.Role = user.Role
	}
	if user.Status != "" {
		principal.Status = user.Status
	}
	return principal, nil
}

// # Refresh

/*
Refresh exchanges a refresh token for a new pair.

The account is resolved first, so a directory outage leaves the presented
token usable once the directory is back. The token is then claimed in the
revocation store with reason "rotated" before the new pair is issued. A second
presentation of the same token finds the claim and is rejected as Revoked.
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, authz.Principal, error) {
	claims, failure := service.codec.Decode(refreshToken, service.keys)
	if failure != nil {
		service.observeVerification(failure)
		return TokenPair{}, authz.Principal{}, failure
	}
	if claims.Type != token.TypeRefresh {
		failure := token.Fail(token.KindMalformed, "unexpected token type")
		service.observeVerification(failure)
		return TokenPair{}, authz.Principal{}, failure
	}

	principal, err := service.resolve(ctx, claims)
	if err != nil {
		service.observeVerification(err)
		return TokenPair{}, authz.Principal{}, err
	}

	claimed, err := service.revoked.AddIfAbsent(ctx, claims.ID, ReasonRotated, claims.ExpiresAt.Time)
	if err != nil {
		service.observeVerification(err)
		return TokenPair{}, authz.Principal{}, fmt.Errorf("session_refresh_claim_failed: %w", err)
	}
	if !claimed {
		service.logger.WarnContext(ctx, "refresh_token_reuse_detected",
			slog.Int64("user_id", claims.UserID),
			slog.String("jti", claims.ID),
		)
		failure := token.Fail(token.KindRevoked, "refresh token already used")
		service.observeVerification(failure)
		return TokenPair{}, authz.Principal{}, failure
	}
	service.observeVerification(nil)
	service.observer.ObserveRevocation(ReasonRotated)

	pair, err := service.Issue(ctx, Seed{UserID: principal.UserID, Email: principal.Email, Role: principal.Role})
	if err != nil {
		return TokenPair{}, authz.Principal{}, err
	}
	return pair, principal, nil
}

// # Revocation

/*
Revoke adds a token or a bare jti to the revocation list.

A token-shaped argument must verify against a known secret; its jti and
expiry are used. An already expired token needs no entry and is a no-op. Any
other argument is treated as a jti and kept for the refresh lifetime.

Revoking twice is harmless.
*/
func (service *Service) Revoke(ctx context.Context, tokenOrJTI, reason string) error {
	if tokenOrJTI == "" {
		return revocation.ErrEmptyIdentifier
	}
	if reason == "" {
		reason = ReasonAdmin
	}

	identifier := tokenOrJTI
	expiresAt := service.now().Add(service.refreshTTL)

	if token.LooksLikeToken(tokenOrJTI) {
		claims, failure := service.codec.Decode(tokenOrJTI, service.keys)
		switch {
		case failure == nil:
			identifier = claims.ID
			expiresAt = claims.ExpiresAt.Time
		case failure.Kind == token.KindExpired:
			return nil
		default:
			return failure
		}
	}

	if err := service.revoked.Add(ctx, identifier, reason, expiresAt); err != nil {
		return fmt.Errorf("session_revoke_failed: %w", err)
	}

	service.observer.ObserveRevocation(reason)
	service.logger.InfoContext(ctx, "token_revoked",
		slog.String("jti", identifier),
		slog.String("reason", reason),
	)
	return nil
}

// # Administration

// RotateSecret starts signing with a new secret version.
func (service *Service) RotateSecret(ctx context.Context) (bool, error) {
	return service.keys.Rotate(ctx)
}

// SecretStatus reports the strength of the current signing secret.
func (service *Service) SecretStatus() secret.ValidationResult {
	return service.keys.Status()
}

// Stats reports the revocation list size.
func (service *Service) Stats(ctx context.Context) (revocation.Stats, error) {
	return service.revoked.Stats(ctx)
}

// # Helpers

// NormalizeEmail folds an address to the form stored in tokens.
func NormalizeEmail(email string) string {
	folded := norm.NFKC.String(strings.TrimSpace(email))
	return cases.Lower(language.Und).String(folded)
}

func (service *Service) observeVerification(err error) {
	if err == nil {
		service.observer.ObserveVerification("ok")
		return
	}
	var failure *Failure
	if errors.As(err, &failure) {
		service.observer.ObserveVerification(failure.Kind.String())
		return
	}
	service.observer.ObserveVerification("error")
}

func timeOf(date *jwt.NumericDate) time.Time {
	if date == nil {
		return time.Time{}
	}
	return date.Time
}
