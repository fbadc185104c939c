// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth is the HTTP entry point of the token lifecycle: credential
login, refresh rotation, logout and the operator endpoints for secrets and
revocations.

Architecture:

  - Service: checks credentials against the account directory, then delegates
    every token operation to the session service.
  - Cookies: refresh tokens leave the server only inside a tokencrypt
    envelope, so a stolen cookie jar does not expose a usable bearer token.
  - Admin: secret rotation and revocation management, admin role only.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/auth/session"
	"github.com/taibuivan/rewards/internal/auth/token"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/sec"
	"github.com/taibuivan/rewards/internal/users/account"
)

// # Contracts

// Accounts is the subset of [account.Repository] login needs.
type Accounts interface {
	FindByEmail(context context.Context, email string) (*account.Account, error)
	RecordLogin(context context.Context, id int64, at time.Time) error
}

// Sessions is satisfied by [*session.Service].
type Sessions interface {
	Issue(ctx context.Context, seed session.Seed) (session.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (session.TokenPair, authz.Principal, error)
	Revoke(ctx context.Context, tokenOrJTI, reason string) error
}

// Service implements the login, refresh and logout use cases.
type Service struct {
	accounts Accounts
	sessions Sessions
	now      func() time.Time
	logger   *slog.Logger
}

// NewService constructs a new [Service].
func NewService(accounts Accounts, sessions Sessions, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{accounts: accounts, sessions: sessions, now: time.Now, logger: logger}
}

// # Login Flow

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	Tokens  session.TokenPair
	Account *account.Account
}

/*
Login authenticates an email and password and issues a token pair.

Description: Unknown emails, wrong passwords and deleted accounts all return
the same 401 after the same amount of bcrypt work. Banned accounts are
rejected only after the password matched, so a ban is not an oracle either.

Parameters:
  - context: context.Context
  - email: string (normalized here)
  - password: string

Returns:
  - LoginResult: token pair plus the account
  - error: apperr.Unauthorized, USER_BANNED, or internal failures
*/
func (service *Service) Login(context context.Context, email, password string) (LoginResult, error) {
	email = session.NormalizeEmail(email)

	// ── 1. Account lookup ──────────────────────────────────────────────
	found, err := service.accounts.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			sec.SpendComparison(password)
			service.logger.InfoContext(context, "login_failed", slog.String("reason", "unknown_email"))
			return LoginResult{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return LoginResult{}, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// ── 2. Credential check ────────────────────────────────────────────
	if !sec.CheckPasswordHash(password, found.PasswordHash) {
		service.logger.InfoContext(context, "login_failed",
			slog.String("reason", "wrong_password"),
			slog.Int64("user_id", found.ID),
		)
		return LoginResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	// ── 3. Standing ────────────────────────────────────────────────────
	if found.Status == authz.StatusBanned {
		service.logger.WarnContext(context, "login_rejected_banned", slog.Int64("user_id", found.ID))
		return LoginResult{}, apperr.TokenRejected(token.KindUserBanned.Code(), "Account is banned", nil)
	}

	// ── 4. Issue ───────────────────────────────────────────────────────
	pair, err := service.sessions.Issue(context, session.Seed{UserID: found.ID, Email: found.Email, Role: found.Role})
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth_service_issue_failed: %w", err)
	}

	now := service.now().UTC()
	if err := service.accounts.RecordLogin(context, found.ID, now); err != nil {
		service.logger.WarnContext(context, "login_timestamp_failed",
			slog.Int64("user_id", found.ID),
			slog.Any("error", err),
		)
	} else {
		found.LastLoginAt = &now
	}

	service.logger.InfoContext(context, "login_succeeded",
		slog.Int64("user_id", found.ID),
		slog.String("role", string(found.Role)),
	)
	return LoginResult{Tokens: pair, Account: found}, nil
}

// # Session Lifecycle

// Refresh rotates a refresh token. Token failures keep their kind so the
// transport can answer with the precise code.
func (service *Service) Refresh(context context.Context, refreshToken string) (session.TokenPair, error) {
	pair, _, err := service.sessions.Refresh(context, refreshToken)
	return pair, err
}

/*
Logout revokes the caller's access token and, when presented, its refresh
token.

A refresh token that no longer verifies is logged and ignored: the caller is
logging out anyway, and its access token is revoked regardless.
*/
func (service *Service) Logout(context context.Context, principal authz.Principal, refreshToken string) error {
	if principal.TokenID != "" {
		if err := service.sessions.Revoke(context, principal.TokenID, session.ReasonLogout); err != nil {
			return fmt.Errorf("auth_service_logout_access_failed: %w", err)
		}
	}

	if refreshToken == "" {
		return nil
	}

	err := service.sessions.Revoke(context, refreshToken, session.ReasonLogout)
	var failure *token.Failure
	if errors.As(err, &failure) {
		service.logger.InfoContext(context, "logout_refresh_ignored",
			slog.Int64("user_id", principal.UserID),
			slog.String("code", failure.Code()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth_service_logout_refresh_failed: %w", err)
	}
	return nil
}
