// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/auth/token"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/constants"
	"github.com/taibuivan/rewards/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/rewards/internal/platform/request"
	"github.com/taibuivan/rewards/internal/platform/respond"
)

// # Authentication

// TokenVerifier is satisfied by [*session.Service].
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (authz.Principal, error)
}

// tokenMessages are the client-facing texts for each failure kind.
var tokenMessages = map[token.Kind]string{
	token.KindMalformed:              "Malformed token",
	token.KindInvalidSignature:       "Invalid token signature",
	token.KindExpired:                "Token has expired",
	token.KindIssuerAudienceMismatch: "Token was not issued for this service",
	token.KindRevoked:                "Token has been revoked",
	token.KindUserNotFound:           "Account no longer exists",
	token.KindUserBanned:             "Account is banned",
}

/*
Authenticate verifies the bearer token, if any, and stores the principal.

# Flow
 1. Read 'Authorization: Bearer <token>', falling back to the access_token cookie.
 2. Without either, the request proceeds as anonymous.
 3. A rejected token ends the request with 401 and the failure code.
 4. A verifier outage ends the request with 500; it never degrades to anonymous.
*/
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Credential Extraction ──────────────────────────────────────
			raw, err := bearerToken(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			if raw == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Token Verification ─────────────────────────────────────────
			principal, err := verifier.Verify(request.Context(), raw)
			if err != nil {
				respond.Error(writer, request, TokenError(request.Context(), err))
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			reportPrincipal(request.Context(), principal)
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// TokenError maps a verification error onto the API error envelope.
func TokenError(ctx context.Context, err error) error {
	var failure *token.Failure
	if !errors.As(err, &failure) {
		return apperr.Internal(err)
	}

	ctxutil.GetLogger(ctx).WarnContext(ctx, "token_verification_failed",
		slog.String("code", failure.Code()),
		slog.String("detail", failure.Detail),
	)

	message, ok := tokenMessages[failure.Kind]
	if !ok {
		message = "Invalid token"
	}
	return apperr.TokenRejected(failure.Code(), message, failure)
}

func bearerToken(request *http.Request) (string, error) {
	if header := request.Header.Get(constants.HeaderAuthorization); header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, constants.BearerScheme) || strings.TrimSpace(value) == "" {
			return "", apperr.Unauthorized("Invalid authorization format")
		}
		return strings.TrimSpace(value), nil
	}

	if cookie, err := request.Cookie(constants.AccessTokenCookieName); err == nil {
		return cookie.Value, nil
	}
	return "", nil
}

// # Authorization

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if _, err := requestutil.RequiredPrincipal(request); err != nil {
			respond.Error(writer, request, err)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks principals whose role is not in roles. It implies
// [RequireAuth].
func RequireRole(roles ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal, err := requestutil.RequiredPrincipal(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(writer, request)
					return
				}
			}
			respond.Error(writer, request, apperr.Forbidden("Insufficient permissions"))
		})
	}
}

// RequireActive blocks restricted accounts from state-changing methods.
// Reads stay available so a restricted user can still see their data, and
// the auth routes stay open so they can still log out.
func RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal, ok := requestutil.Principal(request)
		if ok && principal.Status == authz.StatusRestricted && isMutating(request.Method) &&
			!strings.HasPrefix(request.URL.Path, constants.AuthRoutePrefix) {
			respond.Error(writer, request, apperr.Forbidden("Account is restricted"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// GuardChecker is satisfied by [*authz.Engine].
type GuardChecker interface {
	Check(ctx context.Context, guard authz.Guard, principal authz.Principal, resourceID int64) authz.Decision
}

/*
RequireGuard evaluates an ownership guard against the resource named by the
URL parameter param.

A deny becomes 403. An engine error becomes 500 without the reason, so the
response never reveals whether a relationship exists.
*/
func RequireGuard(engine GuardChecker, guard authz.Guard, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal, err := requestutil.RequiredPrincipal(request)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			resourceID, err := requestutil.IDParam(request, param)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			decision := engine.Check(request.Context(), guard, principal, resourceID)
			switch decision.Outcome {
			case authz.OutcomeAllow:
				next.ServeHTTP(writer, request)
			case authz.OutcomeDeny:
				respond.Error(writer, request, apperr.Forbidden("You do not have access to this resource"))
			default:
				respond.Error(writer, request, apperr.Internal(errors.New("authz: "+decision.Reason)))
			}
		})
	}
}
