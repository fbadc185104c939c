// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/auth/revocation"
	"github.com/taibuivan/rewards/internal/auth/secret"
	"github.com/taibuivan/rewards/internal/auth/session"
	"github.com/taibuivan/rewards/internal/auth/token"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/ctxutil"
	"github.com/taibuivan/rewards/internal/platform/middleware"
	requestutil "github.com/taibuivan/rewards/internal/platform/request"
	"github.com/taibuivan/rewards/internal/platform/respond"
	"github.com/taibuivan/rewards/internal/platform/validate"
)

// Operator is the administrative surface of [*session.Service].
type Operator interface {
	RotateSecret(ctx context.Context) (bool, error)
	SecretStatus() secret.ValidationResult
	Stats(ctx context.Context) (revocation.Stats, error)
	Revoke(ctx context.Context, tokenOrJTI, reason string) error
}

// RotationCounter is satisfied by [*metrics.Metrics].
type RotationCounter interface {
	IncSecretRotations()
}

// AdminHandler serves the operator endpoints. Every route requires the admin role.
type AdminHandler struct {
	operator Operator
	counter  RotationCounter
}

// NewAdminHandler constructs an [AdminHandler]. counter may be nil.
func NewAdminHandler(operator Operator, counter RotationCounter) *AdminHandler {
	return &AdminHandler{operator: operator, counter: counter}
}

// RegisterRoutes mounts the operator endpoints under /admin.
func (handler *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(authz.RoleAdmin))

		r.Post("/secrets/rotate", handler.rotateSecret)
		r.Get("/secrets/status", handler.secretStatus)
		r.Get("/revocations/stats", handler.revocationStats)
		r.Post("/revocations", handler.revoke)
	})
}

/*
POST /api/v1/admin/secrets/rotate.

Description: Starts signing with a fresh secret. Tokens signed by the previous
secret keep verifying for the grace window.

Response:
  - 200: {"rotated": bool}; false when another replica rotated first
*/
func (handler *AdminHandler) rotateSecret(writer http.ResponseWriter, request *http.Request) {
	rotated, err := handler.operator.RotateSecret(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if rotated && handler.counter != nil {
		handler.counter.IncSecretRotations()
	}

	principal, _ := requestutil.Principal(request)
	ctxutil.GetLogger(request.Context()).WarnContext(request.Context(), "signing_secret_rotation_requested",
		slog.Int64("admin_id", principal.UserID),
		slog.Bool("rotated", rotated),
	)

	respond.OK(writer, map[string]bool{FieldRotated: rotated})
}

// GET /api/v1/admin/secrets/status reports the current secret's strength.
func (handler *AdminHandler) secretStatus(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.operator.SecretStatus())
}

// GET /api/v1/admin/revocations/stats reports the revocation list size.
func (handler *AdminHandler) revocationStats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.operator.Stats(request.Context())
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}
	respond.OK(writer, stats)
}

type revokeRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

/*
POST /api/v1/admin/revocations.

Request:
  - Body: revokeRequest (Token: a full token or a bare jti, Reason)

Response:
  - 204: Revoked, or the token had already expired
  - 400: Validation failure, or a token that does not verify
*/
func (handler *AdminHandler) revoke(writer http.ResponseWriter, request *http.Request) {
	var input revokeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if input.Reason == "" {
		input.Reason = session.ReasonAdmin
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		OneOf(FieldReason, input.Reason, session.ReasonLogout, session.ReasonCompromised, session.ReasonAdmin)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.operator.Revoke(request.Context(), input.Token, input.Reason)
	var failure *token.Failure
	switch {
	case errors.As(err, &failure):
		respond.Error(writer, request, validate.RequiredError(FieldToken, "Token does not verify: "+failure.Code()))
		return
	case errors.Is(err, revocation.ErrEmptyIdentifier):
		respond.Error(writer, request, validate.RequiredError(FieldToken, "This field is required"))
		return
	case err != nil:
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	principal, _ := requestutil.Principal(request)
	ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "admin_revocation",
		slog.Int64("admin_id", principal.UserID),
		slog.String("reason", input.Reason),
	)
	respond.NoContent(writer)
}
