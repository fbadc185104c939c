// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account provides the HTTP delivery layer for user profiles.

# Security

Every route runs the self-or-admin guard: a user reads and edits only their
own record, admins any record.
*/
package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/platform/middleware"
	requestutil "github.com/taibuivan/rewards/internal/platform/request"
	"github.com/taibuivan/rewards/internal/platform/respond"
)

// Handler implements the HTTP layer for user accounts.
type Handler struct {
	accountService *Service
	engine         middleware.GuardChecker
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, engine middleware.GuardChecker) *Handler {
	return &Handler{accountService: service, engine: engine}
}

// RegisterRoutes mounts the account endpoints on router.
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/users/{userID}", func(r chi.Router) {
		r.Use(middleware.RequireGuard(handler.engine, authz.GuardSelfOrAdmin, "userID"))

		r.Get("/", handler.getUser)
		r.Patch("/", handler.updateUser)
	})
}

/*
GET /api/v1/users/{userID}.

Response:
  - 200: Account
  - 401: Authentication required
  - 403: Not self and not admin
  - 404: Account not found (admins only; others are denied first)
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.IDParam(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.GetProfile(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, account)
}

// updateUserRequest defines the expected JSON payload for profile updates.
type updateUserRequest struct {
	DisplayName string `json:"display_name"`
}

/*
PATCH /api/v1/users/{userID}.

Request:
  - body: updateUserRequest

Response:
  - 200: Account after the update
  - 400: Invalid JSON or display name
*/
func (handler *Handler) updateUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.IDParam(request, "userID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateUserRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.UpdateDisplayName(request.Context(), userID, input.DisplayName)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, account)
}
