// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rewards/internal/auth/session"
	"github.com/taibuivan/rewards/internal/auth/tokencrypt"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/ctxutil"
	"github.com/taibuivan/rewards/internal/platform/middleware"
	requestutil "github.com/taibuivan/rewards/internal/platform/request"
	"github.com/taibuivan/rewards/internal/platform/respond"
	"github.com/taibuivan/rewards/internal/platform/validate"
	"github.com/taibuivan/rewards/internal/users/account"
)

// # Definitions & Constructors

// Handler implements the authentication endpoints.
type Handler struct {
	authService  *Service
	cookies      *CookieJar
	loginLimiter func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler]. loginLimiter wraps the login route
// only; pass nil to leave it unthrottled.
func NewHandler(service *Service, cookies *CookieJar, loginLimiter func(http.Handler) http.Handler) *Handler {
	if loginLimiter == nil {
		loginLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{authService: service, cookies: cookies, loginLimiter: loginLimiter}
}

/*
RegisterRoutes mounts the auth endpoints under /auth.

# Endpoints
  - POST /auth/login   : Credentials in, token pair out.
  - POST /auth/refresh : Rotates the refresh token.
  - POST /auth/logout  : Revokes the caller's tokens.
  - GET  /auth/me      : The verified principal.
*/
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.With(handler.loginLimiter).Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/logout", handler.logout)
			r.Get("/me", handler.me)
		})
	})
}

// # Request & Response Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	session.TokenPair
	User *account.Account `json:"user"`
}

/*
POST /api/v1/auth/login.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: loginResponse: token pair, user, and the sealed refresh cookie
  - 400: Validation failure
  - 401: Invalid credentials, or USER_BANNED
  - 429: Too many attempts from this address
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, MaxEmailLength).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.cookies.SetRefresh(writer, result.Tokens.RefreshToken, result.Tokens.RefreshExpiresAt); err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.OK(writer, loginResponse{TokenPair: result.Tokens, User: result.Account})
}

/*
POST /api/v1/auth/refresh.

Description: The refresh token is read from the sealed cookie, falling back to
a JSON body for clients that cannot hold cookies. A presented token is
single-use: replaying it answers TOKEN_REVOKED.

Response:
  - 200: session.TokenPair
  - 401: Missing, undecryptable or rejected refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	refreshToken, err := handler.refreshToken(request)
	if err != nil {
		handler.cookies.Clear(writer)
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.Refresh(request.Context(), refreshToken)
	if err != nil {
		handler.cookies.Clear(writer)
		respond.Error(writer, request, middleware.TokenError(request.Context(), err))
		return
	}

	if err := handler.cookies.SetRefresh(writer, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	respond.OK(writer, pair)
}

/*
POST /api/v1/auth/logout.

Response:
  - 204: Tokens revoked and cookies cleared
  - 401: Authentication required
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// An unreadable cookie still logs out the access token
	refreshToken, err := handler.cookies.Refresh(request)
	if err != nil {
		ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "logout_cookie_unreadable")
		refreshToken = ""
	}

	if err := handler.authService.Logout(request.Context(), principal, refreshToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.cookies.Clear(writer)
	respond.NoContent(writer)
}

/*
GET /api/v1/auth/me.

Response:
  - 200: authz.Principal
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, principal)
}

// refreshToken prefers the sealed cookie over the request body.
func (handler *Handler) refreshToken(request *http.Request) (string, error) {
	fromCookie, err := handler.cookies.Refresh(request)
	if err != nil {
		if errors.Is(err, tokencrypt.ErrDecryption) {
			return "", apperr.Unauthorized("Refresh cookie could not be read")
		}
		return "", apperr.Unauthorized("Missing refresh token")
	}
	if fromCookie != "" {
		return fromCookie, nil
	}

	if request.ContentLength == 0 {
		return "", apperr.Unauthorized("Missing refresh token")
	}

	var input refreshRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return "", err
	}
	if input.RefreshToken == "" {
		return "", validate.RequiredError(FieldRefreshToken, "This field is required")
	}
	return input.RefreshToken, nil
}
