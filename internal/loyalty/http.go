// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loyalty

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/platform/middleware"
	requestutil "github.com/taibuivan/rewards/internal/platform/request"
	"github.com/taibuivan/rewards/internal/platform/respond"
	"github.com/taibuivan/rewards/pkg/pagination"
)

// # HTTP Handler

// Handler serves the guarded loyalty reads.
type Handler struct {
	service *Service
	engine  middleware.GuardChecker
}

// NewHandler constructs a handler. engine authorizes every route.
func NewHandler(service *Service, engine middleware.GuardChecker) *Handler {
	return &Handler{service: service, engine: engine}
}

/*
RegisterRoutes mounts the loyalty endpoints.

Every route runs its ownership guard before the handler, so handlers trust
the path parameters they read.
*/
func (handler *Handler) RegisterRoutes(router chi.Router) {
	guard := func(g authz.Guard, param string) func(http.Handler) http.Handler {
		return middleware.RequireGuard(handler.engine, g, param)
	}

	router.With(guard(authz.GuardBusinessOwnership, "businessID")).
		Get("/businesses/{businessID}/programs", handler.listPrograms)

	router.With(guard(authz.GuardProgramAccess, "programID")).
		Get("/programs/{programID}", handler.getProgram)

	router.With(guard(authz.GuardProgramEnrollment, "programID")).
		Get("/programs/{programID}/enrollment", handler.getEnrollment)

	router.With(guard(authz.GuardBusinessCustomer, "customerID")).
		Get("/customers/{customerID}/enrollments", handler.listCustomerEnrollments)

	router.With(guard(authz.GuardCardAccess, "cardID")).
		Get("/cards/{cardID}", handler.getCard)
}

func (handler *Handler) listPrograms(writer http.ResponseWriter, request *http.Request) {
	businessID, err := requestutil.IDParam(request, "businessID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	programs, total, err := handler.service.ListPrograms(request.Context(), businessID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, programs, params.Meta(total))
}

func (handler *Handler) getProgram(writer http.ResponseWriter, request *http.Request) {
	programID, err := requestutil.IDParam(request, "programID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	program, err := handler.service.GetProgram(request.Context(), programID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, program)
}

func (handler *Handler) getEnrollment(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	programID, err := requestutil.IDParam(request, "programID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	enrollment, err := handler.service.GetEnrollment(request.Context(), principal, programID, request.URL.Query().Get("customer_id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, enrollment)
}

func (handler *Handler) listCustomerEnrollments(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	customerID, err := requestutil.IDParam(request, "customerID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	enrollments, total, err := handler.service.ListCustomerEnrollments(request.Context(), principal, customerID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, enrollments, params.Meta(total))
}

func (handler *Handler) getCard(writer http.ResponseWriter, request *http.Request) {
	cardID, err := requestutil.IDParam(request, "cardID")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	card, err := handler.service.GetCard(request.Context(), cardID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, card)
}
