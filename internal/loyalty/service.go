// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loyalty

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/platform/validate"
	"github.com/taibuivan/rewards/pkg/pagination"
)

// Service narrows guarded reads to the principal's own slice of the data.
//
// Guards decide whether a request may touch a resource at all. The service
// decides which rows inside that resource the principal sees.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a loyalty service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ListPrograms returns one page of a business's programs.
func (service *Service) ListPrograms(context context.Context, businessID int64, params pagination.Params) ([]Program, int, error) {
	programs, total, err := service.repo.ListProgramsByBusiness(context, businessID, pageOf(params))
	if err != nil {
		return nil, 0, err
	}
	if programs == nil {
		programs = []Program{}
	}
	return programs, total, nil
}

// GetProgram returns a single program.
func (service *Service) GetProgram(context context.Context, programID int64) (*Program, error) {
	return service.repo.FindProgram(context, programID)
}

/*
GetEnrollment returns the enrollment of a customer in a program.

A customer always reads their own enrollment. Admins name the customer
explicitly through customerID; other roles never reach this method because
the enrollment guard denies them.
*/
func (service *Service) GetEnrollment(context context.Context, principal authz.Principal, programID int64, customerID string) (*Enrollment, error) {
	target := principal.UserID
	if principal.IsAdmin() {
		id, err := validate.ParseID("customer_id", customerID)
		if err != nil {
			return nil, err
		}
		target = id
	}
	return service.repo.FindEnrollment(context, programID, target)
}

/*
ListCustomerEnrollments returns a customer's enrollments.

A business sees only enrollments in programs it owns, even though the
customer may be enrolled elsewhere. Admins see every enrollment.
*/
func (service *Service) ListCustomerEnrollments(context context.Context, principal authz.Principal, customerID int64, params pagination.Params) ([]Enrollment, int, error) {
	var businessID int64
	switch {
	case principal.IsAdmin():
		businessID = 0
	case principal.Role.IsBusinessAccount():
		businessID = principal.UserID
	default:
		return nil, 0, fmt.Errorf("loyalty_unexpected_role: %s", principal.Role)
	}

	enrollments, total, err := service.repo.ListEnrollmentsByCustomer(context, customerID, businessID, pageOf(params))
	if err != nil {
		return nil, 0, err
	}
	if enrollments == nil {
		enrollments = []Enrollment{}
	}
	return enrollments, total, nil
}

// GetCard returns a single card.
func (service *Service) GetCard(context context.Context, cardID int64) (*Card, error) {
	return service.repo.FindCard(context, cardID)
}

func pageOf(params pagination.Params) Page {
	return Page{Limit: params.Limit, Offset: params.Offset()}
}
