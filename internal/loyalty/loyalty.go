// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package loyalty exposes the tenant relationships the authorization engine
evaluates, and the read endpoints those rules protect.

# Architecture

  - Entities: Program (owned by a business), Enrollment (customer in a
    program), Card (issued to a customer by a business).
  - Relationships: [PostgresRepository] implements [authz.RelationshipStore].
  - Delivery: every route is mounted behind an ownership guard; handlers never
    re-check access themselves.
*/
package loyalty

import (
	"context"
	"time"
)

// # Domain Entities

// Status values shared by programs, enrollments and cards.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusClosed   = "closed"
	StatusRevoked  = "revoked"
	StatusInactive = "inactive"
)

// Program is a points scheme run by one business.
type Program struct {
	ID             int64     `json:"id"`
	BusinessID     int64     `json:"business_id"`
	Name           string    `json:"name"`
	PointsPerVisit int       `json:"points_per_visit"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Enrollment links a customer to a program and carries their points.
type Enrollment struct {
	ID         int64     `json:"id"`
	ProgramID  int64     `json:"program_id"`
	CustomerID int64     `json:"customer_id"`
	Points     int64     `json:"points"`
	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Card is a stamp card issued to a customer.
type Card struct {
	ID         int64     `json:"id"`
	ProgramID  int64     `json:"program_id"`
	CustomerID int64     `json:"customer_id"`
	BusinessID int64     `json:"business_id"`
	Balance    int64     `json:"balance"`
	Status     string    `json:"status"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// # Repository Contracts

// Repository is the read contract behind the loyalty endpoints.
type Repository interface {
	/*
		ListProgramsByBusiness returns the programs owned by a business.

		Returns:
		  - []Program: One page, newest first
		  - int: Total count across all pages
		  - error: storage failures
	*/
	ListProgramsByBusiness(context context.Context, businessID int64, page Page) ([]Program, int, error)

	// FindProgram returns apperr.NotFound for an unknown id.
	FindProgram(context context.Context, programID int64) (*Program, error)

	// FindEnrollment returns apperr.NotFound when the customer is not enrolled.
	FindEnrollment(context context.Context, programID, customerID int64) (*Enrollment, error)

	/*
		ListEnrollmentsByCustomer returns a customer's enrollments.

		A non-zero businessID restricts the result to that business's programs.
	*/
	ListEnrollmentsByCustomer(context context.Context, customerID, businessID int64, page Page) ([]Enrollment, int, error)

	// FindCard returns apperr.NotFound for an unknown id.
	FindCard(context context.Context, cardID int64) (*Card, error)
}
