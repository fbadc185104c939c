// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package loyalty (Postgres) implements relationship lookups and reads.

# Schema Table Mapping
  - loyalty.program: Programs and their owning business.
  - loyalty.enrollment: Customer membership in a program.
  - loyalty.card: Cards, denormalized with both owners.
*/
package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/database/schema"
)

// DBTX is the subset of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// PostgresRepository implements [Repository] and [authz.RelationshipStore].
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a repository over a pool or transaction.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ authz.RelationshipStore = (*PostgresRepository)(nil)

// # RelationshipStore Methods

/*
HasActiveEnrollment reports whether the customer holds an active enrollment in
the program.

Parameters:
  - context: context.Context (carries the engine's lookup deadline)
  - customerID: int64
  - programID: int64

Returns:
  - bool: true only for an active enrollment
  - error: execution failures, including deadline expiry
*/
func (repository *PostgresRepository) HasActiveEnrollment(context context.Context, customerID, programID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE %s = $1 AND %s = $2 AND %s = $3
		)`,
		schema.LoyaltyEnrollment.Table,
		schema.LoyaltyEnrollment.CustomerID, schema.LoyaltyEnrollment.ProgramID, schema.LoyaltyEnrollment.Status,
	)

	var exists bool
	if err := repository.db.QueryRow(context, query, customerID, programID, StatusActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_loyalty_enrollment_lookup_failed: %w", err)
	}
	return exists, nil
}

// BusinessHasCustomer reports whether the customer is actively enrolled in any
// program the business owns.
func (repository *PostgresRepository) BusinessHasCustomer(context context.Context, businessID, customerID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1
			FROM %s e
			JOIN %s p ON p.%s = e.%s
			WHERE p.%s = $1 AND e.%s = $2 AND e.%s = $3
		)`,
		schema.LoyaltyEnrollment.Table, schema.LoyaltyProgram.Table,
		schema.LoyaltyProgram.ID, schema.LoyaltyEnrollment.ProgramID,
		schema.LoyaltyProgram.BusinessID, schema.LoyaltyEnrollment.CustomerID, schema.LoyaltyEnrollment.Status,
	)

	var exists bool
	if err := repository.db.QueryRow(context, query, businessID, customerID, StatusActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_loyalty_relationship_lookup_failed: %w", err)
	}
	return exists, nil
}

// ProgramOwner returns the business that owns the program.
func (repository *PostgresRepository) ProgramOwner(context context.Context, programID int64) (int64, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		schema.LoyaltyProgram.BusinessID, schema.LoyaltyProgram.Table, schema.LoyaltyProgram.ID)

	var businessID int64
	err := repository.db.QueryRow(context, query, programID).Scan(&businessID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres_loyalty_program_owner_failed: %w", err)
	}
	return businessID, true, nil
}

// CardOwnership returns the customer and business a card belongs to.
func (repository *PostgresRepository) CardOwnership(context context.Context, cardID int64) (authz.CardOwnership, bool, error) {
	query := fmt.Sprintf(`SELECT %s, %s FROM %s WHERE %s = $1`,
		schema.LoyaltyCard.CustomerID, schema.LoyaltyCard.BusinessID,
		schema.LoyaltyCard.Table, schema.LoyaltyCard.ID)

	var ownership authz.CardOwnership
	err := repository.db.QueryRow(context, query, cardID).Scan(&ownership.CustomerID, &ownership.BusinessID)
	if errors.Is(err, pgx.ErrNoRows) {
		return authz.CardOwnership{}, false, nil
	}
	if err != nil {
		return authz.CardOwnership{}, false, fmt.Errorf("postgres_loyalty_card_owner_failed: %w", err)
	}
	return ownership, true, nil
}

// # Repository Methods

// ListProgramsByBusiness implements [Repository].
func (repository *PostgresRepository) ListProgramsByBusiness(context context.Context, businessID int64, page Page) ([]Program, int, error) {
	program := schema.LoyaltyProgram

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, program.Table, program.BusinessID)
	if err := repository.db.QueryRow(context, countQuery, businessID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_count_programs_failed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2 OFFSET $3`,
		program.ID, program.BusinessID, program.Name, program.PointsPerVisit, program.Status, program.CreatedAt,
		program.Table,
		program.BusinessID,
		program.CreatedAt,
	)

	rows, err := repository.db.Query(context, query, businessID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_list_programs_failed: %w", err)
	}

	programs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Program, error) {
		var p Program
		err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.PointsPerVisit, &p.Status, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_scan_programs_failed: %w", err)
	}

	return programs, total, nil
}

// FindProgram implements [Repository].
func (repository *PostgresRepository) FindProgram(context context.Context, programID int64) (*Program, error) {
	program := schema.LoyaltyProgram
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		program.ID, program.BusinessID, program.Name, program.PointsPerVisit, program.Status, program.CreatedAt,
		program.Table,
		program.ID,
	)

	p := &Program{}
	err := repository.db.QueryRow(context, query, programID).Scan(
		&p.ID, &p.BusinessID, &p.Name, &p.PointsPerVisit, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Program")
		}
		return nil, fmt.Errorf("postgres_loyalty_find_program_failed: %w", err)
	}
	return p, nil
}

// FindEnrollment implements [Repository].
func (repository *PostgresRepository) FindEnrollment(context context.Context, programID, customerID int64) (*Enrollment, error) {
	enrollment := schema.LoyaltyEnrollment
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2`,
		enrollment.ID, enrollment.ProgramID, enrollment.CustomerID, enrollment.Points, enrollment.Status, enrollment.EnrolledAt,
		enrollment.Table,
		enrollment.ProgramID, enrollment.CustomerID,
	)

	e := &Enrollment{}
	err := repository.db.QueryRow(context, query, programID, customerID).Scan(
		&e.ID, &e.ProgramID, &e.CustomerID, &e.Points, &e.Status, &e.EnrolledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Enrollment")
		}
		return nil, fmt.Errorf("postgres_loyalty_find_enrollment_failed: %w", err)
	}
	return e, nil
}

// ListEnrollmentsByCustomer implements [Repository].
func (repository *PostgresRepository) ListEnrollmentsByCustomer(context context.Context, customerID, businessID int64, page Page) ([]Enrollment, int, error) {
	enrollment := schema.LoyaltyEnrollment
	program := schema.LoyaltyProgram

	// $2 = 0 disables the business filter
	filter := fmt.Sprintf(`
		FROM %s e
		JOIN %s p ON p.%s = e.%s
		WHERE e.%s = $1 AND ($2::bigint = 0 OR p.%s = $2)`,
		enrollment.Table, program.Table, program.ID, enrollment.ProgramID,
		enrollment.CustomerID, program.BusinessID,
	)

	var total int
	if err := repository.db.QueryRow(context, `SELECT COUNT(*) `+filter, customerID, businessID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_count_enrollments_failed: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT e.%s, e.%s, e.%s, e.%s, e.%s, e.%s
		%s
		ORDER BY e.%s DESC
		LIMIT $3 OFFSET $4`,
		enrollment.ID, enrollment.ProgramID, enrollment.CustomerID, enrollment.Points, enrollment.Status, enrollment.EnrolledAt,
		filter,
		enrollment.EnrolledAt,
	)

	rows, err := repository.db.Query(context, query, customerID, businessID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_list_enrollments_failed: %w", err)
	}

	enrollments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Enrollment, error) {
		var e Enrollment
		err := row.Scan(&e.ID, &e.ProgramID, &e.CustomerID, &e.Points, &e.Status, &e.EnrolledAt)
		return e, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_loyalty_scan_enrollments_failed: %w", err)
	}

	return enrollments, total, nil
}

// FindCard implements [Repository].
func (repository *PostgresRepository) FindCard(context context.Context, cardID int64) (*Card, error) {
	card := schema.LoyaltyCard
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		card.ID, card.ProgramID, card.CustomerID, card.BusinessID, card.Balance, card.Status, card.IssuedAt,
		card.Table,
		card.ID,
	)

	c := &Card{}
	err := repository.db.QueryRow(context, query, cardID).Scan(
		&c.ID, &c.ProgramID, &c.CustomerID, &c.BusinessID, &c.Balance, &c.Status, &c.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Card")
		}
		return nil, fmt.Errorf("postgres_loyalty_find_card_failed: %w", err)
	}
	return c, nil
}
