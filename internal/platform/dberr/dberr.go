// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr classifies low-level database errors into [apperr.AppError]
// values without leaking SQL details to clients.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/rewards/internal/platform/apperr"
)

/*
Wrap inspects a database error and converts it into an [apperr.AppError].

# Mapping
  - pgx.ErrNoRows: 404 naming resource
  - unique_violation: 409
  - foreign_key_violation, check_violation: 422
  - query_canceled: 503 (statement timeout or cancelled request)
  - anything else: 500 with the action kept in the cause chain
*/
func Wrap(err error, resource, action string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict(resource + " already exists")
		case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation:
			return apperr.Unprocessable(resource + " violates a data constraint")
		case pgerrcode.QueryCanceled:
			return apperr.ServiceUnavailable("Database is busy, try again")
		}
	}

	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}

