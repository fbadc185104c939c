// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account owns the users.account table: the identities tokens are
issued to, and the live standing that every verification re-reads.

# Architecture

  - Entities: Account (identity, role, standing).
  - Directory: [Directory] answers the session service's "does this subject
    still exist, and is it banned" question.
  - Delivery: profile reads and display name edits behind the self-or-admin
    guard.
*/
package account

import (
	"context"
	"time"

	"github.com/taibuivan/rewards/internal/auth/authz"
)

// # Domain Entities

// Account is a registered user of any role.
type Account struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         authz.Role   `json:"role"`
	Status       authz.Status `json:"status"`
	DisplayName  string       `json:"display_name"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// # Repository Contracts

// Repository defines the persistence contract for accounts. Soft-deleted
// rows are invisible to every method.
type Repository interface {
	/*
		FindByID retrieves an account by id.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *Account: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id int64) (*Account, error)

	// FindByEmail expects an already normalized address.
	FindByEmail(context context.Context, email string) (*Account, error)

	// RecordLogin stamps lastloginat.
	RecordLogin(context context.Context, id int64, at time.Time) error

	// UpdateDisplayName changes the one user-editable profile field.
	UpdateDisplayName(context context.Context, id int64, displayName string) error
}
