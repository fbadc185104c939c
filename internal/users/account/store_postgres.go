// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for accounts.

# Schema Table Mapping
  - users.account: Identity, credentials and standing.
*/
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/database/schema"
	"github.com/taibuivan/rewards/internal/platform/dberr"
)

// DBTX is the subset of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository creates a new Postgres implementation for accounts.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// selectAccount is shared by the FindBy* queries; the caller appends the
// WHERE predicate on $1.
var selectAccount = fmt.Sprintf(`
	SELECT %s
	FROM %s
	WHERE %s IS NULL AND `,
	strings.Join([]string{
		schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.Password,
		schema.UserAccount.Role, schema.UserAccount.Status, schema.UserAccount.DisplayName,
		schema.UserAccount.LastLoginAt, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	}, ", "),
	schema.UserAccount.Table,
	schema.UserAccount.DeletedAt,
)

func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.Status,
		&account.DisplayName,
		&account.LastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

// # Repository Methods

// FindByID implements [Repository].
func (repository *PostgresRepository) FindByID(context context.Context, id int64) (*Account, error) {
	query := selectAccount + schema.UserAccount.ID + ` = $1`

	account, err := scanAccount(repository.db.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "Account", "postgres_account_find_by_id_failed")
	}
	return account, nil
}

// FindByEmail implements [Repository].
func (repository *PostgresRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	query := selectAccount + schema.UserAccount.Email + ` = $1`

	account, err := scanAccount(repository.db.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "Account", "postgres_account_find_by_email_failed")
	}
	return account, nil
}

// RecordLogin implements [Repository].
func (repository *PostgresRepository) RecordLogin(context context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`,
		schema.UserAccount.Table, schema.UserAccount.LastLoginAt, schema.UserAccount.ID)

	if _, err := repository.db.Exec(context, query, at, id); err != nil {
		return fmt.Errorf("postgres_account_record_login_failed: %w", err)
	}
	return nil
}

/*
UpdateDisplayName changes the display name and refreshes updatedat.

Returns:
  - error: apperr.NotFound when no live row matched, or execution failures
*/
func (repository *PostgresRepository) UpdateDisplayName(context context.Context, id int64, displayName string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $1, %s = NOW()
		WHERE %s = $2 AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.DisplayName, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	tag, err := repository.db.Exec(context, query, displayName, id)
	if err != nil {
		return dberr.Wrap(err, "Account", "postgres_account_update_failed")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Account")
	}
	return nil
}
