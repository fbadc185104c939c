// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/rewards/internal/auth/session"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/validate"
)

// MaxDisplayNameLength bounds the profile's display name.
const MaxDisplayNameLength = 64

// # Service Layer

// Service orchestrates profile reads and edits.
type Service struct {
	repository Repository
	logger     *slog.Logger
}

// NewService constructs a new [Service].
func NewService(repository Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repository, logger: logger}
}

/*
GetProfile retrieves an account.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - *Account: The hydrated account
  - error: apperr.NotFound or storage failures
*/
func (service *Service) GetProfile(context context.Context, userID int64) (*Account, error) {
	return service.repository.FindByID(context, userID)
}

/*
UpdateDisplayName validates and stores a new display name.

Parameters:
  - context: context.Context
  - userID: int64
  - displayName: string (trimmed, 1..64 characters)

Returns:
  - *Account: The account after the update
  - error: Validation, not found or storage failures
*/
func (service *Service) UpdateDisplayName(context context.Context, userID int64, displayName string) (*Account, error) {
	displayName = strings.TrimSpace(displayName)

	validator := &validate.Validator{}
	validator.Required("display_name", displayName).MaxLen("display_name", displayName, MaxDisplayNameLength)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := service.repository.UpdateDisplayName(context, userID, displayName); err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "account_display_name_updated", slog.Int64("user_id", userID))
	return service.repository.FindByID(context, userID)
}

// # Directory

/*
Directory adapts the account repository to [session.UserDirectory].

Missing and soft-deleted accounts report found=false. Any other failure is
returned so verification fails closed.
*/
type Directory struct {
	repository Repository
}

// NewDirectory constructs a [Directory].
func NewDirectory(repository Repository) *Directory {
	return &Directory{repository: repository}
}

var _ session.UserDirectory = (*Directory)(nil)

// Lookup implements [session.UserDirectory].
func (directory *Directory) Lookup(context context.Context, userID int64) (session.User, bool, error) {
	account, err := directory.repository.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return session.User{}, false, nil
		}
		return session.User{}, false, fmt.Errorf("account_directory_lookup_failed: %w", err)
	}

	return session.User{
		ID:     account.ID,
		Email:  account.Email,
		Role:   account.Role,
		Status: account.Status,
	}, true, nil
}
