// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the auth and loyalty schema migrations with
// golang-migrate before the server accepts traffic.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Result summarizes one migration run.
type Result struct {
	FromVersion uint
	ToVersion   uint
	Applied     bool
}

/*
RunUp applies all pending UP migrations.

A dirty database is never touched: the previous run failed halfway and an
operator has to decide how to repair it.

Parameters:
  - dsn: string (postgres:// or pgx5:// URL)
  - migrationsPath: string (directory holding NNNNNN_name.up.sql files)
  - verbose: bool (forward golang-migrate's progress lines to the logger)
  - logger: *slog.Logger

Returns:
  - Result: versions before and after the run
  - error: initialization, dirty state or apply failures
*/
func RunUp(dsn, migrationsPath string, verbose bool, logger *slog.Logger) (Result, error) {
	migrator, err := migrate.New("file://"+migrationsPath, pgx5DSN(dsn))
	if err != nil {
		return Result{}, fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: logger, verbose: verbose}

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Result{}, fmt.Errorf("migration: failed to get current version: %w", err)
	}
	if isDirty {
		return Result{FromVersion: currentVersion}, fmt.Errorf("migration: database is dirty at version %d", currentVersion)
	}

	result := Result{FromVersion: currentVersion, ToVersion: currentVersion}
	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_already_up_to_date", slog.Uint64("version", uint64(currentVersion)))
			return result, nil
		}
		return result, fmt.Errorf("migration: up failed: %w", err)
	}

	result.ToVersion, _, _ = migrator.Version()
	result.Applied = true

	logger.Info("migration_successful",
		slog.Uint64("from_version", uint64(result.FromVersion)),
		slog.Uint64("to_version", uint64(result.ToVersion)),
	)
	return result, nil
}

// pgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme
// the golang-migrate driver registers.
func pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug("migration_progress", slog.String("line", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
