// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package secret

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/rewards/internal/auth/tokencrypt"
	"github.com/taibuivan/rewards/internal/platform/database/schema"
)

// PostgresRepository stores secrets in auth.signingsecret. Material is sealed
// with a [tokencrypt.Cipher] before it reaches the database.
type PostgresRepository struct {
	db     *sql.DB
	cipher *tokencrypt.Cipher
}

// NewPostgresRepository constructs a repository. Both arguments are required.
func NewPostgresRepository(db *sql.DB, cipher *tokencrypt.Cipher) (*PostgresRepository, error) {
	if db == nil {
		return nil, errors.New("secret: repository requires a database handle")
	}
	if cipher == nil {
		return nil, errors.New("secret: repository requires an encryption cipher")
	}
	return &PostgresRepository{db: db, cipher: cipher}, nil
}

var (
	selectSecretsSQL = fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s DESC`,
		schema.AuthSigningSecret.Version, schema.AuthSigningSecret.Material, schema.AuthSigningSecret.CreatedAt,
		schema.AuthSigningSecret.RetiredAt, schema.AuthSigningSecret.StrengthScore,
		schema.AuthSigningSecret.Table,
		schema.AuthSigningSecret.Version,
	)

	retireSecretsSQL = fmt.Sprintf(`
		UPDATE %s
		SET %s = $1
		WHERE %s IS NULL`,
		schema.AuthSigningSecret.Table,
		schema.AuthSigningSecret.RetiredAt,
		schema.AuthSigningSecret.RetiredAt,
	)

	insertSecretSQL = fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s)
		VALUES ($1, $2, $3, $4)`,
		schema.AuthSigningSecret.Table,
		schema.AuthSigningSecret.Version, schema.AuthSigningSecret.Material,
		schema.AuthSigningSecret.CreatedAt, schema.AuthSigningSecret.StrengthScore,
	)
)

// Load implements [Repository].
func (repository *PostgresRepository) Load(ctx context.Context) ([]SigningSecret, error) {
	rows, err := repository.db.QueryContext(ctx, selectSecretsSQL)
	if err != nil {
		return nil, fmt.Errorf("secret: query signing secrets: %w", err)
	}
	defer rows.Close()

	var secrets []SigningSecret
	for rows.Next() {
		var (
			stored    SigningSecret
			envelope  string
			retiredAt sql.NullTime
		)
		if err := rows.Scan(&stored.Version, &envelope, &stored.CreatedAt, &retiredAt, &stored.StrengthScore); err != nil {
			return nil, fmt.Errorf("secret: scan signing secret: %w", err)
		}

		material, err := repository.cipher.Open(envelope)
		if err != nil {
			return nil, fmt.Errorf("secret: open signing secret v%d: %w", stored.Version, err)
		}
		stored.Material = material

		if retiredAt.Valid {
			at := retiredAt.Time
			stored.RetiredAt = &at
		}
		secrets = append(secrets, stored)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("secret: iterate signing secrets: %w", err)
	}
	return secrets, nil
}

// Save implements [Repository]. The retire and insert run in one transaction.
func (repository *PostgresRepository) Save(ctx context.Context, next SigningSecret, retiredAt time.Time) error {
	envelope, err := repository.cipher.Seal(next.Material)
	if err != nil {
		return fmt.Errorf("secret: seal signing secret: %w", err)
	}

	tx, err := repository.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("secret: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, retireSecretsSQL, retiredAt); err != nil {
		return fmt.Errorf("secret: retire current secret: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertSecretSQL, next.Version, envelope, next.CreatedAt, next.StrengthScore); err != nil {
		return fmt.Errorf("secret: insert signing secret v%d: %w", next.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("secret: commit: %w", err)
	}
	return nil
}
