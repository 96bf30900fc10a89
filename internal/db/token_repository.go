package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func tokenTable(p Purpose) (string, error) {
	switch p {
	case PurposeEmailVerification:
		return "email_verification_tokens", nil
	case PurposePasswordReset:
		return "password_reset_tokens", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, p)
	}
}

func (r *TokenRepository) Create(ctx context.Context, purpose Purpose, t *ActionToken) error {
	table, err := tokenTable(purpose)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + table + ` (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.Used, t.CreatedAt); err != nil {
		return fmt.Errorf("create %s token: %w", purpose, err)
	}
	return nil
}

func (r *TokenRepository) Consume(ctx context.Context, purpose Purpose, hash string, now time.Time, effect Effect) (uuid.UUID, error) {
	table, err := tokenTable(purpose)
	if err != nil {
		return uuid.Nil, err
	}
	if purpose == PurposePasswordReset && effect.PasswordHash == "" {
		return uuid.Nil, errors.New("password reset requires a new password hash")
	}

	var userID uuid.UUID
	err = WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		claim := `UPDATE ` + table + ` SET used = TRUE
			WHERE token_hash = $1 AND used = FALSE AND expires_at > $2
			RETURNING user_id`
		if err := tx.GetContext(ctx, &userID, claim, hash, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTokenNotFound
			}
			return fmt.Errorf("claim %s token: %w", purpose, err)
		}

		var (
			res sql.Result
			err error
		)
		switch purpose {
		case PurposeEmailVerification:
			res, err = tx.ExecContext(ctx,
				`UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1 AND is_active`,
				userID, now)
		case PurposePasswordReset:
			res, err = tx.ExecContext(ctx,
				`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND is_active`,
				userID, effect.PasswordHash, now)
		}
		if err != nil {
			return fmt.Errorf("apply %s effect: %w", purpose, err)
		}
		if err := requireRow(res, ErrUserNotFound); err != nil {
			return err
		}

		// Outstanding tokens of the same purpose are superseded.
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET used = TRUE WHERE user_id = $1 AND used = FALSE`, userID); err != nil {
			return fmt.Errorf("retire %s tokens: %w", purpose, err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}
