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

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, expires_at, created_at, last_used_at, is_active`

type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *Session) error {
	return insertSession(ctx, r.db, s)
}

func insertSession(ctx context.Context, q DBTX, s *Session) error {
	query := `
		INSERT INTO user_sessions (id, user_id, refresh_token_hash, user_agent, expires_at, created_at, last_used_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := q.ExecContext(ctx, query,
		s.ID, s.UserID, s.RefreshTokenHash, s.UserAgent, s.ExpiresAt, s.CreatedAt, s.LastUsedAt, s.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetActiveByHash(ctx context.Context, hash string, now time.Time) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE refresh_token_hash = $1 AND is_active AND expires_at > $2`

	s := &Session{}
	if err := r.db.GetContext(ctx, s, query, hash, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Revoke(ctx context.Context, userID, id uuid.UUID) error {
	query := `UPDATE user_sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return requireRow(res, ErrSessionNotFound)
}

func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) Rotate(ctx context.Context, oldID uuid.UUID, next *Session) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE user_sessions SET is_active = FALSE WHERE id = $1 AND is_active`, oldID)
		if err != nil {
			return fmt.Errorf("deactivate session: %w", err)
		}
		if err := requireRow(res, ErrSessionNotFound); err != nil {
			return err
		}
		return insertSession(ctx, tx, next)
	})
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	sessions := []*Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
