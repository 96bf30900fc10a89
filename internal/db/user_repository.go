package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireready/backend/internal/entitlement"
)

const userColumns = `id, email, password_hash, full_name, tier, is_verified, is_active, is_admin,
		billing_customer_id, created_at, updated_at, last_login_at`

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, full_name, tier, is_verified, is_active, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Tier,
		user.IsVerified, user.IsActive, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &User{}
	if err := r.db.GetContext(ctx, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user := &User{}
	if err := r.db.GetContext(ctx, user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_login_at = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return requireRow(res, ErrUserNotFound)
}

func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, upd UserUpdate, at time.Time) (*User, error) {
	query := `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			tier = COALESCE($3, tier),
			is_verified = COALESCE($4, is_verified),
			is_active = COALESCE($5, is_active),
			updated_at = $6
		WHERE id = $1
		RETURNING ` + userColumns

	var tier *string
	if upd.Tier != nil {
		s := string(*upd.Tier)
		tier = &s
	}

	user := &User{}
	err := r.db.GetContext(ctx, user, query, id, upd.FullName, tier, upd.IsVerified, upd.IsActive, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetTier(ctx context.Context, id uuid.UUID, tier entitlement.Tier, at time.Time) (entitlement.Tier, error) {
	query := `
		UPDATE users u SET tier = $2, updated_at = $3
		FROM (SELECT id, tier FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.tier
	`

	var previous string
	if err := r.db.GetContext(ctx, &previous, query, id, string(tier), at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("set tier: %w", err)
	}
	return entitlement.Tier(previous), nil
}

func (r *UserRepository) List(ctx context.Context, f UserFilter) ([]*User, int, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !f.IncludeInactive {
		conds = append(conds, "is_active")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		conds = append(conds, "(full_name ILIKE "+p+" OR email ILIKE "+p+")")
	}
	if f.Tier != nil {
		conds = append(conds, "tier = "+arg(string(*f.Tier)))
	}
	if f.Verified != nil {
		conds = append(conds, "is_verified = "+arg(*f.Verified))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset())

	users := []*User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

func (r *UserRepository) Stats(ctx context.Context, since time.Time) (*UserStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE tier = 'free') AS free,
			COUNT(*) FILTER (WHERE tier = 'premium') AS premium,
			COUNT(*) FILTER (WHERE tier = 'professional') AS professional,
			COUNT(*) FILTER (WHERE is_verified) AS verified,
			COUNT(*) FILTER (WHERE last_login_at >= $1) AS recently_active,
			COUNT(*) FILTER (WHERE created_at >= $1) AS new_signups
		FROM users
		WHERE is_active
	`

	stats := &UserStats{}
	if err := r.db.GetContext(ctx, stats, query, since); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
