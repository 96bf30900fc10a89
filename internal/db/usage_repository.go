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

const usageColumns = `id, user_id, feature_name, usage_count, period, last_reset`

type UsageRepository struct {
	db *sqlx.DB
}

func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Consume is a single conditional upsert: a first use inserts count 1, later
// uses increment only while the stored count is below limit. No returned row
// means the limit was already reached.
func (r *UsageRepository) Consume(ctx context.Context, userID uuid.UUID, feature, period string, limit int, now time.Time) (int, bool, error) {
	if limit <= 0 {
		return 0, false, nil
	}

	query := `
		INSERT INTO usage_records (id, user_id, feature_name, usage_count, period, last_reset)
		VALUES ($1, $2, $3, 1, $4, $5)
		ON CONFLICT (user_id, feature_name, period) DO UPDATE
			SET usage_count = usage_records.usage_count + 1
			WHERE usage_records.usage_count < $6
		RETURNING usage_count
	`

	var count int
	err := r.db.GetContext(ctx, &count, query, uuid.New(), userID, feature, period, now, limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return limit, false, nil
		}
		return 0, false, fmt.Errorf("consume usage: %w", err)
	}
	return count, true, nil
}

func (r *UsageRepository) ListForPeriod(ctx context.Context, userID uuid.UUID, period string) ([]*UsageRecord, error) {
	query := `SELECT ` + usageColumns + ` FROM usage_records
		WHERE user_id = $1 AND period = $2 ORDER BY feature_name`

	records := []*UsageRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID, period); err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	return records, nil
}

func (r *UsageRepository) History(ctx context.Context, userID uuid.UUID) ([]*UsageRecord, error) {
	query := `SELECT ` + usageColumns + ` FROM usage_records
		WHERE user_id = $1 ORDER BY period DESC, feature_name`

	records := []*UsageRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("usage history: %w", err)
	}
	return records, nil
}
