package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zawajapp/zawaj-core/internal/db"
)

// QuotaRepository persists per-feature, per-period usage counters.
type QuotaRepository struct {
	db *gorm.DB
}

// NewQuotaRepository creates a repository bound to the given DB connection.
func NewQuotaRepository(database *gorm.DB) *QuotaRepository {
	return &QuotaRepository{db: database}
}

// GetCount returns the usage for (user, feature, period), 0 when the counter
// has not been touched this period. Read-only; safe to call repeatedly.
func (r *QuotaRepository) GetCount(ctx context.Context, userID uint64, feature, periodKey string) (int, error) {
	var counter db.UsageCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND feature = ? AND period_key = ?", userID, feature, periodKey).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.UsageCount, nil
}

// Increment atomically bumps the counter and returns the new value.
//
// The increment runs server-side via ON CONFLICT arithmetic, never as a
// read-modify-write, so concurrent increments for the same key cannot lose
// updates.
func (r *QuotaRepository) Increment(ctx context.Context, userID uint64, feature, periodType, periodKey string) (int, error) {
	counter := db.UsageCounter{
		UserID:     userID,
		Feature:    feature,
		PeriodKey:  periodKey,
		PeriodType: periodType,
		UsageCount: 1,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "feature"}, {Name: "period_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"usage_count": gorm.Expr("usage_count + 1"),
			}),
		}).
		Create(&counter).Error
	if err != nil {
		return 0, err
	}
	return r.GetCount(ctx, userID, feature, periodKey)
}

// IncrementBelow bumps the counter only while it is below limit.
//
// A zero-usage row is ensured first, then a single conditional UPDATE guarded
// by `usage_count < limit` performs the bump. Concurrent callers serialize on
// that UPDATE, so the counter can never pass the limit: once it is reached,
// further calls report incremented=false with the current count.
func (r *QuotaRepository) IncrementBelow(
	ctx context.Context,
	userID uint64,
	feature, periodType, periodKey string,
	limit int,
) (int, bool, error) {
	seed := db.UsageCounter{
		UserID:     userID,
		Feature:    feature,
		PeriodKey:  periodKey,
		PeriodType: periodType,
		UsageCount: 0,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return 0, false, err
	}

	res := r.db.WithContext(ctx).
		Model(&db.UsageCounter{}).
		Where("user_id = ? AND feature = ? AND period_key = ? AND usage_count < ?",
			userID, feature, periodKey, limit).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return 0, false, res.Error
	}

	count, err := r.GetCount(ctx, userID, feature, periodKey)
	if err != nil {
		return 0, false, err
	}
	return count, res.RowsAffected == 1, nil
}
