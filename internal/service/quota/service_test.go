package quota

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/cache"
	"github.com/zawajapp/zawaj-core/internal/config"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/notify"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))

	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	cfg.Ranking.TTL = 24 * time.Hour
	cfg.Ranking.PoolCap = 500
	cfg.Ranking.DefaultLimit = 20

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(cfg, database, cache.NewRedisCache(cfg), logger, notify.NewLogNotifier(logger))
	return NewService(appCtx)
}

func seedUser(t *testing.T, svc *Service, id uint64, tier string) {
	t.Helper()
	require.NoError(t, svc.appCtx.DB.Create(&db.Profile{
		ID:           id,
		Email:        "quota-user@test.local",
		PasswordHash: "x",
		Gender:       "male",
		DateOfBirth:  time.Date(1994, 6, 1, 0, 0, 0, 0, time.UTC),
		Tier:         tier,
	}).Error)
}

func TestCheckLimitUnknownFeature(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	_, err := svc.CheckLimit(ctx, 1, "teleport")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Status)
}

func TestCheckLimitUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CheckLimit(ctx, 9, "super_like")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Status)
}

func TestFreeTierLimitExhaustion(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	status, err := svc.CheckLimit(ctx, 1, "super_like")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.CurrentUsage)
	require.NotNil(t, status.Limit)
	assert.Equal(t, 1, *status.Limit)
	require.NotNil(t, status.Remaining)
	assert.Equal(t, 1, *status.Remaining)

	count, err := svc.Consume(ctx, 1, "super_like")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	status, err = svc.CheckLimit(ctx, 1, "super_like")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, *status.Remaining)
	// super_like has no a-la-carte price.
	assert.False(t, status.RequiresPayment)

	_, err = svc.Consume(ctx, 1, "super_like")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, "super_like", quotaErr.Feature)
	assert.Equal(t, 1, quotaErr.CurrentUsage)
	assert.Equal(t, 1, quotaErr.Limit)
	assert.Nil(t, quotaErr.PriceCents)
}

func TestExhaustedPaidFeatureOffersPurchase(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	_, err := svc.Consume(ctx, 1, "firasa_report")
	require.NoError(t, err)

	status, err := svc.CheckLimit(ctx, 1, "firasa_report")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.True(t, status.RequiresPayment)
	require.NotNil(t, status.PriceCents)
	assert.Equal(t, 499, *status.PriceCents)

	_, err = svc.Consume(ctx, 1, "firasa_report")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	require.NotNil(t, quotaErr.PriceCents)
	assert.Equal(t, 499, *quotaErr.PriceCents)
}

func TestConsumeConcurrentNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	// Rapid double-submits race past the pre-check; the guarded increment
	// must still admit only the single free use.
	results := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(ctx, 1, "super_like")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var quotaErr *apperr.QuotaError
		require.ErrorAs(t, err, &quotaErr)
	}
	assert.Equal(t, 1, successes)

	status, err := svc.CheckLimit(ctx, 1, "super_like")
	require.NoError(t, err)
	assert.Equal(t, 1, status.CurrentUsage)
}

func TestPremiumTierHigherLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierPremium)

	for i := 1; i <= 10; i++ {
		count, err := svc.Consume(ctx, 1, "super_like")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	_, err := svc.Consume(ctx, 1, "super_like")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 10, quotaErr.Limit)
}

func TestPremiumUnlimitedUndo(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierPremium)

	status, err := svc.CheckLimit(ctx, 1, "undo_swipe")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Nil(t, status.Limit)
	assert.Nil(t, status.Remaining)

	for i := 1; i <= 25; i++ {
		count, err := svc.Consume(ctx, 1, "undo_swipe")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestFreeTierUndoBlocked(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	status, err := svc.CheckLimit(ctx, 1, "undo_swipe")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.False(t, status.RequiresPayment)

	_, err = svc.Consume(ctx, 1, "undo_swipe")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 0, quotaErr.Limit)
}

func TestDailyPeriodRollover(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	day1 := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }

	_, err := svc.Consume(ctx, 1, "super_like")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, "super_like")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)

	// Two minutes later it is a fresh day and a fresh allowance.
	svc.now = func() time.Time { return day1.Add(2 * time.Minute) }

	count, err := svc.Consume(ctx, 1, "super_like")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMonthlyPeriodRollover(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seedUser(t, svc, 1, db.TierFree)

	svc.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }
	_, err := svc.Consume(ctx, 1, "firasa_report")
	require.NoError(t, err)
	_, err = svc.Consume(ctx, 1, "firasa_report")
	var quotaErr *apperr.QuotaError
	require.ErrorAs(t, err, &quotaErr)

	svc.now = func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) }
	count, err := svc.Consume(ctx, 1, "firasa_report")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The daily gate is keyed independently of the monthly one.
	_, err = svc.Consume(ctx, 1, "super_like")
	require.NoError(t, err)
}
