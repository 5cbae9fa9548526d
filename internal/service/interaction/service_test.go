package interaction_test

import (
	"context"
	"fmt"
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
	"github.com/zawajapp/zawaj-core/internal/service/interaction"
)

// recordingNotifier captures emitted events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Event   notify.Event
	Payload map[string]any
}

func (n *recordingNotifier) Notify(_ context.Context, event notify.Event, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Event: event, Payload: payload})
}

func (n *recordingNotifier) byEvent(event notify.Event) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestAppContext(t *testing.T) (*app.AppContext, *recordingNotifier) {
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

	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return app.New(cfg, database, cache.NewRedisCache(cfg), logger, notifier), notifier
}

func createProfile(t *testing.T, appCtx *app.AppContext, id uint64, tier string) {
	t.Helper()
	require.NoError(t, appCtx.DB.Create(&db.Profile{
		ID:           id,
		Email:        fmt.Sprintf("user%d@test.local", id),
		PasswordHash: "x",
		Gender:       "female",
		DateOfBirth:  time.Date(1996, 3, 14, 0, 0, 0, 0, time.UTC),
		Tier:         tier,
	}).Error)
}

func linkGuardian(t *testing.T, appCtx *app.AppContext, wardID, guardianID uint64) {
	t.Helper()
	require.NoError(t, appCtx.DB.Create(&db.GuardianLink{
		WardID:     wardID,
		GuardianID: guardianID,
		Status:     db.GuardianActive,
	}).Error)
}

func TestRecordInteractionRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	_, err := svc.RecordInteraction(ctx, 1, 2, "wink")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Status)

	_, err = svc.RecordInteraction(ctx, 1, 1, db.ActionLike)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Status)
}

func TestRecordInteractionUnknownTarget(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	_, err := svc.RecordInteraction(ctx, 1, 42, db.ActionLike)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Status)

	// Nothing was recorded for the phantom target.
	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Interaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestRecordInteractionOneSidedLike(t *testing.T) {
	ctx := context.Background()
	appCtx, notifier := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 2, db.TierFree)

	result, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)
	assert.False(t, result.IsMutual)
	assert.Nil(t, result.MatchID)
	assert.Empty(t, notifier.byEvent(notify.EventMatchCreated))
}

func TestMutualLikeCreatesSinglePendingMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, notifier := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 2, db.TierFree)
	linkGuardian(t, appCtx, 1, 101)
	linkGuardian(t, appCtx, 2, 102)

	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)

	result, err := svc.RecordInteraction(ctx, 2, 1, db.ActionSuperLike)
	require.NoError(t, err)
	assert.True(t, result.IsMutual)
	require.NotNil(t, result.MatchID)
	require.NotNil(t, result.MatchStatus)
	assert.Equal(t, db.MatchPendingWali, *result.MatchStatus)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.Len(t, notifier.byEvent(notify.EventMatchCreated), 1)

	// One approval request per active guardian on each side.
	requests := notifier.byEvent(notify.EventApprovalRequested)
	require.Len(t, requests, 2)
	guardians := map[any]bool{}
	for _, r := range requests {
		guardians[r.Payload["guardian_id"]] = true
	}
	assert.True(t, guardians[uint64(101)])
	assert.True(t, guardians[uint64(102)])
}

func TestPassNeverCreatesMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, notifier := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 2, db.TierFree)

	_, err := svc.RecordInteraction(ctx, 2, 1, db.ActionLike)
	require.NoError(t, err)

	result, err := svc.RecordInteraction(ctx, 1, 2, db.ActionPass)
	require.NoError(t, err)
	assert.False(t, result.IsMutual)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, notifier.byEvent(notify.EventMatchCreated))
}

func TestRecordInteractionConflictsWhileMatchOpen(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 2, db.TierFree)

	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, 2, 1, db.ActionLike)
	require.NoError(t, err)

	_, err = svc.RecordInteraction(ctx, 1, 2, db.ActionPass)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, "already_matched", appErr.Code)
}

func TestMutualLikeAgainstTerminalPairStaysUnmatched(t *testing.T) {
	ctx := context.Background()
	appCtx, notifier := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 2, db.TierFree)

	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)
	result, err := svc.RecordInteraction(ctx, 2, 1, db.ActionLike)
	require.NoError(t, err)
	require.NotNil(t, result.MatchID)

	// A guardian rejects; the pair is terminal from here on.
	require.NoError(t, appCtx.DB.Model(&db.Match{}).
		Where("id = ?", *result.MatchID).
		Updates(map[string]interface{}{"status": db.MatchRejected, "is_active": false}).Error)
	created := len(notifier.byEvent(notify.EventMatchCreated))

	result, err = svc.RecordInteraction(ctx, 2, 1, db.ActionSuperLike)
	require.NoError(t, err)
	assert.True(t, result.IsMutual)
	assert.Nil(t, result.MatchID)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, notifier.byEvent(notify.EventMatchCreated), created)
}

func TestUndoPremiumOnly(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 2, db.TierFree)
	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)

	err = svc.Undo(ctx, 1, 2)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 403, appErr.Status)
}

func TestUndoRemovesInteraction(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierPremium)
	createProfile(t, appCtx, 2, db.TierFree)
	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)

	require.NoError(t, svc.Undo(ctx, 1, 2))

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Interaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	// Nothing left to undo.
	err = svc.Undo(ctx, 1, 2)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Status)
}

func TestUndoUnavailableOnceMatched(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierPremium)
	createProfile(t, appCtx, 2, db.TierFree)
	_, err := svc.RecordInteraction(ctx, 1, 2, db.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, 2, 1, db.ActionLike)
	require.NoError(t, err)

	err = svc.Undo(ctx, 1, 2)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 409, appErr.Status)

	// The interaction stays in place.
	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Interaction{}).
		Where("actor_id = ? AND target_id = ?", 1, 2).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCountLikersCacheFirst(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	// Interactions written straight to the DB bypass the cache adjustments.
	require.NoError(t, appCtx.DB.Create(&db.Interaction{ActorID: 1, TargetID: 99, Action: db.ActionLike}).Error)
	require.NoError(t, appCtx.DB.Create(&db.Interaction{ActorID: 2, TargetID: 99, Action: db.ActionLike}).Error)

	count, err := svc.CountLikers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The first read populated Redis; a new like in the DB alone is not
	// visible until the key expires.
	require.NoError(t, appCtx.DB.Create(&db.Interaction{ActorID: 3, TargetID: 99, Action: db.ActionLike}).Error)
	count, err = svc.CountLikers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, appCtx.RedisCache.Del(ctx, appCtx.RedisCache.KeyForLikerCount(99)))
	count, err = svc.CountLikers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestListNewLikersSkipsReciprocated(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestAppContext(t)
	svc := interaction.NewService(appCtx)

	createProfile(t, appCtx, 1, db.TierFree)
	createProfile(t, appCtx, 99, db.TierFree)

	_, err := svc.RecordInteraction(ctx, 1, 99, db.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, 2, 99, db.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordInteraction(ctx, 99, 1, db.ActionLike)
	require.NoError(t, err)

	all, _, err := svc.ListLikers(ctx, 99, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	fresh, _, err := svc.ListNewLikers(ctx, 99, nil, 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, uint64(2), fresh[0].UserID)
}
