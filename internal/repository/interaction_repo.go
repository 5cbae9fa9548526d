package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/utils/pagination"
)

// InteractionRepository provides data access for directional like/pass
// actions between users.
type InteractionRepository struct {
	db *gorm.DB
}

// NewInteractionRepository creates a repository bound to the given DB connection.
func NewInteractionRepository(database *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// Upsert inserts or supersedes the interaction for (actor, target).
//
// The composite PK guarantees a single row per directed pair; a repeated
// action overwrites the previous one rather than duplicating it.
func (r *InteractionRepository) Upsert(ctx context.Context, actorID, targetID uint64, action string) error {
	interaction := db.Interaction{
		ActorID:  actorID,
		TargetID: targetID,
		Action:   action,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"action", "updated_at"}),
		}).
		Create(&interaction).Error
}

// Get returns the interaction for (actor, target), or nil if none exists.
func (r *InteractionRepository) Get(ctx context.Context, actorID, targetID uint64) (*db.Interaction, error) {
	var interaction db.Interaction
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		First(&interaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &interaction, nil
}

// HasPositive reports whether the actor holds a like or super_like against
// the target. This is the reciprocal-interest lookup of mutual detection.
func (r *InteractionRepository) HasPositive(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Interaction{}).
		Where("actor_id = ? AND target_id = ? AND action IN ?", actorID, targetID,
			[]string{db.ActionLike, db.ActionSuperLike}).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the interaction row for (actor, target). Used by undo.
func (r *InteractionRepository) Delete(ctx context.Context, actorID, targetID uint64) error {
	return r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		Delete(&db.Interaction{}).Error
}

// GetLikers returns users holding a like/super_like against the target,
// excluding anyone the target explicitly passed. Ordered by updated_at DESC,
// actor_id DESC with cursor-based pagination.
func (r *InteractionRepository) GetLikers(
	ctx context.Context,
	targetID uint64,
	paginationToken *string,
	limit int,
) ([]db.Interaction, *string, error) {
	return r.likers(ctx, targetID, paginationToken, limit, false)
}

// GetNewLikers is GetLikers restricted to likes the target has not yet
// reciprocated.
func (r *InteractionRepository) GetNewLikers(
	ctx context.Context,
	targetID uint64,
	paginationToken *string,
	limit int,
) ([]db.Interaction, *string, error) {
	return r.likers(ctx, targetID, paginationToken, limit, true)
}

func (r *InteractionRepository) likers(
	ctx context.Context,
	targetID uint64,
	paginationToken *string,
	limit int,
	excludeMutual bool,
) ([]db.Interaction, *string, error) {
	var interactions []db.Interaction

	cursor, err := pagination.Decode(derefString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("interactions i").
		Where("i.target_id = ? AND i.action IN ?", targetID,
			[]string{db.ActionLike, db.ActionSuperLike}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM interactions i2
				WHERE i2.actor_id = ?
				  AND i2.target_id = i.actor_id
				  AND i2.action = ?
			)`, targetID, db.ActionPass).
		Order("i.updated_at DESC, i.actor_id DESC").
		Limit(limit + 1)

	if excludeMutual {
		subQuery := r.db.
			Table("interactions").
			Select("1").
			Where("actor_id = i.target_id AND target_id = i.actor_id AND action IN ?",
				[]string{db.ActionLike, db.ActionSuperLike})
		query = query.Where("NOT EXISTS (?)", subQuery)
	}

	if cursor.LastID > 0 && cursor.LastUnix > 0 {
		ts := time.UnixMilli(cursor.LastUnix)
		query = query.Where(
			"(i.updated_at < ? OR (i.updated_at = ? AND i.actor_id < ?))",
			ts, ts, cursor.LastID,
		)
	}

	if err := query.Find(&interactions).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(interactions) > limit {
		last := interactions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			LastID:   last.ActorID,
			LastUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		interactions = interactions[:limit]
	}

	return interactions, nextToken, nil
}

// CountLikers returns how many users hold a like/super_like against the
// target, excluding anyone the target passed. DB fallback behind the Redis
// counter cache.
func (r *InteractionRepository) CountLikers(ctx context.Context, targetID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("interactions i").
		Where("i.target_id = ? AND i.action IN ?", targetID,
			[]string{db.ActionLike, db.ActionSuperLike}).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM interactions i2
				WHERE i2.actor_id = ?
				  AND i2.target_id = i.actor_id
				  AND i2.action = ?
			)`, targetID, db.ActionPass).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
