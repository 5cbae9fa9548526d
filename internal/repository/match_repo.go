package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/db"
)

// ErrInvalidTransition is returned when a requested match transition is not
// allowed from the row's current status. Services translate it into a
// caller-facing conflict.
var ErrInvalidTransition = errors.New("invalid match status transition")

// MatchRepository provides data access and state transitions for matches.
//
// Every transition is a single conditional UPDATE guarded by the current
// status, so concurrent callers cannot double-apply one: exactly one
// statement wins, the rest observe zero affected rows and re-read.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// OrderPair returns the two user IDs in canonical (user1 < user2) order.
func OrderPair(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}

// CreateForPair creates the pending_wali match for a mutual pair, or returns
// the existing row if one is already present for the ordered pair.
//
// The unique index on (user1_id, user2_id) resolves the mutual-like race:
// when both sides like each other near-simultaneously, one insert wins and
// the loser re-reads the winner's row. The second return value reports
// whether this call created the row.
func (r *MatchRepository) CreateForPair(ctx context.Context, a, b uint64) (*db.Match, bool, error) {
	u1, u2 := OrderPair(a, b)

	if existing, err := r.GetByUsers(ctx, u1, u2); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	match := &db.Match{
		ID:       uuid.NewString(),
		User1ID:  u1,
		User2ID:  u2,
		Status:   db.MatchPendingWali,
		IsActive: true,
	}
	if err := r.db.WithContext(ctx).Create(match).Error; err != nil {
		// Lost the insert race against the other side's like.
		if existing, readErr := r.GetByUsers(ctx, u1, u2); readErr == nil && existing != nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return match, true, nil
}

// GetByID returns the match, or gorm.ErrRecordNotFound.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).First(&match, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

// GetByUsers returns the match for the ordered pair, or nil if none exists.
func (r *MatchRepository) GetByUsers(ctx context.Context, user1ID, user2ID uint64) (*db.Match, error) {
	u1, u2 := OrderPair(user1ID, user2ID)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ListForUser returns the user's matches, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, err
}

// ListPendingOlderThan returns pending matches created before the cutoff.
// Feeds the guardian approval reminder sweep.
func (r *MatchRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", db.MatchPendingWali, cutoff).
		Order("created_at ASC").
		Find(&matches).Error
	return matches, err
}

// HasOpenBetween reports whether a pending or active match exists for the pair.
func (r *MatchRepository) HasOpenBetween(ctx context.Context, a, b uint64) (bool, error) {
	u1, u2 := OrderPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ? AND status IN ?", u1, u2,
			[]string{db.MatchPendingWali, db.MatchActive}).
		Count(&count).Error
	return count > 0, err
}

// RecordApproval sets the approval timestamp for the given ward side (1 or 2)
// and flips the match to active when both sides are approved.
//
// Idempotent: approving an already-approved side, or an already-active match,
// is a no-op. The "both approved" check runs as its own conditional UPDATE
// after the timestamp write, so two guardians approving in the same instant
// cannot both miss the flip, and exactly one caller observes activated=true.
func (r *MatchRepository) RecordApproval(ctx context.Context, matchID string, side int) (*db.Match, bool, error) {
	match, err := r.GetByID(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	if match.Status == db.MatchActive {
		return match, false, nil
	}
	if match.Status != db.MatchPendingWali {
		return nil, false, ErrInvalidTransition
	}

	column := "wali_approved_user1_at"
	if side == 2 {
		column = "wali_approved_user2_at"
	}
	now := time.Now().UTC()

	err = r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status = ? AND "+column+" IS NULL", matchID, db.MatchPendingWali).
		Update(column, now).Error
	if err != nil {
		return nil, false, err
	}

	flip := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status = ? AND wali_approved_user1_at IS NOT NULL AND wali_approved_user2_at IS NOT NULL",
			matchID, db.MatchPendingWali).
		Update("status", db.MatchActive)
	if flip.Error != nil {
		return nil, false, flip.Error
	}
	activated := flip.RowsAffected == 1

	match, err = r.GetByID(ctx, matchID)
	if err != nil {
		return nil, false, err
	}
	return match, activated, nil
}

// Reject marks a pending match rejected. Terminal and irrecoverable.
func (r *MatchRepository) Reject(ctx context.Context, matchID string, byID uint64) (*db.Match, error) {
	return r.transition(ctx, matchID,
		[]string{db.MatchPendingWali},
		map[string]interface{}{
			"status":      db.MatchRejected,
			"is_active":   false,
			"rejected_by": byID,
		})
}

// Unmatch cancels an active match on behalf of one of its participants.
func (r *MatchRepository) Unmatch(ctx context.Context, matchID string, byID uint64) (*db.Match, error) {
	return r.transition(ctx, matchID,
		[]string{db.MatchActive},
		map[string]interface{}{
			"status":       db.MatchCancelled,
			"is_active":    false,
			"unmatched_by": byID,
		})
}

// Block moves a pending or active match to the terminal blocked state.
func (r *MatchRepository) Block(ctx context.Context, matchID string, byID uint64) (*db.Match, error) {
	return r.transition(ctx, matchID,
		[]string{db.MatchPendingWali, db.MatchActive},
		map[string]interface{}{
			"status":       db.MatchBlocked,
			"is_active":    false,
			"unmatched_by": byID,
		})
}

func (r *MatchRepository) transition(
	ctx context.Context,
	matchID string,
	fromStatuses []string,
	updates map[string]interface{},
) (*db.Match, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ? AND status IN ?", matchID, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Either the match does not exist or its status disallows the move.
		if _, err := r.GetByID(ctx, matchID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return r.GetByID(ctx, matchID)
}
