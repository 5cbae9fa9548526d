package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/db"
)

// ProfileRepository reads profile and preference data owned by the profile
// collaborator. The core never writes through it.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// GetProfile returns the profile, or gorm.ErrRecordNotFound.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uint64) (*db.Profile, error) {
	var profile db.Profile
	if err := r.db.WithContext(ctx).First(&profile, userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetPreference returns the user's preference row, or nil if none is set.
func (r *ProfileRepository) GetPreference(ctx context.Context, userID uint64) (*db.Preference, error) {
	var pref db.Preference
	err := r.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// GetCandidates fetches the eligible candidate pool for a user:
// opposite gender, not suspended, not previously interacted with by the user
// and not already paired with the user in an open match.
//
// The pool is capped; when more candidates exist an arbitrary subset up to
// the cap is taken. Acceptable because the ranking is advisory, not
// exhaustive.
func (r *ProfileRepository) GetCandidates(ctx context.Context, user *db.Profile, cap int) ([]db.Profile, error) {
	opposite := "female"
	if user.Gender == "female" {
		opposite = "male"
	}

	var candidates []db.Profile
	err := r.db.WithContext(ctx).
		Table("profiles p").
		Where("p.gender = ? AND p.suspended = ? AND p.id <> ?", opposite, false, user.ID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM interactions i
				WHERE i.actor_id = ? AND i.target_id = p.id
			)`, user.ID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM matches m
				WHERE ((m.user1_id = ? AND m.user2_id = p.id)
				    OR (m.user1_id = p.id AND m.user2_id = ?))
				  AND m.status IN ?
			)`, user.ID, user.ID, []string{db.MatchPendingWali, db.MatchActive}).
		Limit(cap).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
