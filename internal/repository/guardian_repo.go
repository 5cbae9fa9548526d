package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/db"
)

// GuardianRepository reads guardian (wali) links owned by an external
// collaborator. Only links with status=active carry approval authority.
type GuardianRepository struct {
	db *gorm.DB
}

// NewGuardianRepository creates a repository bound to the given DB connection.
func NewGuardianRepository(database *gorm.DB) *GuardianRepository {
	return &GuardianRepository{db: database}
}

// ActiveGuardians returns the active links for a ward.
func (r *GuardianRepository) ActiveGuardians(ctx context.Context, wardID uint64) ([]db.GuardianLink, error) {
	var links []db.GuardianLink
	err := r.db.WithContext(ctx).
		Where("ward_id = ? AND status = ?", wardID, db.GuardianActive).
		Find(&links).Error
	return links, err
}

// IsActiveGuardian reports whether guardianID holds an active link over wardID.
func (r *GuardianRepository) IsActiveGuardian(ctx context.Context, wardID, guardianID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.GuardianLink{}).
		Where("ward_id = ? AND guardian_id = ? AND status = ?", wardID, guardianID, db.GuardianActive).
		Count(&count).Error
	return count > 0, err
}
