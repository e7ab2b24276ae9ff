package repositories

import (
	"context"

	"cloudsync/models"

	"gorm.io/gorm"
)

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) GetLiveByID(_ context.Context, tx *gorm.DB, userID string) (models.User, error) {
	var user models.User
	err := useTx(r.db, tx).
		Where("id = ? AND delete_at IS NULL", userID).
		First(&user).Error
	return user, err
}

func (r *GormUserRepository) UpdateByID(_ context.Context, tx *gorm.DB, userID string, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}
