package repositories

import (
	"context"

	"cloudsync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) GetLiveByIDAndUser(_ context.Context, tx *gorm.DB, fileID string, userID string, preloadContents bool) (models.File, error) {
	db := useTx(r.db, tx)
	if preloadContents {
		db = db.Preload("Contents")
	}
	var file models.File
	err := db.Where("id = ? AND user_id = ? AND delete_at IS NULL", fileID, userID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) Create(_ context.Context, tx *gorm.DB, file *models.File) error {
	return useTx(r.db, tx).Create(file).Error
}

func (r *GormFileRepository) CreateBatchSkipDuplicates(_ context.Context, tx *gorm.DB, files []models.File) error {
	if len(files) == 0 {
		return nil
	}
	return useTx(r.db, tx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(files, 200).Error
}

func (r *GormFileRepository) UpdateByIDAndUser(_ context.Context, tx *gorm.DB, fileID string, userID string, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND user_id = ?", fileID, userID).
		Updates(updates).Error
}

func (r *GormFileRepository) UpdateByIDs(_ context.Context, tx *gorm.DB, fileIDs []string, updates map[string]interface{}) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Model(&models.File{}).
		Where("id IN ?", fileIDs).
		Updates(updates).Error
}
