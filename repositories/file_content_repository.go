package repositories

import (
	"context"

	"cloudsync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormFileContentRepository struct {
	db *gorm.DB
}

func NewGormFileContentRepository(db *gorm.DB) *GormFileContentRepository {
	return &GormFileContentRepository{db: db}
}

func (r *GormFileContentRepository) ListLiveByFile(_ context.Context, tx *gorm.DB, fileID string) ([]models.FileContent, error) {
	var contents []models.FileContent
	err := useTx(r.db, tx).
		Where("file_id = ? AND delete_at IS NULL", fileID).
		Order("name ASC").
		Find(&contents).Error
	return contents, err
}

func (r *GormFileContentRepository) ListByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []string) ([]models.FileContent, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var contents []models.FileContent
	err := useTx(r.db, tx).
		Where("file_id IN ?", fileIDs).
		Find(&contents).Error
	return contents, err
}

func (r *GormFileContentRepository) GetByFileAndName(_ context.Context, tx *gorm.DB, fileID string, name string) (models.FileContent, error) {
	var content models.FileContent
	err := useTx(r.db, tx).
		Where("file_id = ? AND name = ?", fileID, name).
		First(&content).Error
	return content, err
}

// Upsert 以 (file_id, name) 为唯一键写入内容行；已存在时重置状态并清除回收标记。
// 与预签名 URL 的下发解耦：内容行在任何字节上传之前就已存在。
func (r *GormFileContentRepository) Upsert(_ context.Context, tx *gorm.DB, content *models.FileContent) error {
	return useTx(r.db, tx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "file_id"}, {Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"size":      content.Size,
				"status":    content.Status,
				"device_id": content.DeviceID,
				"delete_at": nil,
			}),
		}).
		Create(content).Error
}

func (r *GormFileContentRepository) UpdateByFileAndName(_ context.Context, tx *gorm.DB, fileID string, name string, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.FileContent{}).
		Where("file_id = ? AND name = ?", fileID, name).
		Updates(updates).Error
}

func (r *GormFileContentRepository) UpdateByFileAndNames(_ context.Context, tx *gorm.DB, fileID string, names []string, updates map[string]interface{}) error {
	if len(names) == 0 {
		return nil
	}
	return useTx(r.db, tx).Model(&models.FileContent{}).
		Where("file_id = ? AND name IN ?", fileID, names).
		Updates(updates).Error
}
