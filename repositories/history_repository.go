package repositories

import (
	"context"
	"time"

	"cloudsync/models"

	"gorm.io/gorm"
)

func feedQuery(db *gorm.DB, in FeedQueryInput) *gorm.DB {
	db = db.Where("user_id = ? AND created_at >= ?", in.UserID, in.Since)
	if in.BeforeAt != nil {
		// 时间上界取闭区间，同毫秒的行靠 id 排除，避免丢数据
		db = db.Where("created_at <= ? AND id <> ?", *in.BeforeAt, in.ExcludeID)
	}
	return db.Order("created_at DESC, id ASC").Limit(in.Limit)
}

type GormHierarchyHistoryRepository struct {
	db *gorm.DB
}

func NewGormHierarchyHistoryRepository(db *gorm.DB) *GormHierarchyHistoryRepository {
	return &GormHierarchyHistoryRepository{db: db}
}

func (r *GormHierarchyHistoryRepository) Create(_ context.Context, tx *gorm.DB, row *models.HierarchyHistory) error {
	return useTx(r.db, tx).Create(row).Error
}

func (r *GormHierarchyHistoryRepository) CreateBatch(_ context.Context, tx *gorm.DB, rows []models.HierarchyHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return useTx(r.db, tx).CreateInBatches(rows, 200).Error
}

func (r *GormHierarchyHistoryRepository) ListForFeed(_ context.Context, tx *gorm.DB, in FeedQueryInput) ([]models.HierarchyHistory, error) {
	var rows []models.HierarchyHistory
	err := feedQuery(useTx(r.db, tx).Model(&models.HierarchyHistory{}), in).Find(&rows).Error
	return rows, err
}

type GormFileContentHistoryRepository struct {
	db *gorm.DB
}

func NewGormFileContentHistoryRepository(db *gorm.DB) *GormFileContentHistoryRepository {
	return &GormFileContentHistoryRepository{db: db}
}

func (r *GormFileContentHistoryRepository) Create(_ context.Context, tx *gorm.DB, row *models.FileContentHistory) error {
	return useTx(r.db, tx).Create(row).Error
}

func (r *GormFileContentHistoryRepository) CreateBatch(_ context.Context, tx *gorm.DB, rows []models.FileContentHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return useTx(r.db, tx).CreateInBatches(rows, 200).Error
}

func (r *GormFileContentHistoryRepository) ListForFeed(_ context.Context, tx *gorm.DB, in FeedQueryInput) ([]models.FileContentHistory, error) {
	var rows []models.FileContentHistory
	err := feedQuery(useTx(r.db, tx).Model(&models.FileContentHistory{}), in).Find(&rows).Error
	return rows, err
}

func (r *GormFileContentHistoryRepository) ListUploadingByOtherDevices(_ context.Context, tx *gorm.DB, fileID string, deviceID string) ([]models.FileContentHistory, error) {
	var rows []models.FileContentHistory
	err := useTx(r.db, tx).
		Where("file_id = ? AND device_id <> ? AND status = ?", fileID, deviceID, models.ContentStatusUploading).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *GormFileContentHistoryRepository) GetByFileNameAndVersion(_ context.Context, tx *gorm.DB, fileID string, name string, version string) (models.FileContentHistory, error) {
	var row models.FileContentHistory
	err := useTx(r.db, tx).
		Where("file_id = ? AND name = ? AND version = ?", fileID, name, version).
		Order("created_at DESC").
		First(&row).Error
	return row, err
}

type GormUserHistoryRepository struct {
	db *gorm.DB
}

func NewGormUserHistoryRepository(db *gorm.DB) *GormUserHistoryRepository {
	return &GormUserHistoryRepository{db: db}
}

func (r *GormUserHistoryRepository) Create(_ context.Context, tx *gorm.DB, row *models.UserHistory) error {
	return useTx(r.db, tx).Create(row).Error
}

func (r *GormUserHistoryRepository) GetLatestSince(_ context.Context, tx *gorm.DB, userID string, since time.Time) (models.UserHistory, error) {
	var row models.UserHistory
	err := useTx(r.db, tx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		First(&row).Error
	return row, err
}
