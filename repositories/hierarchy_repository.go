package repositories

import (
	"context"
	"time"

	"cloudsync/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormHierarchyRepository struct {
	db *gorm.DB
}

func NewGormHierarchyRepository(db *gorm.DB) *GormHierarchyRepository {
	return &GormHierarchyRepository{db: db}
}

func (r *GormHierarchyRepository) GetLiveByPath(_ context.Context, tx *gorm.DB, userID string, path string) (models.HierarchyEntry, error) {
	var entry models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("user_id = ? AND path = ? AND delete_at IS NULL", userID, path).
		First(&entry).Error
	return entry, err
}

func (r *GormHierarchyRepository) GetLiveByID(_ context.Context, tx *gorm.DB, userID string, id string) (models.HierarchyEntry, error) {
	var entry models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("id = ? AND user_id = ? AND delete_at IS NULL", id, userID).
		First(&entry).Error
	return entry, err
}

// GetTrashedByID 只接受仍可恢复的回收站条目，
// 永久删除的行虽然保留在表里，但对象已经不在存储上。
func (r *GormHierarchyRepository) GetTrashedByID(_ context.Context, tx *gorm.DB, userID string, id string) (models.HierarchyEntry, error) {
	var entry models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("id = ? AND user_id = ? AND delete_at IS NOT NULL AND status = ?", id, userID, models.StatusTrashed).
		First(&entry).Error
	return entry, err
}

func (r *GormHierarchyRepository) ExistsByPath(_ context.Context, tx *gorm.DB, userID string, path string) (bool, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("user_id = ? AND path = ?", userID, path).
		Count(&count).Error
	return count > 0, err
}

func (r *GormHierarchyRepository) CountLiveByPaths(_ context.Context, tx *gorm.DB, userID string, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	var count int64
	err := useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("user_id = ? AND path IN ? AND delete_at IS NULL", userID, paths).
		Count(&count).Error
	return count, err
}

func (r *GormHierarchyRepository) ListLivePathsIn(_ context.Context, tx *gorm.DB, userID string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var existing []string
	err := useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("user_id = ? AND path IN ? AND delete_at IS NULL", userID, paths).
		Pluck("path", &existing).Error
	return existing, err
}

func (r *GormHierarchyRepository) Create(_ context.Context, tx *gorm.DB, entry *models.HierarchyEntry) error {
	return useTx(r.db, tx).Create(entry).Error
}

func (r *GormHierarchyRepository) CreateBatchSkipDuplicates(_ context.Context, tx *gorm.DB, entries []models.HierarchyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return useTx(r.db, tx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(entries, 200).Error
}

func (r *GormHierarchyRepository) ListLiveByPathPrefix(_ context.Context, tx *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("user_id = ? AND (path = ? OR path LIKE ?) AND delete_at IS NULL", userID, prefix, likePrefix(prefix)).
		Order("path ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormHierarchyRepository) ListByPathPrefix(_ context.Context, tx *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("user_id = ? AND (path = ? OR path LIKE ?)", userID, prefix, likePrefix(prefix)).
		Order("path ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormHierarchyRepository) ListTrashedPathsByPattern(_ context.Context, tx *gorm.DB, userID string, exact string, likePattern string) ([]string, error) {
	var paths []string
	err := useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("user_id = ? AND delete_at IS NOT NULL AND (path = ? OR path LIKE ?)", userID, exact, likePattern).
		Pluck("path", &paths).Error
	return paths, err
}

func (r *GormHierarchyRepository) UpdateByID(_ context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *GormHierarchyRepository) UpdateByIDs(_ context.Context, tx *gorm.DB, ids []string, updates map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return useTx(r.db, tx).Model(&models.HierarchyEntry{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func (r *GormHierarchyRepository) ListLiveWithFileByUser(_ context.Context, tx *gorm.DB, userID string) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	err := useTx(r.db, tx).
		Preload("File").
		Where("user_id = ? AND delete_at IS NULL", userID).
		Order("path ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormHierarchyRepository) ListTrashedWithFileByUser(_ context.Context, tx *gorm.DB, userID string) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	err := useTx(r.db, tx).
		Preload("File").
		Where("user_id = ? AND delete_at IS NOT NULL AND status = ?", userID, models.StatusTrashed).
		Order("path ASC").
		Find(&entries).Error
	return entries, err
}

func (r *GormHierarchyRepository) ListTrashedExpired(_ context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.HierarchyEntry, error) {
	var entries []models.HierarchyEntry
	err := useTx(r.db, tx).
		Where("status = ? AND delete_at IS NOT NULL AND delete_at < ?", models.StatusTrashed, now).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// likePrefix escapes LIKE wildcards so that "100%" in a name cannot widen the match.
func likePrefix(prefix string) string {
	escaped := make([]rune, 0, len(prefix))
	for _, ch := range prefix {
		if ch == '%' || ch == '_' || ch == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, ch)
	}
	return string(escaped) + "%"
}
