package repositories

import (
	"context"
	"time"

	"cloudsync/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	GetLiveByID(ctx context.Context, tx *gorm.DB, userID string) (models.User, error)
	UpdateByID(ctx context.Context, tx *gorm.DB, userID string, updates map[string]interface{}) error
}

type HierarchyRepository interface {
	GetLiveByPath(ctx context.Context, tx *gorm.DB, userID string, path string) (models.HierarchyEntry, error)
	GetLiveByID(ctx context.Context, tx *gorm.DB, userID string, id string) (models.HierarchyEntry, error)
	GetTrashedByID(ctx context.Context, tx *gorm.DB, userID string, id string) (models.HierarchyEntry, error)
	ExistsByPath(ctx context.Context, tx *gorm.DB, userID string, path string) (bool, error)
	CountLiveByPaths(ctx context.Context, tx *gorm.DB, userID string, paths []string) (int64, error)
	ListLivePathsIn(ctx context.Context, tx *gorm.DB, userID string, paths []string) ([]string, error)
	Create(ctx context.Context, tx *gorm.DB, entry *models.HierarchyEntry) error
	CreateBatchSkipDuplicates(ctx context.Context, tx *gorm.DB, entries []models.HierarchyEntry) error
	ListLiveByPathPrefix(ctx context.Context, tx *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error)
	ListByPathPrefix(ctx context.Context, tx *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error)
	ListTrashedPathsByPattern(ctx context.Context, tx *gorm.DB, userID string, exact string, likePattern string) ([]string, error)
	UpdateByID(ctx context.Context, tx *gorm.DB, id string, updates map[string]interface{}) error
	UpdateByIDs(ctx context.Context, tx *gorm.DB, ids []string, updates map[string]interface{}) error
	ListLiveWithFileByUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.HierarchyEntry, error)
	ListTrashedWithFileByUser(ctx context.Context, tx *gorm.DB, userID string) ([]models.HierarchyEntry, error)
	ListTrashedExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.HierarchyEntry, error)
}

type FileRepository interface {
	GetLiveByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string, preloadContents bool) (models.File, error)
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	CreateBatchSkipDuplicates(ctx context.Context, tx *gorm.DB, files []models.File) error
	UpdateByIDAndUser(ctx context.Context, tx *gorm.DB, fileID string, userID string, updates map[string]interface{}) error
	UpdateByIDs(ctx context.Context, tx *gorm.DB, fileIDs []string, updates map[string]interface{}) error
}

type FileContentRepository interface {
	ListLiveByFile(ctx context.Context, tx *gorm.DB, fileID string) ([]models.FileContent, error)
	ListByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []string) ([]models.FileContent, error)
	GetByFileAndName(ctx context.Context, tx *gorm.DB, fileID string, name string) (models.FileContent, error)
	Upsert(ctx context.Context, tx *gorm.DB, content *models.FileContent) error
	UpdateByFileAndName(ctx context.Context, tx *gorm.DB, fileID string, name string, updates map[string]interface{}) error
	UpdateByFileAndNames(ctx context.Context, tx *gorm.DB, fileID string, names []string, updates map[string]interface{}) error
}

// FeedQueryInput 描述单条审计流的一页查询窗口。
// BeforeAt/ExcludeID 来自上一页游标：闭区间时间上界，按 id 排除已返回的那一行。
type FeedQueryInput struct {
	UserID    string
	Since     time.Time
	BeforeAt  *time.Time
	ExcludeID string
	Limit     int
}

type HierarchyHistoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, row *models.HierarchyHistory) error
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []models.HierarchyHistory) error
	ListForFeed(ctx context.Context, tx *gorm.DB, in FeedQueryInput) ([]models.HierarchyHistory, error)
}

type FileContentHistoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, row *models.FileContentHistory) error
	CreateBatch(ctx context.Context, tx *gorm.DB, rows []models.FileContentHistory) error
	ListForFeed(ctx context.Context, tx *gorm.DB, in FeedQueryInput) ([]models.FileContentHistory, error)
	ListUploadingByOtherDevices(ctx context.Context, tx *gorm.DB, fileID string, deviceID string) ([]models.FileContentHistory, error)
	GetByFileNameAndVersion(ctx context.Context, tx *gorm.DB, fileID string, name string, version string) (models.FileContentHistory, error)
}

type UserHistoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, row *models.UserHistory) error
	GetLatestSince(ctx context.Context, tx *gorm.DB, userID string, since time.Time) (models.UserHistory, error)
}

type UploadSessionRepository interface {
	Register(ctx context.Context, uploadID string, fileID string, name string, expireSeconds int) error
	Exists(ctx context.Context, uploadID string) (bool, error)
	Clear(ctx context.Context, uploadID string) error
}

type Container struct {
	TxManager            TxManager
	Users                UserRepository
	Hierarchies          HierarchyRepository
	Files                FileRepository
	FileContents         FileContentRepository
	HierarchyHistories   HierarchyHistoryRepository
	FileContentHistories FileContentHistoryRepository
	UserHistories        UserHistoryRepository
	UploadSessions       UploadSessionRepository
}
