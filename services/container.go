package services

import (
	"cloudsync/config"
	"cloudsync/repositories"
	"cloudsync/storage"
)

// Container 聚合全部业务服务，由 main 装配后交给 handler 层。
type Container struct {
	User      UserService
	Hierarchy HierarchyService
	Conflict  ConflictService
	Upload    UploadService
	Sync      SyncService
	Cleanup   CleanupService
}

func NewContainer(repos *repositories.Container, store storage.ObjectStorage, cfg *config.Config) *Container {
	hierarchy := NewHierarchyService(
		repos.TxManager,
		repos.Hierarchies,
		repos.Files,
		repos.FileContents,
		repos.HierarchyHistories,
		store,
		cfg.Sync.TrashRetentionDays,
	)
	limits := UploadLimits{
		MaxFileSize:      cfg.Storage.MaxFileSize,
		MaxChunkSize:     cfg.Storage.MaxChunkSize,
		MaxPartCount:     cfg.Storage.MaxPartCount,
		PresignExpireSec: cfg.Storage.PresignExpireSec,
		SessionExpireSec: cfg.Redis.UploadSessionExpire,
	}
	return &Container{
		User:      NewUserService(repos.TxManager, repos.Users, repos.UserHistories),
		Hierarchy: hierarchy,
		Conflict: NewConflictService(
			repos.TxManager,
			repos.Files,
			repos.FileContents,
			repos.FileContentHistories,
			repos.UploadSessions,
			store,
		),
		Upload: NewUploadService(
			repos.TxManager,
			repos.Files,
			repos.FileContents,
			repos.FileContentHistories,
			repos.UploadSessions,
			store,
			limits,
		),
		Sync: NewSyncService(
			repos.HierarchyHistories,
			repos.FileContentHistories,
			repos.UserHistories,
			cfg.Sync.PageSize,
		),
		Cleanup: NewCleanupService(repos.Hierarchies, hierarchy),
	}
}
