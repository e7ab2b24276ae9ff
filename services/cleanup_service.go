package services

import (
	"context"
	"time"

	"cloudsync/logger"
	"cloudsync/repositories"
)

// CleanupService 周期性地把回收站里超过保留期的节点转为永久删除。
type CleanupService interface {
	Start(ctx context.Context, interval time.Duration)
	PurgeExpired(ctx context.Context) (int, error)
}

type cleanupService struct {
	hierarchies repositories.HierarchyRepository
	hierarchy   HierarchyService
	batchSize   int
}

func NewCleanupService(hierarchies repositories.HierarchyRepository, hierarchy HierarchyService) CleanupService {
	return &cleanupService{
		hierarchies: hierarchies,
		hierarchy:   hierarchy,
		batchSize:   100,
	}
}

func (s *cleanupService) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.PurgeExpired(ctx)
				if err != nil {
					logger.Warnf("回收站清理失败: %v", err)
					continue
				}
				if purged > 0 {
					logger.Infof("回收站清理完成，处理 %d 个节点", purged)
				}
			}
		}
	}()
}

// PurgeExpired 每轮最多处理一批，避免长事务。永久删除复用层级删除流程，
// 对象存储与历史记录由其统一处理。
func (s *cleanupService) PurgeExpired(ctx context.Context) (int, error) {
	entries, err := s.hierarchies.ListTrashedExpired(ctx, nil, time.Now(), s.batchSize)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, entry := range entries {
		if _, err := s.hierarchy.Delete(ctx, entry.UserID, "system", entry.ID, true); err != nil {
			logger.Warnf("永久删除过期节点失败: %s: %v", entry.ID, err)
			continue
		}
		purged++
	}
	return purged, nil
}
