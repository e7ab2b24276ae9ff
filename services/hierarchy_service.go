package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"cloudsync/models"
	"cloudsync/repositories"
	"cloudsync/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AffectedEntry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type BatchImportItem struct {
	Name string  `json:"name"`
	Size int64   `json:"size"`
	Type *string `json:"type,omitempty"`
}

type HierarchyService interface {
	IsValidHierarchy(ctx context.Context, userID string, p string, includeCurrentPath bool) (bool, error)
	GetByPath(ctx context.Context, userID string, p string) (models.HierarchyEntry, error)
	GetByID(ctx context.Context, userID string, id string) (models.HierarchyEntry, error)
	GetTrashedByID(ctx context.Context, userID string, id string) (models.HierarchyEntry, error)
	GetTree(ctx context.Context, userID string) (TreeResult, error)
	GetTrashTree(ctx context.Context, userID string) (TreeResult, error)
	Create(ctx context.Context, userID string, deviceID string, p string, size int64, contentType *string) (models.HierarchyEntry, error)
	UpdatePath(ctx context.Context, userID string, deviceID string, newPath string, oldPath string, isFile bool) ([]models.HierarchyEntry, error)
	Delete(ctx context.Context, userID string, deviceID string, hierarchyID string, permanent bool) ([]AffectedEntry, error)
	Recover(ctx context.Context, userID string, deviceID string, hierarchyID string) ([]AffectedEntry, error)
	CountTrashDuplicates(ctx context.Context, userID string, p string, isFile bool) (int, error)
	ChangeDuplicatedNameOnDelete(ctx context.Context, entry models.HierarchyEntry, userID string, deviceID string) (models.HierarchyEntry, error)
	CreateBatch(ctx context.Context, userID string, deviceID string, organizationID string, items []BatchImportItem) error
}

type hierarchyService struct {
	txManager     TxManager
	hierarchies   repositories.HierarchyRepository
	files         repositories.FileRepository
	contents      repositories.FileContentRepository
	histories     repositories.HierarchyHistoryRepository
	store         storage.ObjectStorage
	retentionDays int
}

func NewHierarchyService(
	txManager TxManager,
	hierarchies repositories.HierarchyRepository,
	files repositories.FileRepository,
	contents repositories.FileContentRepository,
	histories repositories.HierarchyHistoryRepository,
	store storage.ObjectStorage,
	retentionDays int,
) HierarchyService {
	return &hierarchyService{
		txManager:     txManager,
		hierarchies:   hierarchies,
		files:         files,
		contents:      contents,
		histories:     histories,
		store:         store,
		retentionDays: retentionDays,
	}
}

// IsValidHierarchy 校验路径的每一级上级目录都以存活状态存在。
// includeCurrentPath 用于恢复场景：节点自身已有记录（在回收站），只要求存在，不要求存活。
func (s *hierarchyService) IsValidHierarchy(ctx context.Context, userID string, p string, includeCurrentPath bool) (bool, error) {
	ancestors := splitAncestors(p)
	if len(ancestors) == 0 {
		return true, nil
	}

	self := ancestors[len(ancestors)-1]
	strict := ancestors[:len(ancestors)-1]

	if len(strict) > 0 {
		count, err := s.hierarchies.CountLiveByPaths(ctx, nil, userID, strict)
		if err != nil {
			return false, newAppError(http.StatusInternalServerError, "校验层级失败", err)
		}
		if count != int64(len(strict)) {
			return false, nil
		}
	}

	if !includeCurrentPath {
		return true, nil
	}

	exists, err := s.hierarchies.ExistsByPath(ctx, nil, userID, self)
	if err != nil {
		return false, newAppError(http.StatusInternalServerError, "校验层级失败", err)
	}
	return exists, nil
}

func (s *hierarchyService) GetByPath(ctx context.Context, userID string, p string) (models.HierarchyEntry, error) {
	entry, err := s.hierarchies.GetLiveByPath(ctx, nil, userID, canonicalPath(p))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HierarchyEntry{}, newAppError(http.StatusNotFound, "节点不存在", nil)
		}
		return models.HierarchyEntry{}, newAppError(http.StatusInternalServerError, "查询节点失败", err)
	}
	return entry, nil
}

func (s *hierarchyService) GetByID(ctx context.Context, userID string, id string) (models.HierarchyEntry, error) {
	entry, err := s.hierarchies.GetLiveByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HierarchyEntry{}, newAppError(http.StatusNotFound, "节点不存在", nil)
		}
		return models.HierarchyEntry{}, newAppError(http.StatusInternalServerError, "查询节点失败", err)
	}
	return entry, nil
}

func (s *hierarchyService) GetTrashedByID(ctx context.Context, userID string, id string) (models.HierarchyEntry, error) {
	entry, err := s.hierarchies.GetTrashedByID(ctx, nil, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HierarchyEntry{}, newAppError(http.StatusNotFound, "回收站节点不存在", nil)
		}
		return models.HierarchyEntry{}, newAppError(http.StatusInternalServerError, "查询回收站节点失败", err)
	}
	return entry, nil
}

func (s *hierarchyService) GetTree(ctx context.Context, userID string) (TreeResult, error) {
	rows, err := s.hierarchies.ListLiveWithFileByUser(ctx, nil, userID)
	if err != nil {
		return TreeResult{}, newAppError(http.StatusInternalServerError, "查询目录树失败", err)
	}
	return AssembleTree(rows), nil
}

func (s *hierarchyService) GetTrashTree(ctx context.Context, userID string) (TreeResult, error) {
	rows, err := s.hierarchies.ListTrashedWithFileByUser(ctx, nil, userID)
	if err != nil {
		return TreeResult{}, newAppError(http.StatusInternalServerError, "查询回收站失败", err)
	}
	return AssembleTree(rows), nil
}

func (s *hierarchyService) Create(ctx context.Context, userID string, deviceID string, rawPath string, size int64, contentType *string) (models.HierarchyEntry, error) {
	p := canonicalPath(rawPath)
	isFile := isFilePath(p)
	if isFile && size <= 0 {
		return models.HierarchyEntry{}, newAppError(http.StatusBadRequest, "文件大小必须为正数", nil)
	}

	_, err := s.hierarchies.GetLiveByPath(ctx, nil, userID, p)
	if err == nil {
		return models.HierarchyEntry{}, newAppError(http.StatusConflict, "路径已存在", nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.HierarchyEntry{}, newAppError(http.StatusInternalServerError, "查询路径失败", err)
	}

	valid, err := s.IsValidHierarchy(ctx, userID, p, false)
	if err != nil {
		return models.HierarchyEntry{}, err
	}
	if !valid {
		return models.HierarchyEntry{}, newAppError(http.StatusConflict, "上级目录不存在", nil)
	}

	entry := models.HierarchyEntry{
		ID:     uuid.NewString(),
		UserID: userID,
		Path:   p,
		Status: models.StatusActive,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if isFile {
			file := models.File{
				ID:     uuid.NewString(),
				UserID: userID,
				Name:   path.Base(p),
				Size:   size,
				Status: models.StatusClosed,
				Type:   contentType,
			}
			if err := s.files.Create(ctx, tx, &file); err != nil {
				return err
			}
			entry.FileID = &file.ID
			entry.Type = contentType
		}

		if err := s.hierarchies.Create(ctx, tx, &entry); err != nil {
			return err
		}
		return s.histories.Create(ctx, tx, s.historyRow(entry, userID, deviceID, models.ActionCreate))
	})
	if err != nil {
		return models.HierarchyEntry{}, newAppError(http.StatusInternalServerError, "创建节点失败", err)
	}

	return entry, nil
}

// UpdatePath 对所有以 oldPath 为前缀的存活节点做前缀替换。
// 没有任何行匹配说明客户端状态已过期，返回 409 要求重新同步，绝不按成功处理。
func (s *hierarchyService) UpdatePath(ctx context.Context, userID string, deviceID string, newPath string, oldPath string, isFile bool) ([]models.HierarchyEntry, error) {
	oldP := canonicalPathKind(oldPath, isFile)
	newP := canonicalPathKind(newPath, isFile)

	if _, err := s.hierarchies.GetLiveByPath(ctx, nil, userID, newP); err == nil {
		return nil, newAppError(http.StatusConflict, "目标路径已被占用", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newAppError(http.StatusInternalServerError, "查询目标路径失败", err)
	}

	valid, err := s.IsValidHierarchy(ctx, userID, newP, false)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, newAppError(http.StatusConflict, "目标上级目录不存在", nil)
	}

	var updated []models.HierarchyEntry
	errStale := errors.New("stale path")

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var rows []models.HierarchyEntry
		if isFile {
			row, err := s.hierarchies.GetLiveByPath(ctx, tx, userID, oldP)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			} else {
				rows = []models.HierarchyEntry{row}
			}
		} else {
			var err error
			rows, err = s.hierarchies.ListLiveByPathPrefix(ctx, tx, userID, oldP)
			if err != nil {
				return err
			}
		}

		if len(rows) == 0 {
			return errStale
		}

		histRows := make([]models.HierarchyHistory, 0, len(rows))
		for i := range rows {
			rows[i].Path = strings.Replace(rows[i].Path, oldP, newP, 1)
			if err := s.hierarchies.UpdateByID(ctx, tx, rows[i].ID, map[string]interface{}{"path": rows[i].Path}); err != nil {
				return err
			}
			histRows = append(histRows, *s.historyRow(rows[i], userID, deviceID, models.ActionMove))
		}
		updated = rows
		return s.histories.CreateBatch(ctx, tx, histRows)
	})
	if err != nil {
		if errors.Is(err, errStale) {
			return []models.HierarchyEntry{}, newAppError(http.StatusConflict, "路径已变更，请重新同步", nil)
		}
		return nil, newAppError(http.StatusInternalServerError, "移动节点失败", err)
	}

	return updated, nil
}

func (s *hierarchyService) Delete(ctx context.Context, userID string, deviceID string, hierarchyID string, permanent bool) ([]AffectedEntry, error) {
	var entry models.HierarchyEntry
	var err error
	if permanent {
		entry, err = s.GetTrashedByID(ctx, userID, hierarchyID)
	} else {
		entry, err = s.GetByID(ctx, userID, hierarchyID)
	}
	if err != nil {
		return nil, err
	}

	if !permanent {
		entry, err = s.ChangeDuplicatedNameOnDelete(ctx, entry, userID, deviceID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	deleteAt := now.AddDate(0, 0, s.retentionDays)
	status := models.StatusTrashed
	action := models.ActionDelete
	if permanent {
		deleteAt = now
		status = models.StatusTrashedPermanently
		action = models.ActionDeletePermanently
	}
	updates := map[string]interface{}{"delete_at": deleteAt, "status": status}

	var affected []AffectedEntry
	var fileIDs []string

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var rows []models.HierarchyEntry
		if entry.IsFile() {
			rows = []models.HierarchyEntry{entry}
		} else {
			// 变更前先取整棵子树快照，永久删除后无法再查到这些行
			var err error
			rows, err = s.hierarchies.ListByPathPrefix(ctx, tx, userID, entry.Path)
			if err != nil {
				return err
			}
		}

		entryIDs := make([]string, 0, len(rows))
		histRows := make([]models.HierarchyHistory, 0, len(rows))
		affected = make([]AffectedEntry, 0, len(rows))
		for i := range rows {
			entryIDs = append(entryIDs, rows[i].ID)
			// 目录场景报告的是后代，入口节点本身照常变更但不计入受影响行
			if entry.IsFile() || rows[i].ID != entry.ID {
				affected = append(affected, AffectedEntry{ID: rows[i].ID, Path: rows[i].Path})
			}
			if rows[i].FileID != nil {
				fileIDs = append(fileIDs, *rows[i].FileID)
			}
			rows[i].Status = status
			histRows = append(histRows, *s.historyRow(rows[i], userID, deviceID, action))
		}

		if err := s.hierarchies.UpdateByIDs(ctx, tx, entryIDs, updates); err != nil {
			return err
		}
		if err := s.files.UpdateByIDs(ctx, tx, fileIDs, updates); err != nil {
			return err
		}
		return s.histories.CreateBatch(ctx, tx, histRows)
	})
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "删除节点失败", err)
	}

	if permanent && len(fileIDs) > 0 {
		if err := s.deleteStoredObjects(ctx, userID, fileIDs); err != nil {
			return nil, newAppError(http.StatusBadGateway, "删除存储对象失败", err)
		}
	}

	return affected, nil
}

func (s *hierarchyService) Recover(ctx context.Context, userID string, deviceID string, hierarchyID string) ([]AffectedEntry, error) {
	entry, err := s.GetTrashedByID(ctx, userID, hierarchyID)
	if err != nil {
		return nil, err
	}

	valid, err := s.IsValidHierarchy(ctx, userID, entry.Path, true)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, newAppError(http.StatusConflict, "上级目录不存在，无法恢复", nil)
	}

	// 存活路径唯一：原位置已被新节点占用时拒绝恢复
	if _, err := s.hierarchies.GetLiveByPath(ctx, nil, userID, entry.Path); err == nil {
		return nil, newAppError(http.StatusConflict, "原路径已被占用，无法恢复", nil)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newAppError(http.StatusInternalServerError, "查询原路径失败", err)
	}

	var affected []AffectedEntry

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		var rows []models.HierarchyEntry
		if entry.IsFile() {
			rows = []models.HierarchyEntry{entry}
		} else {
			var err error
			rows, err = s.hierarchies.ListByPathPrefix(ctx, tx, userID, entry.Path)
			if err != nil {
				return err
			}
		}

		folderIDs := make([]string, 0, len(rows))
		fileEntryIDs := make([]string, 0, len(rows))
		fileIDs := make([]string, 0, len(rows))
		histRows := make([]models.HierarchyHistory, 0, len(rows))
		affected = make([]AffectedEntry, 0, len(rows))
		for i := range rows {
			if entry.IsFile() || rows[i].ID != entry.ID {
				affected = append(affected, AffectedEntry{ID: rows[i].ID, Path: rows[i].Path})
			}
			if rows[i].FileID != nil {
				fileEntryIDs = append(fileEntryIDs, rows[i].ID)
				fileIDs = append(fileIDs, *rows[i].FileID)
				rows[i].Status = models.StatusClosed
			} else {
				folderIDs = append(folderIDs, rows[i].ID)
				rows[i].Status = models.StatusActive
			}
			histRows = append(histRows, *s.historyRow(rows[i], userID, deviceID, models.ActionRecover))
		}

		if err := s.hierarchies.UpdateByIDs(ctx, tx, folderIDs, map[string]interface{}{"delete_at": nil, "status": models.StatusActive}); err != nil {
			return err
		}
		if err := s.hierarchies.UpdateByIDs(ctx, tx, fileEntryIDs, map[string]interface{}{"delete_at": nil, "status": models.StatusClosed}); err != nil {
			return err
		}
		if err := s.files.UpdateByIDs(ctx, tx, fileIDs, map[string]interface{}{"delete_at": nil, "status": models.StatusClosed}); err != nil {
			return err
		}
		return s.histories.CreateBatch(ctx, tx, histRows)
	})
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "恢复节点失败", err)
	}

	return affected, nil
}

// CountTrashDuplicates 统计回收站内与 path 同名或带 " N" 序号后缀的条目数。
// 文件的序号插在扩展名前，目录的序号插在结尾斜杠前。
func (s *hierarchyService) CountTrashDuplicates(ctx context.Context, userID string, p string, isFile bool) (int, error) {
	exact, pattern, prefix, suffix := trashDuplicatePattern(p, isFile)

	paths, err := s.hierarchies.ListTrashedPathsByPattern(ctx, nil, userID, exact, pattern)
	if err != nil {
		return 0, newAppError(http.StatusInternalServerError, "查询回收站重名失败", err)
	}

	count := 0
	for _, candidate := range paths {
		if candidate == exact {
			count++
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(candidate, prefix+" "), suffix)
		if middle == "" {
			continue
		}
		if _, err := strconv.Atoi(middle); err == nil {
			count++
		}
	}
	return count, nil
}

// ChangeDuplicatedNameOnDelete 在入回收站前解决路径撞名：取序号 count+1 重命名。
// 已知竞态：并发删除可能选中同一个序号，这里不加锁防护。
func (s *hierarchyService) ChangeDuplicatedNameOnDelete(ctx context.Context, entry models.HierarchyEntry, userID string, deviceID string) (models.HierarchyEntry, error) {
	isFile := entry.IsFile()
	count, err := s.CountTrashDuplicates(ctx, userID, entry.Path, isFile)
	if err != nil {
		return models.HierarchyEntry{}, err
	}
	if count == 0 {
		return entry, nil
	}

	_, _, prefix, suffix := trashDuplicatePattern(entry.Path, isFile)
	newPath := fmt.Sprintf("%s %d%s", prefix, count+1, suffix)

	if _, err := s.UpdatePath(ctx, userID, deviceID, newPath, entry.Path, isFile); err != nil {
		return models.HierarchyEntry{}, err
	}
	return s.GetByID(ctx, userID, entry.ID)
}

// CreateBatch 批量导入：从文件路径推导出全部上级目录，去重后一次性写入，
// 已存在的行静默跳过，重复导入等价于空操作。
func (s *hierarchyService) CreateBatch(ctx context.Context, userID string, deviceID string, organizationID string, items []BatchImportItem) error {
	_ = organizationID // 跨用户共享不在范围内

	folderPaths := make([]string, 0)
	folderSeen := make(map[string]bool)
	filePaths := make([]string, 0, len(items))
	fileByPath := make(map[string]BatchImportItem, len(items))

	for _, item := range items {
		p := canonicalPath(item.Name)
		ancestors := splitAncestors(p)
		if len(ancestors) == 0 {
			continue
		}

		last := len(ancestors) - 1
		if isFilePath(p) {
			if _, ok := fileByPath[p]; !ok {
				fileByPath[p] = item
				filePaths = append(filePaths, p)
			}
		} else {
			last = len(ancestors)
		}
		for _, ancestor := range ancestors[:last] {
			if !folderSeen[ancestor] {
				folderSeen[ancestor] = true
				folderPaths = append(folderPaths, ancestor)
			}
		}
	}

	allPaths := append(append([]string{}, folderPaths...), filePaths...)
	existing, err := s.hierarchies.ListLivePathsIn(ctx, nil, userID, allPaths)
	if err != nil {
		return newAppError(http.StatusInternalServerError, "查询已有路径失败", err)
	}
	existingSet := make(map[string]bool, len(existing))
	for _, p := range existing {
		existingSet[p] = true
	}

	entries := make([]models.HierarchyEntry, 0, len(allPaths))
	files := make([]models.File, 0, len(filePaths))
	histRows := make([]models.HierarchyHistory, 0, len(allPaths))

	for _, p := range folderPaths {
		if existingSet[p] {
			continue
		}
		entry := models.HierarchyEntry{
			ID:     uuid.NewString(),
			UserID: userID,
			Path:   p,
			Status: models.StatusActive,
		}
		entries = append(entries, entry)
		histRows = append(histRows, *s.historyRow(entry, userID, deviceID, models.ActionCreate))
	}

	for _, p := range filePaths {
		if existingSet[p] {
			continue
		}
		item := fileByPath[p]
		file := models.File{
			ID:     uuid.NewString(),
			UserID: userID,
			Name:   path.Base(p),
			Size:   item.Size,
			Status: models.StatusClosed,
			Type:   item.Type,
		}
		files = append(files, file)

		fileID := file.ID
		entry := models.HierarchyEntry{
			ID:     uuid.NewString(),
			UserID: userID,
			Path:   p,
			FileID: &fileID,
			Status: models.StatusActive,
			Type:   item.Type,
		}
		entries = append(entries, entry)
		histRows = append(histRows, *s.historyRow(entry, userID, deviceID, models.ActionCreate))
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.CreateBatchSkipDuplicates(ctx, tx, files); err != nil {
			return err
		}
		if err := s.hierarchies.CreateBatchSkipDuplicates(ctx, tx, entries); err != nil {
			return err
		}
		return s.histories.CreateBatch(ctx, tx, histRows)
	})
	if err != nil {
		return newAppError(http.StatusInternalServerError, "批量导入失败", err)
	}
	return nil
}

func (s *hierarchyService) deleteStoredObjects(ctx context.Context, userID string, fileIDs []string) error {
	contents, err := s.contents.ListByFileIDs(ctx, nil, fileIDs)
	if err != nil {
		return err
	}
	objects := make([]storage.ObjectVersion, 0, len(contents))
	for _, content := range contents {
		objects = append(objects, storage.ObjectVersion{
			Key:     contentObjectKey(userID, content.FileID, content.Name),
			Version: content.Version,
		})
	}
	return s.store.DeleteObjects(ctx, objects)
}

func (s *hierarchyService) historyRow(entry models.HierarchyEntry, userID string, deviceID string, action string) *models.HierarchyHistory {
	return &models.HierarchyHistory{
		ID:          uuid.NewString(),
		HierarchyID: entry.ID,
		UserID:      userID,
		Action:      action,
		DeviceID:    deviceID,
		Path:        entry.Path,
		Status:      entry.Status,
		CreatedAt:   time.Now(),
	}
}

// canonicalPath 按节点类型归一化：文件不带结尾斜杠，目录带。
func canonicalPath(p string) string {
	withSlash, withoutSlash := normalizePath(p)
	if isFilePath(withoutSlash) && !strings.HasSuffix(p, "/") {
		return withoutSlash
	}
	return withSlash
}

func canonicalPathKind(p string, isFile bool) string {
	withSlash, withoutSlash := normalizePath(p)
	if isFile {
		return withoutSlash
	}
	return withSlash
}

func trashDuplicatePattern(p string, isFile bool) (exact string, pattern string, prefix string, suffix string) {
	if isFile {
		_, withoutSlash := normalizePath(p)
		suffix = path.Ext(withoutSlash)
		prefix = strings.TrimSuffix(withoutSlash, suffix)
		return withoutSlash, prefix + " %" + suffix, prefix, suffix
	}
	withSlash, withoutSlash := normalizePath(p)
	return withSlash, withoutSlash + " %/", withoutSlash, "/"
}

func contentObjectKey(userID string, fileID string, name string) string {
	return userID + "/" + fileID + "/" + name
}
