package services

import (
	"context"
	"errors"
	"net/http"
	"path"
	"sync"
	"time"

	"cloudsync/logger"
	"cloudsync/models"
	"cloudsync/repositories"
	"cloudsync/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimedVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ConflictItem struct {
	FileContentID string `json:"file_content_id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	DeviceID      string `json:"device_id"`
	Size          int64  `json:"size"`
}

type CompletePartETag struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

type CompleteContentInput struct {
	Name     string             `json:"name"`
	UploadID string             `json:"upload_id"`
	Parts    []CompletePartETag `json:"parts"`
}

type CompletedContent struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type FailedContent struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type CompleteUploadOutput struct {
	Successes []CompletedContent `json:"successes"`
	Failures  []FailedContent    `json:"failures"`
}

type ResolveItem struct {
	Name            string `json:"name"`
	KeepingVersion  string `json:"keeping_version"`
	DeletingVersion string `json:"deleting_version"`
}

type ConflictService interface {
	DetectConflicts(ctx context.Context, userID string, deviceID string, fileID string, claimed []ClaimedVersion) ([]ConflictItem, error)
	CompleteUpload(ctx context.Context, userID string, fileID string, deviceID string, hasConflict bool, contents []CompleteContentInput) (CompleteUploadOutput, error)
	ResolveConflict(ctx context.Context, userID string, fileID string, deviceID string, resolution string, items []ResolveItem) error
}

type conflictService struct {
	txManager TxManager
	files     repositories.FileRepository
	contents  repositories.FileContentRepository
	histories repositories.FileContentHistoryRepository
	sessions  repositories.UploadSessionRepository
	store     storage.ObjectStorage
}

func NewConflictService(
	txManager TxManager,
	files repositories.FileRepository,
	contents repositories.FileContentRepository,
	histories repositories.FileContentHistoryRepository,
	sessions repositories.UploadSessionRepository,
	store storage.ObjectStorage,
) ConflictService {
	return &conflictService{
		txManager: txManager,
		files:     files,
		contents:  contents,
		histories: histories,
		sessions:  sessions,
		store:     store,
	}
}

// DetectConflicts 比对设备上次看到的内容版本与服务端当前版本。
// 其他设备进行中的上传排在已落库的分歧版本之前：前者尚未提交，应当先提示用户。
func (s *conflictService) DetectConflicts(ctx context.Context, userID string, deviceID string, fileID string, claimed []ClaimedVersion) ([]ConflictItem, error) {
	if _, err := s.getLiveFile(ctx, userID, fileID); err != nil {
		return nil, err
	}

	contents, err := s.contents.ListLiveByFile(ctx, nil, fileID)
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "查询文件内容失败", err)
	}
	byName := make(map[string]models.FileContent, len(contents))
	for _, content := range contents {
		byName[content.Name] = content
	}

	direct := make([]ConflictItem, 0)
	directNames := make(map[string]bool)
	for _, claim := range claimed {
		content, ok := byName[claim.Name]
		if !ok {
			continue
		}
		if content.Version != claim.Version {
			direct = append(direct, ConflictItem{
				FileContentID: content.ID,
				Name:          content.Name,
				Version:       content.Version,
				DeviceID:      content.DeviceID,
				Size:          content.Size,
			})
			directNames[content.Name] = true
		}
	}

	histRows, err := s.histories.ListUploadingByOtherDevices(ctx, nil, fileID, deviceID)
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "查询上传历史失败", err)
	}

	inFlight := make([]ConflictItem, 0)
	seenDevice := make(map[string]bool)
	for _, row := range histRows {
		if seenDevice[row.DeviceID] {
			continue
		}
		seenDevice[row.DeviceID] = true
		if directNames[row.Name] {
			continue
		}
		inFlight = append(inFlight, ConflictItem{
			FileContentID: row.FileContentID,
			Name:          row.Name,
			Version:       row.Version,
			DeviceID:      row.DeviceID,
			Size:          row.Size,
		})
	}

	return append(inFlight, direct...), nil
}

// CompleteUpload 并发地对每个内容执行存储侧合并，按逐项结算收集结果：
// 个别分片失败不拖垮整个调用，客户端只需重传失败的那部分。
func (s *conflictService) CompleteUpload(ctx context.Context, userID string, fileID string, deviceID string, hasConflict bool, contents []CompleteContentInput) (CompleteUploadOutput, error) {
	if _, err := s.getLiveFile(ctx, userID, fileID); err != nil {
		return CompleteUploadOutput{}, err
	}

	type outcome struct {
		result storage.CompleteResult
		err    error
	}
	outcomes := make([]outcome, len(contents))

	// 会话过期的上传不再发起合并，残留分片由存储生命周期策略回收。
	// Redis 不可用时交给存储侧判定。
	sessionOK := make([]bool, len(contents))
	for i := range contents {
		ok, err := s.sessions.Exists(ctx, contents[i].UploadID)
		if err != nil {
			logger.Warnf("查询上传会话失败: %s: %v", contents[i].UploadID, err)
			ok = true
		}
		sessionOK[i] = ok
	}

	var wg sync.WaitGroup
	for i := range contents {
		if !sessionOK[i] {
			outcomes[i].err = errors.New("上传会话不存在或已过期")
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			parts := make([]storage.CompletedPart, 0, len(contents[i].Parts))
			for _, p := range contents[i].Parts {
				parts = append(parts, storage.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
			}
			key := contentObjectKey(userID, fileID, contents[i].Name)
			result, err := s.store.CompleteMultipartUpload(ctx, key, contents[i].UploadID, parts)
			outcomes[i] = outcome{result: result, err: err}
		}(i)
	}
	wg.Wait()

	output := CompleteUploadOutput{
		Successes: make([]CompletedContent, 0, len(contents)),
		Failures:  make([]FailedContent, 0),
	}
	succeededUploadIDs := make([]string, 0, len(contents))
	for i := range contents {
		if outcomes[i].err != nil {
			output.Failures = append(output.Failures, FailedContent{
				Name:   contents[i].Name,
				Reason: outcomes[i].err.Error(),
			})
			continue
		}
		name := path.Base(outcomes[i].result.Key)
		output.Successes = append(output.Successes, CompletedContent{
			Name:    name,
			Version: outcomes[i].result.Version,
		})
		succeededUploadIDs = append(succeededUploadIDs, contents[i].UploadID)
	}

	fileStatus := models.ContentStatusUploaded
	if len(output.Failures) > 0 {
		fileStatus = models.ContentStatusUploading
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, success := range output.Successes {
			updates := map[string]interface{}{
				"version":   success.Version,
				"status":    models.ContentStatusUploaded,
				"device_id": deviceID,
			}
			if err := s.contents.UpdateByFileAndName(ctx, tx, fileID, success.Name, updates); err != nil {
				return err
			}
		}

		rows, err := s.contents.ListLiveByFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		var totalSize int64
		rowByName := make(map[string]models.FileContent, len(rows))
		for _, row := range rows {
			rowByName[row.Name] = row
			if row.Status != models.ContentStatusAborted && row.Status != models.ContentStatusFailed {
				totalSize += row.Size
			}
		}

		histRows := make([]models.FileContentHistory, 0, len(output.Successes))
		for _, success := range output.Successes {
			row := rowByName[success.Name]
			histRows = append(histRows, models.FileContentHistory{
				ID:            uuid.NewString(),
				FileID:        fileID,
				FileContentID: row.ID,
				UserID:        userID,
				Action:        models.ActionUploadCompleted,
				DeviceID:      deviceID,
				Name:          success.Name,
				Size:          row.Size,
				Version:       success.Version,
				Status:        models.ContentStatusUploaded,
				CreatedAt:     time.Now(),
			})
		}
		if err := s.histories.CreateBatch(ctx, tx, histRows); err != nil {
			return err
		}

		return s.files.UpdateByIDAndUser(ctx, tx, fileID, userID, map[string]interface{}{
			"size":         totalSize,
			"status":       fileStatus,
			"has_conflict": hasConflict,
		})
	})
	if err != nil {
		return CompleteUploadOutput{}, newAppError(http.StatusInternalServerError, "记录上传结果失败", err)
	}

	for _, uploadID := range succeededUploadIDs {
		if err := s.sessions.Clear(ctx, uploadID); err != nil {
			logger.Warnf("清理上传会话失败: %s: %v", uploadID, err)
		}
	}

	return output, nil
}

// ResolveConflict 把保留版本的大小与版本号从历史回写到存活内容行并清除冲突标记。
// 重复以同样的保留版本解决冲突是空操作。除保留双份外，落败版本的对象会被删除。
func (s *conflictService) ResolveConflict(ctx context.Context, userID string, fileID string, deviceID string, resolution string, items []ResolveItem) error {
	if _, err := s.getLiveFile(ctx, userID, fileID); err != nil {
		return err
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		histRows := make([]models.FileContentHistory, 0, len(items))
		for _, item := range items {
			kept, err := s.histories.GetByFileNameAndVersion(ctx, tx, fileID, item.Name, item.KeepingVersion)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return newAppError(http.StatusNotFound, "保留版本不存在", nil)
				}
				return err
			}

			updates := map[string]interface{}{
				"version": item.KeepingVersion,
				"size":    kept.Size,
			}
			if err := s.contents.UpdateByFileAndName(ctx, tx, fileID, item.Name, updates); err != nil {
				return err
			}

			histRows = append(histRows, models.FileContentHistory{
				ID:            uuid.NewString(),
				FileID:        fileID,
				FileContentID: kept.FileContentID,
				UserID:        userID,
				Action:        models.ActionConflictResolved,
				DeviceID:      deviceID,
				Name:          item.Name,
				Size:          kept.Size,
				Version:       item.KeepingVersion,
				Status:        models.ContentStatusUploaded,
				CreatedAt:     time.Now(),
			})
		}
		if err := s.histories.CreateBatch(ctx, tx, histRows); err != nil {
			return err
		}

		return s.files.UpdateByIDAndUser(ctx, tx, fileID, userID, map[string]interface{}{"has_conflict": false})
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return newAppError(http.StatusInternalServerError, "解决冲突失败", err)
	}

	if resolution == models.ResolutionKeepBoth {
		return nil
	}

	objects := make([]storage.ObjectVersion, 0, len(items))
	for _, item := range items {
		if item.DeletingVersion == "" {
			continue
		}
		objects = append(objects, storage.ObjectVersion{
			Key:     contentObjectKey(userID, fileID, item.Name),
			Version: item.DeletingVersion,
		})
	}
	if err := s.store.DeleteObjects(ctx, objects); err != nil {
		return newAppError(http.StatusBadGateway, "删除落败版本对象失败", err)
	}
	return nil
}

func (s *conflictService) getLiveFile(ctx context.Context, userID string, fileID string) (models.File, error) {
	file, err := s.files.GetLiveByIDAndUser(ctx, nil, fileID, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return models.File{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}
	return file, nil
}
