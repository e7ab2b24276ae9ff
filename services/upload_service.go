package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloudsync/logger"
	"cloudsync/models"
	"cloudsync/repositories"
	"cloudsync/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadLimits 汇总上传编排需要的配置上限，由启动时从配置装配。
type UploadLimits struct {
	MaxFileSize      int64
	MaxChunkSize     int64
	MaxPartCount     int
	PresignExpireSec int
	SessionExpireSec int
}

type StartContentInput struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type ContentUploadPlan struct {
	Name          string   `json:"name"`
	UploadID      string   `json:"upload_id"`
	NumberOfParts int32    `json:"number_of_parts"`
	ChunkSize     int64    `json:"chunk_size"`
	PartURLs      []string `json:"part_urls"`
}

type AbortContentInput struct {
	Name     string `json:"name"`
	UploadID string `json:"upload_id"`
}

type ContentDownload struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Version       string `json:"version"`
	URL           string `json:"url"`
	NumberOfParts int32  `json:"number_of_parts"`
	ChunkSize     int64  `json:"chunk_size"`
}

type DownloadOutput struct {
	FileID   string            `json:"file_id"`
	Name     string            `json:"name"`
	Size     int64             `json:"size"`
	Contents []ContentDownload `json:"contents"`
}

type UploadService interface {
	StartUpload(ctx context.Context, userID string, deviceID string, fileID string, inputs []StartContentInput) ([]ContentUploadPlan, error)
	AbortUpload(ctx context.Context, userID string, deviceID string, fileID string, inputs []AbortContentInput) error
	Download(ctx context.Context, userID string, fileID string) (DownloadOutput, error)
}

type uploadService struct {
	txManager TxManager
	files     repositories.FileRepository
	contents  repositories.FileContentRepository
	histories repositories.FileContentHistoryRepository
	sessions  repositories.UploadSessionRepository
	store     storage.ObjectStorage
	limits    UploadLimits
}

func NewUploadService(
	txManager TxManager,
	files repositories.FileRepository,
	contents repositories.FileContentRepository,
	histories repositories.FileContentHistoryRepository,
	sessions repositories.UploadSessionRepository,
	store storage.ObjectStorage,
	limits UploadLimits,
) UploadService {
	return &uploadService{
		txManager: txManager,
		files:     files,
		contents:  contents,
		histories: histories,
		sessions:  sessions,
		store:     store,
		limits:    limits,
	}
}

// StartUpload 为文件的每个内容开启一次分片上传：先做尺寸校验与分片规划，
// 再向对象存储申请 uploadId 并预签名每个分片的上传地址，最后落库。
func (s *uploadService) StartUpload(ctx context.Context, userID string, deviceID string, fileID string, inputs []StartContentInput) ([]ContentUploadPlan, error) {
	if _, err := s.getLiveFile(ctx, userID, fileID); err != nil {
		return nil, err
	}

	// 先整体校验，存储侧会话在校验全部通过后才创建
	chunkPlans := make([]ChunkPlan, 0, len(inputs))
	for _, input := range inputs {
		if input.Name == "" {
			return nil, newAppError(http.StatusBadRequest, "内容名称不能为空", nil)
		}
		if input.Size > s.limits.MaxFileSize {
			return nil, newAppError(http.StatusRequestEntityTooLarge, "文件大小超过上限", nil)
		}
		chunkPlan, err := planChunks(input.Size, s.limits.MaxChunkSize, s.limits.MaxPartCount)
		if err != nil {
			return nil, err
		}
		chunkPlans = append(chunkPlans, chunkPlan)
	}

	// 中途失败时终止本次已创建的会话，不留下无人认领的分片上传
	presignExpire := time.Duration(s.limits.PresignExpireSec) * time.Second
	plans := make([]ContentUploadPlan, 0, len(inputs))
	abortCreated := func() {
		for _, plan := range plans {
			key := contentObjectKey(userID, fileID, plan.Name)
			if err := s.store.AbortMultipartUpload(ctx, key, plan.UploadID); err != nil {
				logger.Warnf("终止分片上传失败: %s: %v", plan.UploadID, err)
			}
		}
	}
	for i, input := range inputs {
		key := contentObjectKey(userID, fileID, input.Name)
		uploadID, err := s.store.CreateMultipartUpload(ctx, key)
		if err != nil {
			abortCreated()
			return nil, newAppError(http.StatusBadGateway, "创建分片上传失败", err)
		}

		partURLs := make([]string, 0, chunkPlans[i].NumberOfParts)
		for part := int32(1); part <= chunkPlans[i].NumberOfParts; part++ {
			url, err := s.store.PresignUploadPart(ctx, key, uploadID, part, presignExpire)
			if err != nil {
				if abortErr := s.store.AbortMultipartUpload(ctx, key, uploadID); abortErr != nil {
					logger.Warnf("终止分片上传失败: %s: %v", uploadID, abortErr)
				}
				abortCreated()
				return nil, newAppError(http.StatusBadGateway, "预签名分片地址失败", err)
			}
			partURLs = append(partURLs, url)
		}

		plans = append(plans, ContentUploadPlan{
			Name:          input.Name,
			UploadID:      uploadID,
			NumberOfParts: chunkPlans[i].NumberOfParts,
			ChunkSize:     chunkPlans[i].ChunkSize,
			PartURLs:      partURLs,
		})
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		histRows := make([]models.FileContentHistory, 0, len(inputs))
		for _, input := range inputs {
			content := models.FileContent{
				ID:       uuid.NewString(),
				FileID:   fileID,
				Name:     input.Name,
				Size:     input.Size,
				Status:   models.ContentStatusUploading,
				DeviceID: deviceID,
			}
			if err := s.contents.Upsert(ctx, tx, &content); err != nil {
				return err
			}
			// 同名内容已存在时 Upsert 保留旧行，按文件加名称取回规范行
			row, err := s.contents.GetByFileAndName(ctx, tx, fileID, input.Name)
			if err != nil {
				return err
			}
			histRows = append(histRows, models.FileContentHistory{
				ID:            uuid.NewString(),
				FileID:        fileID,
				FileContentID: row.ID,
				UserID:        userID,
				Action:        models.ActionUploadStarted,
				DeviceID:      deviceID,
				Name:          input.Name,
				Size:          input.Size,
				Status:        models.ContentStatusUploading,
				CreatedAt:     time.Now(),
			})
		}
		if err := s.histories.CreateBatch(ctx, tx, histRows); err != nil {
			return err
		}
		return s.files.UpdateByIDAndUser(ctx, tx, fileID, userID, map[string]interface{}{
			"status": models.ContentStatusUploading,
		})
	})
	if err != nil {
		return nil, newAppError(http.StatusInternalServerError, "记录上传开始失败", err)
	}

	for i, plan := range plans {
		if err := s.sessions.Register(ctx, plan.UploadID, fileID, inputs[i].Name, s.limits.SessionExpireSec); err != nil {
			logger.Warnf("登记上传会话失败: %s: %v", plan.UploadID, err)
		}
	}

	return plans, nil
}

// AbortUpload 终止仍在进行的分片上传。存储侧终止失败只记日志，
// 库内状态仍然标记为已终止，残留分片由存储生命周期策略回收。
func (s *uploadService) AbortUpload(ctx context.Context, userID string, deviceID string, fileID string, inputs []AbortContentInput) error {
	if _, err := s.getLiveFile(ctx, userID, fileID); err != nil {
		return err
	}

	names := make([]string, 0, len(inputs))
	for _, input := range inputs {
		key := contentObjectKey(userID, fileID, input.Name)
		if err := s.store.AbortMultipartUpload(ctx, key, input.UploadID); err != nil {
			logger.Warnf("终止分片上传失败: %s: %v", input.UploadID, err)
		}
		names = append(names, input.Name)
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.contents.UpdateByFileAndNames(ctx, tx, fileID, names, map[string]interface{}{
			"status": models.ContentStatusAborted,
		}); err != nil {
			return err
		}

		rows, err := s.contents.ListLiveByFile(ctx, tx, fileID)
		if err != nil {
			return err
		}
		fileStatus := models.ContentStatusAborted
		var totalSize int64
		for _, row := range rows {
			switch row.Status {
			case models.ContentStatusUploading:
				fileStatus = models.ContentStatusUploading
			case models.ContentStatusUploaded:
				if fileStatus != models.ContentStatusUploading {
					fileStatus = models.ContentStatusUploaded
				}
			}
			if row.Status != models.ContentStatusAborted && row.Status != models.ContentStatusFailed {
				totalSize += row.Size
			}
		}

		histRows := make([]models.FileContentHistory, 0, len(inputs))
		rowByName := make(map[string]models.FileContent, len(rows))
		for _, row := range rows {
			rowByName[row.Name] = row
		}
		for _, input := range inputs {
			row := rowByName[input.Name]
			histRows = append(histRows, models.FileContentHistory{
				ID:            uuid.NewString(),
				FileID:        fileID,
				FileContentID: row.ID,
				UserID:        userID,
				Action:        models.ActionUploadAborted,
				DeviceID:      deviceID,
				Name:          input.Name,
				Size:          row.Size,
				Version:       row.Version,
				Status:        models.ContentStatusAborted,
				CreatedAt:     time.Now(),
			})
		}
		if err := s.histories.CreateBatch(ctx, tx, histRows); err != nil {
			return err
		}

		return s.files.UpdateByIDAndUser(ctx, tx, fileID, userID, map[string]interface{}{
			"size":   totalSize,
			"status": fileStatus,
		})
	})
	if err != nil {
		return newAppError(http.StatusInternalServerError, "记录上传终止失败", err)
	}

	for _, input := range inputs {
		if err := s.sessions.Clear(ctx, input.UploadID); err != nil {
			logger.Warnf("清理上传会话失败: %s: %v", input.UploadID, err)
		}
	}
	return nil
}

// Download 为文件已上传完成的内容生成预签名下载地址，并附带分片建议，
// 客户端可据此用 Range 请求分段拉取大文件。
func (s *uploadService) Download(ctx context.Context, userID string, fileID string) (DownloadOutput, error) {
	file, err := s.files.GetLiveByIDAndUser(ctx, nil, fileID, userID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DownloadOutput{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return DownloadOutput{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}

	presignExpire := time.Duration(s.limits.PresignExpireSec) * time.Second
	output := DownloadOutput{
		FileID:   file.ID,
		Name:     file.Name,
		Size:     file.Size,
		Contents: make([]ContentDownload, 0, len(file.Contents)),
	}
	for _, content := range file.Contents {
		if content.Status != models.ContentStatusUploaded || content.DeleteAt != nil {
			continue
		}
		key := contentObjectKey(userID, fileID, content.Name)
		url, err := s.store.PresignGetObject(ctx, key, content.Version, presignExpire)
		if err != nil {
			return DownloadOutput{}, newAppError(http.StatusBadGateway, "预签名下载地址失败", err)
		}
		item := ContentDownload{
			Name:    content.Name,
			Size:    content.Size,
			Version: content.Version,
			URL:     url,
		}
		if plan, err := planChunks(content.Size, s.limits.MaxChunkSize, s.limits.MaxPartCount); err == nil {
			item.NumberOfParts = plan.NumberOfParts
			item.ChunkSize = plan.ChunkSize
		}
		output.Contents = append(output.Contents, item)
	}
	return output, nil
}

func (s *uploadService) getLiveFile(ctx context.Context, userID string, fileID string) (models.File, error) {
	file, err := s.files.GetLiveByIDAndUser(ctx, nil, fileID, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, newAppError(http.StatusNotFound, "文件不存在", nil)
		}
		return models.File{}, newAppError(http.StatusInternalServerError, "查询文件失败", err)
	}
	return file, nil
}
