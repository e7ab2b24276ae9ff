package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloudsync/models"
	"cloudsync/repositories"

	"gorm.io/gorm"
)

type FeedHierarchyItem struct {
	HierarchyID string    `json:"hierarchy_id"`
	Path        string    `json:"path"`
	Action      string    `json:"action"`
	Status      string    `json:"status"`
	DeviceID    string    `json:"device_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type FeedContentItem struct {
	FileContentID string `json:"file_content_id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Status        string `json:"status"`
	Size          int64  `json:"size"`
}

type FeedFileItem struct {
	FileID    string            `json:"file_id"`
	Action    string            `json:"action"`
	DeviceID  string            `json:"device_id"`
	UpdatedAt time.Time         `json:"updated_at"`
	Contents  []FeedContentItem `json:"contents"`
}

type FeedUserItem struct {
	Action     string    `json:"action"`
	DeviceID   string    `json:"device_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type FeedOutput struct {
	Hierarchies []FeedHierarchyItem `json:"hierarchies"`
	Files       []FeedFileItem      `json:"files"`
	User        *FeedUserItem       `json:"user,omitempty"`
	NextToken   string              `json:"next_token,omitempty"`
}

// streamCursor 指向某条流上一页最后返回的那行历史。
type streamCursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// feedToken 是翻页游标的明文形态。某条流翻完后对应字段省略，
// 下一页请求不再查询该流。
type feedToken struct {
	Hierarchy *streamCursor `json:"hierarchy,omitempty"`
	File      *streamCursor `json:"file,omitempty"`
}

type SyncService interface {
	Poll(ctx context.Context, userID string, since time.Time, token string) (FeedOutput, error)
}

type syncService struct {
	hierarchyHist repositories.HierarchyHistoryRepository
	contentHist   repositories.FileContentHistoryRepository
	userHist      repositories.UserHistoryRepository
	pageSize      int
}

func NewSyncService(
	hierarchyHist repositories.HierarchyHistoryRepository,
	contentHist repositories.FileContentHistoryRepository,
	userHist repositories.UserHistoryRepository,
	pageSize int,
) SyncService {
	return &syncService{
		hierarchyHist: hierarchyHist,
		contentHist:   contentHist,
		userHist:      userHist,
		pageSize:      pageSize,
	}
}

// Poll 返回 since 之后的增量变更，按层级与文件两条流分页。
// 每条流在页内按实体折叠，只保留每个实体最新的一次变更。
// 用户级事件只随首页返回一次。
func (s *syncService) Poll(ctx context.Context, userID string, since time.Time, token string) (FeedOutput, error) {
	cursor, err := parseFeedToken(token)
	if err != nil {
		return FeedOutput{}, err
	}

	output := FeedOutput{
		Hierarchies: make([]FeedHierarchyItem, 0),
		Files:       make([]FeedFileItem, 0),
	}
	next := feedToken{}

	queryHierarchies := token == "" || cursor.Hierarchy != nil
	if queryHierarchies {
		in := repositories.FeedQueryInput{UserID: userID, Since: since, Limit: s.pageSize}
		if cursor.Hierarchy != nil {
			at, _ := time.Parse(time.RFC3339Nano, cursor.Hierarchy.CreatedAt)
			in.BeforeAt = &at
			in.ExcludeID = cursor.Hierarchy.ID
		}
		rows, err := s.hierarchyHist.ListForFeed(ctx, nil, in)
		if err != nil {
			return FeedOutput{}, newAppError(http.StatusInternalServerError, "查询层级变更失败", err)
		}
		output.Hierarchies = collapseHierarchyRows(rows)
		if len(rows) == s.pageSize {
			last := rows[len(rows)-1]
			next.Hierarchy = &streamCursor{ID: last.ID, CreatedAt: last.CreatedAt.Format(time.RFC3339Nano)}
		}
	}

	queryFiles := token == "" || cursor.File != nil
	if queryFiles {
		in := repositories.FeedQueryInput{UserID: userID, Since: since, Limit: s.pageSize}
		if cursor.File != nil {
			at, _ := time.Parse(time.RFC3339Nano, cursor.File.CreatedAt)
			in.BeforeAt = &at
			in.ExcludeID = cursor.File.ID
		}
		rows, err := s.contentHist.ListForFeed(ctx, nil, in)
		if err != nil {
			return FeedOutput{}, newAppError(http.StatusInternalServerError, "查询文件变更失败", err)
		}
		output.Files = collapseFileRows(rows)
		if len(rows) == s.pageSize {
			last := rows[len(rows)-1]
			next.File = &streamCursor{ID: last.ID, CreatedAt: last.CreatedAt.Format(time.RFC3339Nano)}
		}
	}

	if token == "" {
		row, err := s.userHist.GetLatestSince(ctx, nil, userID, since)
		if err == nil {
			output.User = &FeedUserItem{
				Action:     strings.ToLower(row.Action),
				DeviceID:   row.DeviceID,
				OccurredAt: row.CreatedAt,
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return FeedOutput{}, newAppError(http.StatusInternalServerError, "查询用户变更失败", err)
		}
	}

	if next.Hierarchy != nil || next.File != nil {
		raw, err := json.Marshal(next)
		if err != nil {
			return FeedOutput{}, newAppError(http.StatusInternalServerError, "编码分页游标失败", err)
		}
		output.NextToken = base64.StdEncoding.EncodeToString(raw)
	}

	return output, nil
}

// collapseHierarchyRows 依赖行序为时间倒序，每个层级节点只取最新一行。
func collapseHierarchyRows(rows []models.HierarchyHistory) []FeedHierarchyItem {
	items := make([]FeedHierarchyItem, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if seen[row.HierarchyID] {
			continue
		}
		seen[row.HierarchyID] = true
		items = append(items, FeedHierarchyItem{
			HierarchyID: row.HierarchyID,
			Path:        row.Path,
			Action:      strings.ToLower(row.Action),
			Status:      row.Status,
			DeviceID:    row.DeviceID,
			UpdatedAt:   row.CreatedAt,
		})
	}
	return items
}

// collapseFileRows 按文件折叠：文件项取最新一行的动作，
// 内容子项按 file_content_id 去重后挂到同一文件下。
func collapseFileRows(rows []models.FileContentHistory) []FeedFileItem {
	items := make([]FeedFileItem, 0, len(rows))
	index := make(map[string]int, len(rows))
	seenContent := make(map[string]bool, len(rows))
	for _, row := range rows {
		i, ok := index[row.FileID]
		if !ok {
			items = append(items, FeedFileItem{
				FileID:    row.FileID,
				Action:    strings.ToLower(row.Action),
				DeviceID:  row.DeviceID,
				UpdatedAt: row.CreatedAt,
				Contents:  make([]FeedContentItem, 0, 1),
			})
			i = len(items) - 1
			index[row.FileID] = i
		}
		if row.FileContentID == "" || seenContent[row.FileContentID] {
			continue
		}
		seenContent[row.FileContentID] = true
		items[i].Contents = append(items[i].Contents, FeedContentItem{
			FileContentID: row.FileContentID,
			Name:          row.Name,
			Version:       row.Version,
			Status:        row.Status,
			Size:          row.Size,
		})
	}
	return items
}

// parseFeedToken 解析翻页游标。空串表示首页。任何结构或时间格式错误
// 都按无效游标拒绝，不做猜测性修复。
func parseFeedToken(token string) (feedToken, error) {
	var cursor feedToken
	if token == "" {
		return cursor, nil
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return cursor, newAppError(http.StatusBadRequest, "分页游标无效", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cursor); err != nil {
		return cursor, newAppError(http.StatusBadRequest, "分页游标无效", err)
	}
	for _, sc := range []*streamCursor{cursor.Hierarchy, cursor.File} {
		if sc == nil {
			continue
		}
		if sc.ID == "" {
			return feedToken{}, newAppError(http.StatusBadRequest, "分页游标无效", nil)
		}
		if _, err := time.Parse(time.RFC3339Nano, sc.CreatedAt); err != nil {
			return feedToken{}, newAppError(http.StatusBadRequest, "分页游标无效", err)
		}
	}
	if cursor.Hierarchy == nil && cursor.File == nil {
		return feedToken{}, newAppError(http.StatusBadRequest, "分页游标无效", nil)
	}
	return cursor, nil
}
