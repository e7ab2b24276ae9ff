package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloudsync/models"
	"cloudsync/repositories"
	"cloudsync/storage"

	"gorm.io/gorm"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// ---- hierarchy repo ----

type fakeHierarchyRepo struct {
	entries map[string]*models.HierarchyEntry
}

func newFakeHierarchyRepo() *fakeHierarchyRepo {
	return &fakeHierarchyRepo{entries: make(map[string]*models.HierarchyEntry)}
}

func (r *fakeHierarchyRepo) add(entry models.HierarchyEntry) *models.HierarchyEntry {
	e := entry
	r.entries[e.ID] = &e
	return &e
}

func (r *fakeHierarchyRepo) isLive(e *models.HierarchyEntry) bool {
	return e.DeleteAt == nil
}

func (r *fakeHierarchyRepo) GetLiveByPath(_ context.Context, _ *gorm.DB, userID string, path string) (models.HierarchyEntry, error) {
	for _, e := range r.entries {
		if e.UserID == userID && e.Path == path && r.isLive(e) {
			return *e, nil
		}
	}
	return models.HierarchyEntry{}, gorm.ErrRecordNotFound
}

func (r *fakeHierarchyRepo) GetLiveByID(_ context.Context, _ *gorm.DB, userID string, id string) (models.HierarchyEntry, error) {
	if e, ok := r.entries[id]; ok && e.UserID == userID && r.isLive(e) {
		return *e, nil
	}
	return models.HierarchyEntry{}, gorm.ErrRecordNotFound
}

func (r *fakeHierarchyRepo) GetTrashedByID(_ context.Context, _ *gorm.DB, userID string, id string) (models.HierarchyEntry, error) {
	if e, ok := r.entries[id]; ok && e.UserID == userID && e.Status == models.StatusTrashed {
		return *e, nil
	}
	return models.HierarchyEntry{}, gorm.ErrRecordNotFound
}

func (r *fakeHierarchyRepo) ExistsByPath(_ context.Context, _ *gorm.DB, userID string, path string) (bool, error) {
	for _, e := range r.entries {
		if e.UserID == userID && e.Path == path {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeHierarchyRepo) CountLiveByPaths(_ context.Context, _ *gorm.DB, userID string, paths []string) (int64, error) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	found := make(map[string]bool)
	for _, e := range r.entries {
		if e.UserID == userID && r.isLive(e) && want[e.Path] {
			found[e.Path] = true
		}
	}
	return int64(len(found)), nil
}

func (r *fakeHierarchyRepo) ListLivePathsIn(_ context.Context, _ *gorm.DB, userID string, paths []string) ([]string, error) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	var out []string
	for _, e := range r.entries {
		if e.UserID == userID && r.isLive(e) && want[e.Path] {
			out = append(out, e.Path)
		}
	}
	return out, nil
}

func (r *fakeHierarchyRepo) Create(_ context.Context, _ *gorm.DB, entry *models.HierarchyEntry) error {
	r.add(*entry)
	return nil
}

func (r *fakeHierarchyRepo) CreateBatchSkipDuplicates(_ context.Context, _ *gorm.DB, entries []models.HierarchyEntry) error {
	for _, e := range entries {
		r.add(e)
	}
	return nil
}

func (r *fakeHierarchyRepo) ListLiveByPathPrefix(_ context.Context, _ *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error) {
	var out []models.HierarchyEntry
	for _, e := range r.entries {
		if e.UserID == userID && r.isLive(e) && strings.HasPrefix(e.Path, prefix) {
			out = append(out, *e)
		}
	}
	sortEntriesByPath(out)
	return out, nil
}

func (r *fakeHierarchyRepo) ListByPathPrefix(_ context.Context, _ *gorm.DB, userID string, prefix string) ([]models.HierarchyEntry, error) {
	var out []models.HierarchyEntry
	for _, e := range r.entries {
		if e.UserID == userID && strings.HasPrefix(e.Path, prefix) {
			out = append(out, *e)
		}
	}
	sortEntriesByPath(out)
	return out, nil
}

func (r *fakeHierarchyRepo) ListTrashedPathsByPattern(_ context.Context, _ *gorm.DB, userID string, exact string, likePattern string) ([]string, error) {
	idx := strings.Index(likePattern, "%")
	pre, post := likePattern[:idx], likePattern[idx+1:]
	var out []string
	for _, e := range r.entries {
		if e.UserID == userID && e.Status == models.StatusTrashed {
			if e.Path == exact ||
				(strings.HasPrefix(e.Path, pre) && strings.HasSuffix(e.Path, post) && len(e.Path) > len(pre)+len(post)) {
				out = append(out, e.Path)
			}
		}
	}
	return out, nil
}

func (r *fakeHierarchyRepo) UpdateByID(_ context.Context, _ *gorm.DB, id string, updates map[string]interface{}) error {
	if e, ok := r.entries[id]; ok {
		applyHierarchyUpdates(e, updates)
	}
	return nil
}

func (r *fakeHierarchyRepo) UpdateByIDs(_ context.Context, _ *gorm.DB, ids []string, updates map[string]interface{}) error {
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			applyHierarchyUpdates(e, updates)
		}
	}
	return nil
}

func (r *fakeHierarchyRepo) ListLiveWithFileByUser(_ context.Context, _ *gorm.DB, userID string) ([]models.HierarchyEntry, error) {
	var out []models.HierarchyEntry
	for _, e := range r.entries {
		if e.UserID == userID && r.isLive(e) {
			out = append(out, *e)
		}
	}
	sortEntriesByPath(out)
	return out, nil
}

func (r *fakeHierarchyRepo) ListTrashedWithFileByUser(_ context.Context, _ *gorm.DB, userID string) ([]models.HierarchyEntry, error) {
	var out []models.HierarchyEntry
	for _, e := range r.entries {
		if e.UserID == userID && e.Status == models.StatusTrashed {
			out = append(out, *e)
		}
	}
	sortEntriesByPath(out)
	return out, nil
}

func (r *fakeHierarchyRepo) ListTrashedExpired(_ context.Context, _ *gorm.DB, now time.Time, limit int) ([]models.HierarchyEntry, error) {
	var out []models.HierarchyEntry
	for _, e := range r.entries {
		if e.Status == models.StatusTrashed && e.DeleteAt != nil && !e.DeleteAt.After(now) {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func sortEntriesByPath(entries []models.HierarchyEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

func applyHierarchyUpdates(e *models.HierarchyEntry, updates map[string]interface{}) {
	if v, ok := updates["path"]; ok {
		e.Path = v.(string)
	}
	if v, ok := updates["status"]; ok {
		e.Status = v.(string)
	}
	if v, ok := updates["delete_at"]; ok {
		if v == nil {
			e.DeleteAt = nil
		} else if t, ok := v.(time.Time); ok {
			at := t
			e.DeleteAt = &at
		}
	}
}

// ---- user repo ----

type fakeUserRepo struct {
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) add(user models.User) *models.User {
	u := user
	r.users[u.ID] = &u
	return &u
}

func (r *fakeUserRepo) GetLiveByID(_ context.Context, _ *gorm.DB, userID string) (models.User, error) {
	if u, ok := r.users[userID]; ok && u.DeleteAt == nil {
		return *u, nil
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) UpdateByID(_ context.Context, _ *gorm.DB, userID string, updates map[string]interface{}) error {
	if u, ok := r.users[userID]; ok {
		if v, ok := updates["name"]; ok {
			u.Name = v.(string)
		}
	}
	return nil
}

// ---- file repo ----

type fakeFileRepo struct {
	files map[string]*models.File
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*models.File)}
}

func (r *fakeFileRepo) add(file models.File) *models.File {
	f := file
	r.files[f.ID] = &f
	return &f
}

func (r *fakeFileRepo) GetLiveByIDAndUser(_ context.Context, _ *gorm.DB, fileID string, userID string, _ bool) (models.File, error) {
	if f, ok := r.files[fileID]; ok && f.UserID == userID && f.DeleteAt == nil {
		return *f, nil
	}
	return models.File{}, gorm.ErrRecordNotFound
}

func (r *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *models.File) error {
	r.add(*file)
	return nil
}

func (r *fakeFileRepo) CreateBatchSkipDuplicates(_ context.Context, _ *gorm.DB, files []models.File) error {
	for _, f := range files {
		r.add(f)
	}
	return nil
}

func (r *fakeFileRepo) UpdateByIDAndUser(_ context.Context, _ *gorm.DB, fileID string, userID string, updates map[string]interface{}) error {
	if f, ok := r.files[fileID]; ok && f.UserID == userID {
		applyFileUpdates(f, updates)
	}
	return nil
}

func (r *fakeFileRepo) UpdateByIDs(_ context.Context, _ *gorm.DB, fileIDs []string, updates map[string]interface{}) error {
	for _, id := range fileIDs {
		if f, ok := r.files[id]; ok {
			applyFileUpdates(f, updates)
		}
	}
	return nil
}

func applyFileUpdates(f *models.File, updates map[string]interface{}) {
	if v, ok := updates["size"]; ok {
		f.Size = v.(int64)
	}
	if v, ok := updates["status"]; ok {
		f.Status = v.(string)
	}
	if v, ok := updates["has_conflict"]; ok {
		f.HasConflict = v.(bool)
	}
	if v, ok := updates["delete_at"]; ok {
		if v == nil {
			f.DeleteAt = nil
		} else if t, ok := v.(time.Time); ok {
			at := t
			f.DeleteAt = &at
		}
	}
}

// ---- file content repo ----

type fakeContentRepo struct {
	contents map[string]*models.FileContent
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{contents: make(map[string]*models.FileContent)}
}

func contentKey(fileID string, name string) string {
	return fileID + "/" + name
}

func (r *fakeContentRepo) add(content models.FileContent) *models.FileContent {
	c := content
	r.contents[contentKey(c.FileID, c.Name)] = &c
	return &c
}

func (r *fakeContentRepo) ListLiveByFile(_ context.Context, _ *gorm.DB, fileID string) ([]models.FileContent, error) {
	var out []models.FileContent
	for _, c := range r.contents {
		if c.FileID == fileID && c.DeleteAt == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeContentRepo) ListByFileIDs(_ context.Context, _ *gorm.DB, fileIDs []string) ([]models.FileContent, error) {
	want := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		want[id] = true
	}
	var out []models.FileContent
	for _, c := range r.contents {
		if want[c.FileID] {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeContentRepo) GetByFileAndName(_ context.Context, _ *gorm.DB, fileID string, name string) (models.FileContent, error) {
	if c, ok := r.contents[contentKey(fileID, name)]; ok {
		return *c, nil
	}
	return models.FileContent{}, gorm.ErrRecordNotFound
}

func (r *fakeContentRepo) Upsert(_ context.Context, _ *gorm.DB, content *models.FileContent) error {
	if existing, ok := r.contents[contentKey(content.FileID, content.Name)]; ok {
		existing.Size = content.Size
		existing.Status = content.Status
		existing.DeviceID = content.DeviceID
		existing.DeleteAt = nil
		return nil
	}
	r.add(*content)
	return nil
}

func (r *fakeContentRepo) UpdateByFileAndName(_ context.Context, _ *gorm.DB, fileID string, name string, updates map[string]interface{}) error {
	if c, ok := r.contents[contentKey(fileID, name)]; ok {
		applyContentUpdates(c, updates)
	}
	return nil
}

func (r *fakeContentRepo) UpdateByFileAndNames(_ context.Context, _ *gorm.DB, fileID string, names []string, updates map[string]interface{}) error {
	for _, name := range names {
		if c, ok := r.contents[contentKey(fileID, name)]; ok {
			applyContentUpdates(c, updates)
		}
	}
	return nil
}

func applyContentUpdates(c *models.FileContent, updates map[string]interface{}) {
	if v, ok := updates["version"]; ok {
		c.Version = v.(string)
	}
	if v, ok := updates["size"]; ok {
		c.Size = v.(int64)
	}
	if v, ok := updates["status"]; ok {
		c.Status = v.(string)
	}
	if v, ok := updates["device_id"]; ok {
		c.DeviceID = v.(string)
	}
	if v, ok := updates["delete_at"]; ok {
		if v == nil {
			c.DeleteAt = nil
		} else if t, ok := v.(time.Time); ok {
			at := t
			c.DeleteAt = &at
		}
	}
}

// ---- history repos ----

type fakeHierarchyHistoryRepo struct {
	rows []models.HierarchyHistory
}

func (r *fakeHierarchyHistoryRepo) Create(_ context.Context, _ *gorm.DB, row *models.HierarchyHistory) error {
	r.rows = append(r.rows, *row)
	return nil
}

func (r *fakeHierarchyHistoryRepo) CreateBatch(_ context.Context, _ *gorm.DB, rows []models.HierarchyHistory) error {
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *fakeHierarchyHistoryRepo) ListForFeed(_ context.Context, _ *gorm.DB, in repositories.FeedQueryInput) ([]models.HierarchyHistory, error) {
	var out []models.HierarchyHistory
	for _, row := range r.rows {
		if !feedRowMatches(row.UserID, row.ID, row.CreatedAt, in) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

type fakeContentHistoryRepo struct {
	rows []models.FileContentHistory
}

func (r *fakeContentHistoryRepo) Create(_ context.Context, _ *gorm.DB, row *models.FileContentHistory) error {
	r.rows = append(r.rows, *row)
	return nil
}

func (r *fakeContentHistoryRepo) CreateBatch(_ context.Context, _ *gorm.DB, rows []models.FileContentHistory) error {
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *fakeContentHistoryRepo) ListForFeed(_ context.Context, _ *gorm.DB, in repositories.FeedQueryInput) ([]models.FileContentHistory, error) {
	var out []models.FileContentHistory
	for _, row := range r.rows {
		if !feedRowMatches(row.UserID, row.ID, row.CreatedAt, in) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

func (r *fakeContentHistoryRepo) ListUploadingByOtherDevices(_ context.Context, _ *gorm.DB, fileID string, deviceID string) ([]models.FileContentHistory, error) {
	var out []models.FileContentHistory
	for _, row := range r.rows {
		if row.FileID == fileID && row.DeviceID != deviceID && row.Status == models.ContentStatusUploading {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeContentHistoryRepo) GetByFileNameAndVersion(_ context.Context, _ *gorm.DB, fileID string, name string, version string) (models.FileContentHistory, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.FileID == fileID && row.Name == name && row.Version == version {
			return row, nil
		}
	}
	return models.FileContentHistory{}, gorm.ErrRecordNotFound
}

func feedRowMatches(userID string, id string, createdAt time.Time, in repositories.FeedQueryInput) bool {
	if userID != in.UserID || createdAt.Before(in.Since) {
		return false
	}
	if in.BeforeAt != nil && createdAt.After(*in.BeforeAt) {
		return false
	}
	if in.ExcludeID != "" && id == in.ExcludeID {
		return false
	}
	return true
}

type fakeUserHistoryRepo struct {
	rows []models.UserHistory
}

func (r *fakeUserHistoryRepo) Create(_ context.Context, _ *gorm.DB, row *models.UserHistory) error {
	r.rows = append(r.rows, *row)
	return nil
}

func (r *fakeUserHistoryRepo) GetLatestSince(_ context.Context, _ *gorm.DB, userID string, since time.Time) (models.UserHistory, error) {
	var latest *models.UserHistory
	for i := range r.rows {
		row := &r.rows[i]
		if row.UserID != userID || row.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return models.UserHistory{}, gorm.ErrRecordNotFound
	}
	return *latest, nil
}

// ---- upload sessions ----

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]bool
	cleared  []string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]bool)}
}

func (r *fakeSessionRepo) Register(_ context.Context, uploadID string, _ string, _ string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[uploadID] = true
	return nil
}

func (r *fakeSessionRepo) Exists(_ context.Context, uploadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[uploadID], nil
}

func (r *fakeSessionRepo) Clear(_ context.Context, uploadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, uploadID)
	r.cleared = append(r.cleared, uploadID)
	return nil
}

// ---- object storage ----

type fakeObjectStorage struct {
	mu              sync.Mutex
	nextUpload      int
	createErrs      map[string]error
	createdUploads  []string
	completeErrs    map[string]error
	completedKeys   []string
	abortedUploads  []string
	deletedObjects  []storage.ObjectVersion
	presignedParts  int
	deleteObjectErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{
		createErrs:   make(map[string]error),
		completeErrs: make(map[string]error),
	}
}

func (s *fakeObjectStorage) CreateMultipartUpload(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.createErrs[key]; ok {
		return "", err
	}
	s.nextUpload++
	uploadID := fmt.Sprintf("upload-%d", s.nextUpload)
	s.createdUploads = append(s.createdUploads, uploadID)
	return uploadID, nil
}

func (s *fakeObjectStorage) CompleteMultipartUpload(_ context.Context, key string, uploadID string, _ []storage.CompletedPart) (storage.CompleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.completeErrs[uploadID]; ok {
		return storage.CompleteResult{}, err
	}
	s.completedKeys = append(s.completedKeys, key)
	return storage.CompleteResult{Key: key, Version: "ver-" + uploadID}, nil
}

func (s *fakeObjectStorage) AbortMultipartUpload(_ context.Context, _ string, uploadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortedUploads = append(s.abortedUploads, uploadID)
	return nil
}

func (s *fakeObjectStorage) PresignUploadPart(_ context.Context, key string, uploadID string, partNumber int32, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presignedParts++
	return fmt.Sprintf("https://storage.test/%s?uploadId=%s&partNumber=%d", key, uploadID, partNumber), nil
}

func (s *fakeObjectStorage) PresignGetObject(_ context.Context, key string, version string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://storage.test/%s?versionId=%s", key, version), nil
}

func (s *fakeObjectStorage) DeleteObjects(_ context.Context, objects []storage.ObjectVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteObjectErr != nil {
		return s.deleteObjectErr
	}
	s.deletedObjects = append(s.deletedObjects, objects...)
	return nil
}
