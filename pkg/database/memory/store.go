// Package memory 提供 database.Store 的内存实现。
// 供单元测试和本地调试脚本使用，不依赖真实的 MongoDB。
package memory

import (
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store 是 database.Store 的内存实现。所有集合共用一把锁。
type Store struct {
	mu        sync.Mutex
	photos    map[primitive.ObjectID]*models.Photo
	jobs      map[primitive.ObjectID]*models.Job
	history   []*models.RenameHistory
	errorLogs []*models.ErrorLog

	// Now 可被测试替换以控制时间。
	Now func() time.Time

	// FailStuckErr 非 nil 时 FailStuck 直接返回该错误，用于模拟批量更新失败。
	FailStuckErr error
}

var _ database.Store = (*Store)(nil)

// NewStore 创建一个空的内存存储。
func NewStore() *Store {
	return &Store{
		photos: make(map[primitive.ObjectID]*models.Photo),
		jobs:   make(map[primitive.ObjectID]*models.Job),
		Now:    time.Now,
	}
}

func (s *Store) Photos() database.PhotoStore       { return (*photoStore)(s) }
func (s *Store) Jobs() database.JobStore           { return (*jobStore)(s) }
func (s *Store) History() database.HistoryStore    { return (*historyStore)(s) }
func (s *Store) ErrorLogs() database.ErrorLogStore { return (*errorLogStore)(s) }

func (s *Store) EnsureIndexes(ctx context.Context) error { return nil }

func (s *Store) DropAllCollections(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos = make(map[primitive.ObjectID]*models.Photo)
	s.jobs = make(map[primitive.ObjectID]*models.Job)
	s.history = nil
	s.errorLogs = nil
	return nil
}

// --- photoStore ---

type photoStore Store

func (p *photoStore) CreateBatch(ctx context.Context, photos []*models.Photo) ([]primitive.ObjectID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.Now()
	ids := make([]primitive.ObjectID, 0, len(photos))
	for _, photo := range photos {
		if photo.ID.IsZero() {
			photo.ID = primitive.NewObjectID()
		}
		photo.CreatedAt = now
		photo.UpdatedAt = now
		if photo.SearchName == "" {
			photo.SearchName = models.NormalizeSearchName(photo.FileName)
		}
		cp := *photo
		p.photos[photo.ID] = &cp
		ids = append(ids, photo.ID)
	}
	return ids, nil
}

func (p *photoStore) GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Photo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	photo, ok := p.photos[id]
	if !ok || photo.UserID != userID {
		return nil, nil
	}
	cp := *photo
	return &cp, nil
}

func (p *photoStore) GetByIDs(ctx context.Context, userID string, ids []primitive.ObjectID) ([]models.Photo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Photo
	for _, id := range ids {
		if photo, ok := p.photos[id]; ok && photo.UserID == userID {
			out = append(out, *photo)
		}
	}
	return out, nil
}

func (p *photoStore) GetByFileHash(ctx context.Context, userID, fileHash string) (*models.Photo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, photo := range p.photos {
		if photo.UserID == userID && photo.FileHash == fileHash {
			cp := *photo
			return &cp, nil
		}
	}
	return nil, nil
}

func (p *photoStore) List(ctx context.Context, userID string, q database.ListQuery) ([]models.Photo, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	var matched []models.Photo
	search := ""
	if q.Search != "" {
		search = models.NormalizeSearchName(q.Search)
	}
	for _, photo := range p.photos {
		if photo.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(photo.SearchName, search) {
			continue
		}
		matched = append(matched, *photo)
	}

	desc := q.SortOrder == "desc"
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch q.SortBy {
		case "date":
			less = matched[i].LastModified.Before(matched[j].LastModified)
		case "size":
			less = matched[i].Size < matched[j].Size
		default:
			less = matched[i].FileName < matched[j].FileName
		}
		if desc {
			return !less
		}
		return less
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (p *photoStore) RenameBulk(ctx context.Context, userID string, renames []database.PhotoRename) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var modified int64
	now := p.Now()
	for _, r := range renames {
		photo, ok := p.photos[r.ID]
		if !ok || photo.UserID != userID {
			continue
		}
		photo.FileName = r.NewName
		photo.SearchName = models.NormalizeSearchName(r.NewName)
		photo.UpdatedAt = now
		modified++
	}
	return modified, nil
}

func (p *photoStore) Delete(ctx context.Context, userID string, id primitive.ObjectID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if photo, ok := p.photos[id]; ok && photo.UserID == userID {
		delete(p.photos, id)
	}
	return nil
}

func (p *photoStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, photo := range p.photos {
		if photo.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- jobStore ---

type jobStore Store

func (j *jobStore) Create(ctx context.Context, job *models.Job) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = j.Now()
	}
	cp := *job
	j.jobs[job.ID] = &cp
	return nil
}

func (j *jobStore) GetByIDForUser(ctx context.Context, id primitive.ObjectID, userID string) (*models.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok || job.UserID != userID {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (j *jobStore) FindActiveByUser(ctx context.Context, userID string) (*models.Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, job := range j.jobs {
		if job.UserID == userID &&
			(job.Status == models.JobStatusPending || job.Status == models.JobStatusProcessing) {
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (j *jobStore) MarkProcessing(ctx context.Context, id primitive.ObjectID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		now := j.Now()
		job.Status = models.JobStatusProcessing
		job.StartedAt = &now
	}
	return nil
}

func (j *jobStore) UpdateProgress(ctx context.Context, id primitive.ObjectID, processedItems, progress int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		job.ProcessedItems = processedItems
		job.Progress = progress
	}
	return nil
}

func (j *jobStore) Complete(ctx context.Context, id primitive.ObjectID, output bson.M) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		now := j.Now()
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		job.CompletedAt = &now
		if output != nil {
			job.OutputData = output
		}
	}
	return nil
}

func (j *jobStore) Fail(ctx context.Context, id primitive.ObjectID, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if job, ok := j.jobs[id]; ok {
		now := j.Now()
		job.Status = models.JobStatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &now
	}
	return nil
}

func (j *jobStore) FailStuck(ctx context.Context, threshold time.Duration, message string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.FailStuckErr != nil {
		return 0, j.FailStuckErr
	}

	now := j.Now()
	cutoff := now.Add(-threshold)
	var count int64
	for _, job := range j.jobs {
		if job.Status == models.JobStatusPending && job.CreatedAt.Before(cutoff) {
			job.Status = models.JobStatusFailed
			job.ErrorMessage = message
			completed := now
			job.CompletedAt = &completed
			count++
		}
	}
	return count, nil
}

// --- historyStore ---

type historyStore Store

func (h *historyStore) Create(ctx context.Context, entry *models.RenameHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = h.Now()
	}
	cp := *entry
	cp.Pairs = append([]models.RenamePair(nil), entry.Pairs...)
	h.history = append(h.history, &cp)
	return nil
}

func (h *historyStore) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.RenameHistory, int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var matched []models.RenameHistory
	for _, e := range h.history {
		if e.UserID == userID {
			matched = append(matched, *e)
		}
	}
	// 最近的在前
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// --- errorLogStore ---

type errorLogStore Store

func (e *errorLogStore) Create(ctx context.Context, entry *models.ErrorLog) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = e.Now()
	}
	cp := *entry
	e.errorLogs = append(e.errorLogs, &cp)
	return nil
}

// ErrorLogCount 返回已写入的错误上报条数，测试断言用。
func (s *Store) ErrorLogCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errorLogs)
}
