package task

import (
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/rename"
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// jobTimeout 是单个重命名任务在后台允许运行的最长时间。
const jobTimeout = 10 * time.Minute

// Manager 是批量重命名任务的执行器。
// 任务行持久化在 jobs 集合中，状态查询接口和超时清理器读取的是同一份数据。
type Manager struct {
	db        database.Store
	engine    *rename.Engine
	batchSize int
}

// NewManager 创建并返回一个新的任务管理器实例。
func NewManager(db database.Store, engine *rename.Engine, batchSize int) *Manager {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Manager{
		db:        db,
		engine:    engine,
		batchSize: batchSize,
	}
}

// StartRenameJob 为一批照片创建重命名任务，并立即在后台启动它。
// 同一用户同时只允许一个未完成的任务，返回新任务的ID。
func (m *Manager) StartRenameJob(ctx context.Context, userID string, photoIDs []primitive.ObjectID, pattern rename.Pattern) (string, error) {
	if len(photoIDs) == 0 {
		return "", fmt.Errorf("没有需要重命名的照片")
	}

	active, err := m.db.Jobs().FindActiveByUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("检查进行中任务失败: %w", err)
	}
	if active != nil {
		return "", fmt.Errorf("另一个重命名任务正在进行中 (ID: %s)，请等待其完成后再试", active.ID.Hex())
	}

	photos, err := m.db.Photos().GetByIDs(ctx, userID, photoIDs)
	if err != nil {
		return "", fmt.Errorf("加载照片失败: %w", err)
	}
	if len(photos) == 0 {
		return "", fmt.Errorf("指定的照片均不存在")
	}

	ids := make(bson.A, 0, len(photos))
	for _, p := range photos {
		ids = append(ids, p.ID.Hex())
	}
	job := &models.Job{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		Type:       models.JobTypeBatchRename,
		Status:     models.JobStatusPending,
		TotalItems: len(photos),
		CreatedAt:  time.Now(),
		InputData: bson.M{
			"photoIds": ids,
			"pattern":  patternDoc(pattern),
		},
	}
	if err := m.db.Jobs().Create(ctx, job); err != nil {
		return "", fmt.Errorf("创建任务失败: %w", err)
	}

	go m.runRename(job, photos, pattern)

	return job.ID.Hex(), nil
}

// patternDoc 把模式配置转为任务行里可追溯的输入快照。
func patternDoc(p rename.Pattern) bson.M {
	return bson.M{
		"prefix":             p.Prefix,
		"suffix":             p.Suffix,
		"numberFormat":       string(p.NumberFormat),
		"startNumber":        p.StartNumber,
		"caseTransform":      string(p.CaseTransform),
		"separator":          p.Separator,
		"removeSpaces":       p.RemoveSpaces,
		"removeSpecialChars": p.RemoveSpecialChars,
	}
}

// runRename 在后台执行具体的重命名工作。
func (m *Manager) runRename(job *models.Job, photos []models.Photo, pattern rename.Pattern) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := m.db.Jobs().MarkProcessing(ctx, job.ID); err != nil {
		slog.Error("任务无法进入处理状态", "jobId", job.ID.Hex(), "error", err)
		return
	}
	slog.Info("重命名任务启动", "jobId", job.ID.Hex(), "userId", job.UserID, "照片数", len(photos))

	// 先为整批照片计算新名字，再分批写入数据库
	pairs := make([]models.RenamePair, 0, len(photos))
	renames := make([]database.PhotoRename, 0, len(photos))
	for i, photo := range photos {
		file := rename.File{Name: photo.FileName, LastModified: photo.LastModified}
		newName := m.engine.GenerateNewName(file, i, pattern)
		pairs = append(pairs, models.RenamePair{OldName: photo.FileName, NewName: newName})
		renames = append(renames, database.PhotoRename{ID: photo.ID, NewName: newName})
	}

	var renamed int64
	processed := 0
	for start := 0; start < len(renames); start += m.batchSize {
		end := start + m.batchSize
		if end > len(renames) {
			end = len(renames)
		}

		count, err := m.db.Photos().RenameBulk(ctx, job.UserID, renames[start:end])
		if err != nil {
			m.failJob(ctx, job, fmt.Sprintf("批量重命名失败: %v", err))
			return
		}
		renamed += count

		processed = end
		progress := processed * 100 / len(renames)
		if err := m.db.Jobs().UpdateProgress(ctx, job.ID, processed, progress); err != nil {
			slog.Warn("更新任务进度失败", "jobId", job.ID.Hex(), "error", err)
		}
	}

	// 任务成功后追加一条历史记录。历史写入失败不影响任务结果，
	// 照片改名已经持久化。
	history := &models.RenameHistory{
		UserID: job.UserID,
		Action: fmt.Sprintf("批量重命名 %d 个文件", len(pairs)),
		Pairs:  pairs,
	}
	if err := m.db.History().Create(ctx, history); err != nil {
		slog.Warn("写入重命名历史失败", "jobId", job.ID.Hex(), "error", err)
	}

	output := bson.M{"renamed": renamed, "historyId": history.ID.Hex()}
	if err := m.db.Jobs().Complete(ctx, job.ID, output); err != nil {
		slog.Error("标记任务完成失败", "jobId", job.ID.Hex(), "error", err)
		return
	}
	slog.Info("重命名任务完成", "jobId", job.ID.Hex(), "改名数", renamed)
}

func (m *Manager) failJob(ctx context.Context, job *models.Job, message string) {
	slog.Error("重命名任务失败", "jobId", job.ID.Hex(), "原因", message)
	if err := m.db.Jobs().Fail(ctx, job.ID, message); err != nil {
		slog.Error("标记任务失败时出错", "jobId", job.ID.Hex(), "error", err)
	}
}
