package task

import (
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database/memory"
	"PhotoFlow_Manager/pkg/rename"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedPhotos(t *testing.T, store *memory.Store, userID string, names ...string) []primitive.ObjectID {
	t.Helper()
	photos := make([]*models.Photo, 0, len(names))
	for _, name := range names {
		photos = append(photos, &models.Photo{
			UserID:       userID,
			FileName:     name,
			OriginalName: name,
			LastModified: time.Now(),
		})
	}
	ids, err := store.Photos().CreateBatch(context.Background(), photos)
	require.NoError(t, err)
	return ids
}

func waitForJob(t *testing.T, store *memory.Store, jobID primitive.ObjectID, userID string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := store.Jobs().GetByIDForUser(context.Background(), jobID, userID)
		if err != nil || j == nil {
			return false
		}
		if j.Status != models.JobStatusCompleted && j.Status != models.JobStatusFailed {
			return false
		}
		job = j
		return true
	}, 5*time.Second, 10*time.Millisecond, "任务没有在预期时间内结束")
	return job
}

func TestStartRenameJob_CompletesAndRenames(t *testing.T) {
	store := memory.NewStore()
	ids := seedPhotos(t, store, "u1", "a.jpg", "b.jpg", "c.jpg")

	m := NewManager(store, rename.NewEngine(), 2)
	pattern := rename.Pattern{
		Prefix:       "trip",
		NumberFormat: rename.NumberSequential,
		StartNumber:  1,
		Separator:    "-",
	}

	jobIDHex, err := m.StartRenameJob(context.Background(), "u1", ids, pattern)
	require.NoError(t, err)
	jobID, err := primitive.ObjectIDFromHex(jobIDHex)
	require.NoError(t, err)

	job := waitForJob(t, store, jobID, "u1")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 3, job.TotalItems)
	assert.Equal(t, 3, job.ProcessedItems)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	// 照片的文件名已经按模式更新
	photos, err := store.Photos().GetByIDs(context.Background(), "u1", ids)
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, p := range photos {
		names[p.FileName] = true
	}
	assert.True(t, names["trip-001.jpg"])
	assert.True(t, names["trip-002.jpg"])
	assert.True(t, names["trip-003.jpg"])

	// 任务成功后留下一条重命名历史
	entries, total, err := store.History().ListByUser(context.Background(), "u1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Pairs, 3)
}

func TestStartRenameJob_RejectsConcurrentJob(t *testing.T) {
	store := memory.NewStore()
	ids := seedPhotos(t, store, "u1", "a.jpg")

	// 预置一个仍在 pending 的任务
	require.NoError(t, store.Jobs().Create(context.Background(), &models.Job{
		UserID: "u1",
		Type:   models.JobTypeBatchRename,
		Status: models.JobStatusPending,
	}))

	m := NewManager(store, rename.NewEngine(), 10)
	_, err := m.StartRenameJob(context.Background(), "u1", ids, rename.Pattern{NumberFormat: rename.NumberNone})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "正在进行中")
}

func TestStartRenameJob_RejectsEmptyAndForeignPhotos(t *testing.T) {
	store := memory.NewStore()
	m := NewManager(store, rename.NewEngine(), 10)

	_, err := m.StartRenameJob(context.Background(), "u1", nil, rename.Pattern{})
	require.Error(t, err)

	// 照片属于他人时等同于不存在
	foreign := seedPhotos(t, store, "u2", "theirs.jpg")
	_, err = m.StartRenameJob(context.Background(), "u1", foreign, rename.Pattern{})
	require.Error(t, err)
}
