package maintenance

import (
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database/memory"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaintenance(t *testing.T, store *memory.Store) Maintenance {
	t.Helper()
	m, err := NewMaintenance(t.TempDir(), store, 10*time.Minute, 1)
	require.NoError(t, err)
	return m
}

func createJob(t *testing.T, store *memory.Store, status models.JobStatus, age time.Duration) *models.Job {
	t.Helper()
	job := &models.Job{
		UserID:    "u1",
		Type:      models.JobTypeBatchRename,
		Status:    status,
		CreatedAt: time.Now().Add(-age),
	}
	require.NoError(t, store.Jobs().Create(context.Background(), job))
	return job
}

func TestReapStuckJobs_FailsOnlyOldPending(t *testing.T) {
	store := memory.NewStore()
	m := newTestMaintenance(t, store)

	stuck := createJob(t, store, models.JobStatusPending, 20*time.Minute)
	fresh := createJob(t, store, models.JobStatusPending, time.Minute)
	running := createJob(t, store, models.JobStatusProcessing, 30*time.Minute)

	count, err := m.ReapStuckJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Jobs().GetByIDForUser(context.Background(), stuck.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, StuckJobMessage, got.ErrorMessage)
	require.NotNil(t, got.CompletedAt, "被清理的任务必须带有完成时间戳")

	// 刚创建的 pending 任务和处理中的任务不受影响
	got, _ = store.Jobs().GetByIDForUser(context.Background(), fresh.ID, "u1")
	assert.Equal(t, models.JobStatusPending, got.Status)
	got, _ = store.Jobs().GetByIDForUser(context.Background(), running.ID, "u1")
	assert.Equal(t, models.JobStatusProcessing, got.Status)
}

func TestReapStuckJobs_Idempotent(t *testing.T) {
	store := memory.NewStore()
	m := newTestMaintenance(t, store)

	createJob(t, store, models.JobStatusPending, 20*time.Minute)

	count, err := m.ReapStuckJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 没有新的滞留任务时，第二次清理必须影响 0 行
	count, err = m.ReapStuckJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReapStuckJobs_BulkFailureAbortsWholeSweep(t *testing.T) {
	store := memory.NewStore()
	store.FailStuckErr = errors.New("数据库不可用")
	m := newTestMaintenance(t, store)

	createJob(t, store, models.JobStatusPending, 20*time.Minute)

	count, err := m.ReapStuckJobs(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), count)
}
