package database

import (
	"PhotoFlow_Manager/internal/models"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store 是一个顶层接口，它组合了所有特定数据模型的存储接口。
type Store interface {
	Photos() PhotoStore
	Jobs() JobStore
	History() HistoryStore
	ErrorLogs() ErrorLogStore
	EnsureIndexes(ctx context.Context) error
	DropAllCollections(ctx context.Context) error
}

// ListQuery 是照片列表查询的参数。
// Search 为空表示不过滤；SortBy ∈ {name,date,size}；SortOrder ∈ {asc,desc}。
type ListQuery struct {
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// PhotoRename 是批量重命名中单张照片的目标名字。
type PhotoRename struct {
	ID      primitive.ObjectID
	NewName string
}

// PhotoStore 定义了所有与 Photo 模型相关的数据库操作。
// 每个方法都以 userID 限定范围，跨用户的数据互不可见。
type PhotoStore interface {
	CreateBatch(ctx context.Context, photos []*models.Photo) ([]primitive.ObjectID, error)
	GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Photo, error)
	GetByIDs(ctx context.Context, userID string, ids []primitive.ObjectID) ([]models.Photo, error)
	GetByFileHash(ctx context.Context, userID, fileHash string) (*models.Photo, error)
	List(ctx context.Context, userID string, q ListQuery) ([]models.Photo, int64, error)
	RenameBulk(ctx context.Context, userID string, renames []PhotoRename) (int64, error)
	Delete(ctx context.Context, userID string, id primitive.ObjectID) error
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// JobStore 定义了后台任务行的读写操作。
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error

	// GetByIDForUser 查询同时匹配任务ID和拥有者的任务。
	// 任务不存在和任务属于他人返回完全相同的 (nil, nil)，调用方无法区分两者。
	GetByIDForUser(ctx context.Context, id primitive.ObjectID, userID string) (*models.Job, error)

	// FindActiveByUser 返回该用户处于 pending/processing 状态的任务，没有则 (nil, nil)。
	FindActiveByUser(ctx context.Context, userID string) (*models.Job, error)

	MarkProcessing(ctx context.Context, id primitive.ObjectID) error
	UpdateProgress(ctx context.Context, id primitive.ObjectID, processedItems, progress int) error
	Complete(ctx context.Context, id primitive.ObjectID, output bson.M) error
	Fail(ctx context.Context, id primitive.ObjectID, message string) error

	// FailStuck 把创建时间早于 now-threshold 且仍为 pending 的任务
	// 全部置为 failed。整个清理是一条条件批量更新，返回受影响的行数；
	// 更新失败时整体中止并返回 0。
	FailStuck(ctx context.Context, threshold time.Duration, message string) (int64, error)
}

// HistoryStore 定义了重命名历史的存储操作。历史只增不改。
type HistoryStore interface {
	Create(ctx context.Context, entry *models.RenameHistory) error
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.RenameHistory, int64, error)
}

// ErrorLogStore 接收前端错误上报。
type ErrorLogStore interface {
	Create(ctx context.Context, entry *models.ErrorLog) error
}
