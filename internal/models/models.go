package models

import (
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeSearchName 把文件名转写为小写拉丁形式，供搜索索引使用。
func NormalizeSearchName(name string) string {
	return strings.ToLower(unidecode.Unidecode(name))
}

// Timestamps 结构体嵌入到其他模型中，用于追踪创建和更新时间。
type Timestamps struct {
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Photo 代表用户上传的一张照片，对应MongoDB中的一个文档。
type Photo struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	// UserID 标识照片的拥有者。所有查询都必须带上此字段，
	// 以保证不同用户的数据彼此不可见。
	UserID string `bson:"userId" json:"userId"`

	// FileName 是照片当前的文件名，批量重命名会更新此字段。
	FileName string `bson:"fileName" json:"fileName"`

	// SearchName 是 FileName 的小写拉丁转写，用于对变音符号不敏感的搜索。
	// 创建和重命名时都必须通过 NormalizeSearchName 重新计算。
	SearchName string `bson:"searchName" json:"-"`

	// OriginalName 保留上传时的原始文件名，重命名不会改动它。
	OriginalName string `bson:"originalName" json:"originalName"`

	// FilePath 是文件在照片库中的完整存储路径。
	FilePath string `bson:"filePath" json:"-"`

	// FileHash 是文件内容的 SHA-256 哈希，用于同一用户内的精确去重。
	FileHash string `bson:"fileHash" json:"fileHash"`

	// PerceptualHash 是图片的感知哈希，用于查找视觉上相似的照片。
	PerceptualHash string `bson:"perceptualHash" json:"-"`

	// Size 是文件的字节大小。
	Size int64 `bson:"size" json:"size"`

	// Width / Height 是像素尺寸，解码失败时为 0。
	Width  int `bson:"width,omitempty" json:"width,omitempty"`
	Height int `bson:"height,omitempty" json:"height,omitempty"`

	// Thumbnail 存储Base64编码的缩略图，供仪表盘列表直接展示。
	Thumbnail string `bson:"thumbnail" json:"thumbnail"`

	// LastModified 是文件在客户端的最后修改时间，timestamp 命名模式会用到。
	LastModified time.Time `bson:"lastModified" json:"lastModified"`

	Timestamps
}

// JobStatus 定义了后台任务可能的状态。
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobTypeBatchRename 是目前唯一的任务类型：服务端批量重命名。
const JobTypeBatchRename = "batch_rename"

// Job 代表一个服务端追踪的长耗时任务，对应 jobs 集合中的一个文档。
// 任务行由任务执行器写入，状态查询接口与超时清理器只读取/批量修改它。
type Job struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID string             `bson:"userId" json:"-"`
	Type   string             `bson:"type" json:"type"`

	Status JobStatus `bson:"status" json:"status"`

	// Progress 是 0 到 100 的百分比进度。
	Progress       int `bson:"progress" json:"progress"`
	TotalItems     int `bson:"totalItems" json:"totalItems"`
	ProcessedItems int `bson:"processedItems" json:"processedItems"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	StartedAt   *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	ErrorMessage string `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`

	// InputData / OutputData 是任务的输入参数和产出结果，结构由任务类型自行约定。
	InputData  bson.M `bson:"inputData,omitempty" json:"inputData,omitempty"`
	OutputData bson.M `bson:"outputData,omitempty" json:"outputData,omitempty"`
}

// RenamePair 记录一次重命名中单个文件的新旧名字。
type RenamePair struct {
	OldName string `bson:"oldName" json:"oldName"`
	NewName string `bson:"newName" json:"newName"`
}

// RenameHistory 代表一次已提交的批量重命名，对应 rename_history 集合中的一个文档。
// 条目只增不改：本子系统创建之后不会再修改或删除它。
type RenameHistory struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"-"`
	Action    string             `bson:"action" json:"action"`
	Pairs     []RenamePair       `bson:"pairs" json:"pairs"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ErrorLog 是前端错误上报协作方写入的一行记录。
type ErrorLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"userId" json:"-"`
	Operation string             `bson:"operation" json:"operation"`
	ErrorType string             `bson:"errorType" json:"errorType"`
	Severity  string             `bson:"severity,omitempty" json:"severity,omitempty"`
	FileInfo  string             `bson:"fileInfo,omitempty" json:"fileInfo,omitempty"`
	Context   string             `bson:"context,omitempty" json:"context,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
