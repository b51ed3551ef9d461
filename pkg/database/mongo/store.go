package mongo

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store 是 database.Store 接口的MongoDB实现。
type Store struct {
	db        *mongo.Database
	photos    *photoStore
	jobs      *jobStore
	history   *historyStore
	errorLogs *errorLogStore
}

// 确保 Store 实现了 database.Store 接口 (编译时检查)
var _ database.Store = (*Store)(nil)

// photoStore 封装了与 "photos" 集合相关的所有操作。
type photoStore struct {
	coll *mongo.Collection
}

// jobStore 封装了与 "jobs" 集合相关的所有操作。
type jobStore struct {
	coll *mongo.Collection
}

// historyStore 封装了与 "rename_history" 集合相关的所有操作。
type historyStore struct {
	coll *mongo.Collection
}

// errorLogStore 封装了与 "error_logs" 集合相关的所有操作。
type errorLogStore struct {
	coll *mongo.Collection
}

// NewStore 创建并返回一个新的 Store 实例，并建立与MongoDB的连接。
func NewStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	slog.Info("正在连接到 MongoDB...", "uri", cfg.Database.URI)
	clientCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.Database.URI)
	client, err := mongo.Connect(clientCtx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(clientCtx, nil); err != nil {
		return nil, err
	}
	slog.Info("MongoDB 连接成功")

	db := client.Database(cfg.Database.Name)
	store := &Store{
		db:        db,
		photos:    &photoStore{coll: db.Collection("photos")},
		jobs:      &jobStore{coll: db.Collection("jobs")},
		history:   &historyStore{coll: db.Collection("rename_history")},
		errorLogs: &errorLogStore{coll: db.Collection("error_logs")},
	}
	return store, nil
}

func (s *Store) Photos() database.PhotoStore {
	return s.photos
}

func (s *Store) Jobs() database.JobStore {
	return s.jobs
}

func (s *Store) History() database.HistoryStore {
	return s.history
}

func (s *Store) ErrorLogs() database.ErrorLogStore {
	return s.errorLogs
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	slog.Info("正在确保数据库索引存在...")

	photoIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "fileName", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_userid_filename_unique"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "fileHash", Value: 1}},
			Options: options.Index().SetName("idx_userid_filehash"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "searchName", Value: 1}},
			Options: options.Index().SetName("idx_userid_searchname"),
		},
		{
			Keys:    bson.D{{Key: "perceptualHash", Value: 1}},
			Options: options.Index().SetName("idx_phash"),
		},
	}
	if _, err := s.photos.coll.Indexes().CreateMany(ctx, photoIndexes); err != nil {
		slog.Error("为 photos 集合创建索引失败", "error", err)
		return err
	}
	slog.Info("Photos 集合索引已验证/创建。")

	jobIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_userid_status"),
		},
		{
			// 超时清理器按 (status, createdAt) 扫描
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_status_createdat"),
		},
	}
	if _, err := s.jobs.coll.Indexes().CreateMany(ctx, jobIndexes); err != nil {
		slog.Error("为 jobs 集合创建索引失败", "error", err)
		return err
	}
	slog.Info("Jobs 集合索引已验证/创建。")

	historyIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_userid_createdat"),
		},
	}
	if _, err := s.history.coll.Indexes().CreateMany(ctx, historyIndexes); err != nil {
		slog.Error("为 rename_history 集合创建索引失败", "error", err)
		return err
	}

	errorLogIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_userid_createdat"),
		},
	}
	if _, err := s.errorLogs.coll.Indexes().CreateMany(ctx, errorLogIndexes); err != nil {
		slog.Error("为 error_logs 集合创建索引失败", "error", err)
		return err
	}
	slog.Info("History / ErrorLogs 集合索引已验证/创建。")
	return nil
}

func (s *Store) DropAllCollections(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{
		s.photos.coll, s.jobs.coll, s.history.coll, s.errorLogs.coll,
	} {
		if err := coll.Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// --- photoStore 方法实现 ---

func (p *photoStore) CreateBatch(ctx context.Context, photos []*models.Photo) ([]primitive.ObjectID, error) {
	if len(photos) == 0 {
		return nil, nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(photos))
	for _, photo := range photos {
		photo.CreatedAt = now
		photo.UpdatedAt = now
		if photo.SearchName == "" {
			photo.SearchName = models.NormalizeSearchName(photo.FileName)
		}
		docs = append(docs, photo)
	}

	res, err := p.coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok {
			ids = append(ids, oid)
		}
	}
	return ids, nil
}

func (p *photoStore) GetByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Photo, error) {
	var photo models.Photo
	err := p.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &photo, nil
}

func (p *photoStore) GetByIDs(ctx context.Context, userID string, ids []primitive.ObjectID) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := p.coll.Find(ctx, bson.M{
		"_id":    bson.M{"$in": ids},
		"userId": userID,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var photos []models.Photo
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

func (p *photoStore) GetByFileHash(ctx context.Context, userID, fileHash string) (*models.Photo, error) {
	var photo models.Photo
	err := p.coll.FindOne(ctx, bson.M{"userId": userID, "fileHash": fileHash}).Decode(&photo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &photo, nil
}

// sortFieldMap 把对外的排序字段名映射到集合中的实际字段。
var sortFieldMap = map[string]string{
	"name": "fileName",
	"date": "lastModified",
	"size": "size",
}

// List 按用户返回照片列表，支持搜索、排序和分页。
// 搜索词先做小写拉丁转写，再与 searchName 字段做前缀无关的正则匹配。
func (p *photoStore) List(ctx context.Context, userID string, q database.ListQuery) ([]models.Photo, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}

	filter := bson.M{"userId": userID}
	if q.Search != "" {
		normalized := models.NormalizeSearchName(q.Search)
		filter["searchName"] = bson.M{"$regex": regexp.QuoteMeta(normalized)}
	}

	total, err := p.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortField, ok := sortFieldMap[q.SortBy]
	if !ok {
		sortField = "fileName"
	}
	sortDir := 1
	if q.SortOrder == "desc" {
		sortDir = -1
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortDir}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cursor, err := p.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var photos []models.Photo
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, 0, err
	}
	return photos, total, nil
}

// RenameBulk 在一次 BulkWrite 中更新一批照片的文件名。
// 过滤条件同时带上 userId，他人的照片即便混入ID列表也不会被改动。
func (p *photoStore) RenameBulk(ctx context.Context, userID string, renames []database.PhotoRename) (int64, error) {
	if len(renames) == 0 {
		return 0, nil
	}

	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(renames))
	for _, r := range renames {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": r.ID, "userId": userID}).
			SetUpdate(bson.M{"$set": bson.M{
				"fileName":   r.NewName,
				"searchName": models.NormalizeSearchName(r.NewName),
				"updatedAt":  now,
			}}))
	}

	res, err := p.coll.BulkWrite(ctx, writes)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (p *photoStore) Delete(ctx context.Context, userID string, id primitive.ObjectID) error {
	_, err := p.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	return err
}

func (p *photoStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	return p.coll.CountDocuments(ctx, bson.M{"userId": userID})
}

// --- jobStore 方法实现 ---

func (j *jobStore) Create(ctx context.Context, job *models.Job) error {
	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	_, err := j.coll.InsertOne(ctx, job)
	return err
}

// GetByIDForUser 在同一个过滤条件里同时匹配任务ID和拥有者，
// "任务不存在"和"任务属于他人"在此处合并为同一个结果，避免存在性泄露。
func (j *jobStore) GetByIDForUser(ctx context.Context, id primitive.ObjectID, userID string) (*models.Job, error) {
	var job models.Job
	err := j.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (j *jobStore) FindActiveByUser(ctx context.Context, userID string) (*models.Job, error) {
	var job models.Job
	filter := bson.M{
		"userId": userID,
		"status": bson.M{"$in": bson.A{models.JobStatusPending, models.JobStatusProcessing}},
	}
	err := j.coll.FindOne(ctx, filter).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (j *jobStore) MarkProcessing(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	_, err := j.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":    models.JobStatusProcessing,
		"startedAt": now,
	}})
	return err
}

func (j *jobStore) UpdateProgress(ctx context.Context, id primitive.ObjectID, processedItems, progress int) error {
	_, err := j.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"processedItems": processedItems,
		"progress":       progress,
	}})
	return err
}

func (j *jobStore) Complete(ctx context.Context, id primitive.ObjectID, output bson.M) error {
	now := time.Now()
	update := bson.M{
		"status":      models.JobStatusCompleted,
		"progress":    100,
		"completedAt": now,
	}
	if output != nil {
		update["outputData"] = output
	}
	_, err := j.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

func (j *jobStore) Fail(ctx context.Context, id primitive.ObjectID, message string) error {
	now := time.Now()
	_, err := j.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":       models.JobStatusFailed,
		"errorMessage": message,
		"completedAt":  now,
	}})
	return err
}

// FailStuck 是超时清理器的核心：一条条件批量更新完成全部状态迁移。
// 没有逐条处理，也就没有部分成功——更新失败时整个清理按失败处理，返回 0。
func (j *jobStore) FailStuck(ctx context.Context, threshold time.Duration, message string) (int64, error) {
	now := time.Now()
	filter := bson.M{
		"status":    models.JobStatusPending,
		"createdAt": bson.M{"$lt": now.Add(-threshold)},
	}
	update := bson.M{"$set": bson.M{
		"status":       models.JobStatusFailed,
		"errorMessage": message,
		"completedAt":  now,
	}}

	res, err := j.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// --- historyStore 方法实现 ---

func (h *historyStore) Create(ctx context.Context, entry *models.RenameHistory) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := h.coll.InsertOne(ctx, entry)
	return err
}

func (h *historyStore) ListByUser(ctx context.Context, userID string, page, limit int) ([]models.RenameHistory, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	filter := bson.M{"userId": userID}
	total, err := h.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := h.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []models.RenameHistory
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// --- errorLogStore 方法实现 ---

func (e *errorLogStore) Create(ctx context.Context, entry *models.ErrorLog) error {
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := e.coll.InsertOne(ctx, entry)
	return err
}
