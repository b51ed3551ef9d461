// 文件: internal/api/handlers.go
package api

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/internal/task"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/ingest"
	"PhotoFlow_Manager/pkg/maintenance"
	"PhotoFlow_Manager/pkg/rename"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// errorReportsPerMinute 是错误上报协作方的每用户频率上限。
const errorReportsPerMinute = 10

// APIHandlers 持有所有依赖
type APIHandlers struct {
	taskManager  *task.Manager
	db           database.Store
	ingestor     ingest.PhotoIngestor
	maint        maintenance.Maintenance
	errorLimiter *userRateLimiter
}

// NewAPIHandlers 创建一个新的API处理器实例
func NewAPIHandlers(tm *task.Manager, db database.Store, ing ingest.PhotoIngestor, maint maintenance.Maintenance) *APIHandlers {
	return &APIHandlers{
		taskManager:  tm,
		db:           db,
		ingestor:     ing,
		maint:        maint,
		errorLimiter: newUserRateLimiter(errorReportsPerMinute),
	}
}

// --- 辅助函数 ---

// respondJSON 辅助函数，用于统一返回JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError 辅助函数，用于统一返回错误信息
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{"success": false, "error": message})
}

// --- 任务处理器 ---

// jobStatusView 是任务状态接口返回的任务投影，
// 在存储的任务行之上附加两个派生字段。
type jobStatusView struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	Progress       int         `json:"progress"`
	TotalItems     int         `json:"totalItems"`
	ProcessedItems int         `json:"processedItems"`
	CreatedAt      time.Time   `json:"createdAt"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	InputData      interface{} `json:"inputData,omitempty"`
	OutputData     interface{} `json:"outputData,omitempty"`

	// Duration 是任务的总耗时（整秒），开始和完成时间都存在时才有值。
	Duration *int64 `json:"duration,omitempty"`
	// EstimatedTimeRemaining 只在任务处理中且进度大于 0 时估算（秒）。
	EstimatedTimeRemaining *int64 `json:"estimatedTimeRemaining,omitempty"`
}

// HandleGetJobStatus 返回当前用户某个任务的完整状态。
// 不存在的任务和属于他人的任务返回完全一致的 404，调用方无法借此探测任务的存在性。
func (h *APIHandlers) HandleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	jobIDParam := r.URL.Query().Get("jobId")
	if jobIDParam == "" {
		respondError(w, http.StatusBadRequest, "缺少 'jobId' 查询参数")
		return
	}

	jobID, err := primitive.ObjectIDFromHex(jobIDParam)
	if err != nil {
		// 格式非法的ID等同于不存在的任务
		respondError(w, http.StatusNotFound, "找不到指定的任务")
		return
	}

	job, err := h.db.Jobs().GetByIDForUser(r.Context(), jobID, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "查询任务失败: "+err.Error())
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "找不到指定的任务")
		return
	}

	view := jobStatusView{
		ID:             job.ID.Hex(),
		Status:         string(job.Status),
		Progress:       job.Progress,
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		ErrorMessage:   job.ErrorMessage,
		InputData:      job.InputData,
		OutputData:     job.OutputData,
	}

	if job.StartedAt != nil && job.CompletedAt != nil {
		d := int64(job.CompletedAt.Sub(*job.StartedAt).Seconds())
		view.Duration = &d
	}
	if job.Status == "processing" && job.Progress > 0 && job.StartedAt != nil {
		elapsed := time.Since(*job.StartedAt).Seconds()
		eta := int64(math.Round(elapsed * float64(100-job.Progress) / float64(job.Progress)))
		view.EstimatedTimeRemaining = &eta
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job":     view,
	})
}

// HandleReapStuckJobs 触发一次滞留任务清理。无需任何输入参数。
func (h *APIHandlers) HandleReapStuckJobs(w http.ResponseWriter, r *http.Request) {
	count, err := h.maint.ReapStuckJobs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("已清理 %d 个超时任务", count),
	})
}

// HandleStartRenameJob 为一批照片创建后台重命名任务。
func (h *APIHandlers) HandleStartRenameJob(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var payload struct {
		PhotoIDs []string       `json:"photoIds"`
		Pattern  rename.Pattern `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	if len(payload.PhotoIDs) == 0 {
		respondError(w, http.StatusBadRequest, "缺少 'photoIds' 字段")
		return
	}

	photoIDs := make([]primitive.ObjectID, 0, len(payload.PhotoIDs))
	for _, idStr := range payload.PhotoIDs {
		id, err := primitive.ObjectIDFromHex(idStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "无效的照片ID: "+idStr)
			return
		}
		photoIDs = append(photoIDs, id)
	}

	jobID, err := h.taskManager.StartRenameJob(r.Context(), userID, photoIDs, payload.Pattern)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "jobId": jobID})
}

// --- 照片处理器 ---

// HandleUploadPhotos 接收multipart上传的一批照片并入库。
func (h *APIHandlers) HandleUploadPhotos(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	maxBytes := config.C.Uploads.MaxUploadMB << 20
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, http.StatusBadRequest, "无法解析表单: "+err.Error())
		return
	}

	fileHeaders := r.MultipartForm.File["photos"]
	if len(fileHeaders) == 0 {
		respondError(w, http.StatusBadRequest, "缺少 'photos' 文件字段")
		return
	}

	files := make([]ingest.UploadFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, "读取上传文件失败: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, "读取上传文件失败: "+err.Error())
			return
		}
		files = append(files, ingest.UploadFile{Name: fh.Filename, Data: data})
	}

	summary, err := h.ingestor.IngestBatch(r.Context(), userID, files)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "照片入库失败: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "summary": summary})
}

// HandleListPhotos 返回当前用户的照片列表，支持搜索、排序和分页。
func (h *APIHandlers) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	q := database.ListQuery{
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sortBy"),
		SortOrder: r.URL.Query().Get("sortOrder"),
		Page:      page,
		Limit:     limit,
	}

	photos, total, err := h.db.Photos().List(r.Context(), userID, q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "无法获取照片列表: "+err.Error())
		return
	}

	response := map[string]interface{}{
		"success": true,
		"data":    photos,
		"pagination": map[string]interface{}{
			"currentPage": page,
			"totalPages":  int(math.Ceil(float64(total) / float64(limit))),
			"totalItems":  total,
		},
	}
	respondJSON(w, http.StatusOK, response)
}

// HandleGetPhoto 返回单张照片的详情。
func (h *APIHandlers) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	photoID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "photoID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "无效的照片ID")
		return
	}

	photo, err := h.db.Photos().GetByID(r.Context(), userID, photoID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "查询照片失败: "+err.Error())
		return
	}
	if photo == nil {
		respondError(w, http.StatusNotFound, "找不到指定的照片")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "photo": photo})
}

// HandleDeletePhoto 删除当前用户的一张照片。
func (h *APIHandlers) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	photoID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "photoID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "无效的照片ID")
		return
	}

	if err := h.db.Photos().Delete(r.Context(), userID, photoID); err != nil {
		respondError(w, http.StatusInternalServerError, "删除照片失败: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// --- 历史处理器 ---

// HandleListHistory 返回当前用户的重命名历史，最近的在前。
func (h *APIHandlers) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, total, err := h.db.History().ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "无法获取重命名历史: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    entries,
		"total":   total,
	})
}

// --- 错误上报处理器 ---

// HandleLogError 接收前端的错误上报。每用户每分钟最多接受 10 条，超出返回 429。
func (h *APIHandlers) HandleLogError(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	if !h.errorLimiter.Allow(userID) {
		respondError(w, http.StatusTooManyRequests, "错误上报过于频繁，请稍后再试")
		return
	}

	var payload struct {
		Operation string `json:"operation"`
		ErrorType string `json:"errorType"`
		Severity  string `json:"severity"`
		FileInfo  string `json:"fileInfo"`
		Context   string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "无效的请求体: "+err.Error())
		return
	}
	if payload.Operation == "" || payload.ErrorType == "" {
		respondError(w, http.StatusBadRequest, "缺少 'operation' 或 'errorType' 字段")
		return
	}

	entry := &models.ErrorLog{
		UserID:    userID,
		Operation: payload.Operation,
		ErrorType: payload.ErrorType,
		Severity:  payload.Severity,
		FileInfo:  payload.FileInfo,
		Context:   payload.Context,
	}
	if err := h.db.ErrorLogs().Create(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "写入错误日志失败: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// --- 配置处理器 ---

// HandleGetConfig 获取当前应用配置
func (h *APIHandlers) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, config.C)
}

// HandleUpdateConfig 更新并保存应用配置
func (h *APIHandlers) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondError(w, http.StatusBadRequest, "无效的配置格式: "+err.Error())
		return
	}

	// 1. 将接收到的新配置数据序列化为YAML格式
	yamlData, err := yaml.Marshal(&newConfig)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "序列化配置为YAML失败: "+err.Error())
		return
	}

	// 2. 将YAML数据写入到 config.yaml 文件
	if err := os.WriteFile("config.yaml", yamlData, 0644); err != nil {
		respondError(w, http.StatusInternalServerError, "写入config.yaml文件失败: "+err.Error())
		return
	}

	// 3. 更新内存中的全局配置变量
	config.C = &newConfig

	respondJSON(w, http.StatusOK, config.C)
}
