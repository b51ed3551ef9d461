package ingest

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/internal/models"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/hasher"
	"PhotoFlow_Manager/pkg/thumbnailer"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const ingestLogFileName = "ingest.log"

// UploadFile 是一个待入库的上传文件。
type UploadFile struct {
	Name         string
	Data         []byte
	LastModified time.Time
}

// Summary 汇总一次批量入库的结果。
type Summary struct {
	Ingested   int            `json:"ingested"`
	Duplicates int            `json:"duplicates"`
	Failed     int            `json:"failed"`
	Photos     []models.Photo `json:"photos"`
}

// PhotoIngestor 定义了照片入库器的行为接口。
type PhotoIngestor interface {
	IngestBatch(ctx context.Context, userID string, files []UploadFile) (*Summary, error)
	Close()
}

type imageIngestor struct {
	db         database.Store
	logger     *log.Logger
	logFile    *os.File
	numWorkers int
	cfg        config.UploadsConfig
}

// NewIngestor 创建一个新的入库器实例。
// 与其他流水线模块一样，入库器把详细日志写入 logDir 下的独立文件。
func NewIngestor(logDir string, db database.Store, cfg config.UploadsConfig, workerCount int) (PhotoIngestor, error) {
	logFilePath := filepath.Join(logDir, ingestLogFileName)
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("无法初始化入库器日志: %w", err)
	}
	logger := log.New(file, "INGEST: ", log.LstdFlags|log.Lshortfile)

	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	return &imageIngestor{
		db:         db,
		logger:     logger,
		logFile:    file,
		numWorkers: workerCount,
		cfg:        cfg,
	}, nil
}

func (m *imageIngestor) Close() {
	if m.logFile != nil {
		m.logger.Println("================== 入库器关闭，关闭日志文件 ==================")
		m.logFile.Close()
	}
}

// ingestResult 是单个文件经过工人处理后的结果。
type ingestResult struct {
	photo     *models.Photo
	duplicate bool
	err       error
	name      string
}

// IngestBatch 并发处理一批上传文件：解码、计算哈希与缩略图、
// 按内容哈希去重，最后把新照片批量写入数据库。
func (m *imageIngestor) IngestBatch(ctx context.Context, userID string, files []UploadFile) (*Summary, error) {
	m.logger.Printf("================== 新的入库任务开始 (用户: %s, 文件数: %d) ==================", userID, len(files))

	userDir := filepath.Join(m.cfg.LibraryPath, userID)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		return nil, fmt.Errorf("无法创建用户照片目录: %w", err)
	}

	tasks := make(chan UploadFile, m.numWorkers)
	results := make(chan ingestResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < m.numWorkers; i++ {
		wg.Add(1)
		go m.ingestWorker(ctx, &wg, userID, userDir, tasks, results)
	}

	for _, f := range files {
		tasks <- f
	}
	close(tasks)
	wg.Wait()
	close(results)

	summary := &Summary{}
	var newPhotos []*models.Photo
	for res := range results {
		switch {
		case res.err != nil:
			m.logger.Printf("警告: 处理文件 %s 失败: %v", res.name, res.err)
			summary.Failed++
		case res.duplicate:
			m.logger.Printf("跳过重复文件: %s", res.name)
			summary.Duplicates++
		default:
			newPhotos = append(newPhotos, res.photo)
		}
	}

	if len(newPhotos) > 0 {
		if _, err := m.db.Photos().CreateBatch(ctx, newPhotos); err != nil {
			m.logger.Printf("错误: 批量写入照片元数据失败: %v", err)
			summary.Failed += len(newPhotos)
			return summary, fmt.Errorf("批量写入照片元数据失败: %w", err)
		}
		for _, p := range newPhotos {
			summary.Photos = append(summary.Photos, *p)
		}
		summary.Ingested = len(newPhotos)
	}

	m.logger.Printf("--- 入库完成: 新增 %d, 重复 %d, 失败 %d ---", summary.Ingested, summary.Duplicates, summary.Failed)
	return summary, nil
}

// ingestWorker 处理单个上传文件的解码、哈希、缩略图和落盘。
func (m *imageIngestor) ingestWorker(ctx context.Context, wg *sync.WaitGroup, userID, userDir string, tasks <-chan UploadFile, results chan<- ingestResult) {
	defer wg.Done()
	for f := range tasks {
		results <- m.processOne(ctx, userID, userDir, f)
	}
}

func (m *imageIngestor) processOne(ctx context.Context, userID, userDir string, f UploadFile) ingestResult {
	img, width, height, err := thumbnailer.Decode(f.Data)
	if err != nil {
		return ingestResult{name: f.Name, err: fmt.Errorf("图片解码失败: %w", err)}
	}

	fileHash := hasher.CalculateSHA256FromBytes(f.Data)

	// 同一用户内按内容哈希去重
	existing, err := m.db.Photos().GetByFileHash(ctx, userID, fileHash)
	if err != nil {
		return ingestResult{name: f.Name, err: fmt.Errorf("去重查询失败: %w", err)}
	}
	if existing != nil {
		return ingestResult{name: f.Name, duplicate: true}
	}

	thumbnail, err := thumbnailer.CreateBase64(img, m.cfg.ThumbnailWidth, m.cfg.ThumbnailHeight)
	if err != nil {
		return ingestResult{name: f.Name, err: fmt.Errorf("生成缩略图失败: %w", err)}
	}

	filePath := filepath.Join(userDir, f.Name)
	if err := os.WriteFile(filePath, f.Data, 0644); err != nil {
		return ingestResult{name: f.Name, err: fmt.Errorf("写入照片文件失败: %w", err)}
	}

	lastModified := f.LastModified
	if lastModified.IsZero() {
		lastModified = time.Now()
	}

	photo := &models.Photo{
		UserID:         userID,
		FileName:       f.Name,
		OriginalName:   f.Name,
		SearchName:     models.NormalizeSearchName(f.Name),
		FilePath:       filePath,
		FileHash:       fileHash,
		PerceptualHash: hasher.CalculatePerceptualHashFromImage(img),
		Size:           int64(len(f.Data)),
		Width:          width,
		Height:         height,
		Thumbnail:      thumbnail,
		LastModified:   lastModified,
	}
	return ingestResult{photo: photo, name: f.Name}
}
