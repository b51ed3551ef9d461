package maintenance

import (
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/hasher"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// StuckJobMessage 是被超时清理的任务统一获得的错误信息。
const StuckJobMessage = "任务排队超时：等待处理超过时限，已被系统标记为失败"

// Maintenance 定义了维护工具的接口。
type Maintenance interface {
	// ReapStuckJobs 把滞留在 pending 状态超过时限的任务批量置为失败，
	// 返回受影响的任务数。重复执行是幂等的：第二次没有新的滞留任务时返回 0。
	ReapStuckJobs(ctx context.Context) (int64, error)
	GenerateFileManifest(ctx context.Context, libraryPath, outputPath string) error
	BackupDatabase(ctx context.Context, dbURI, dbName, outputPath string) error
}

type defaultMaintenance struct {
	db             database.Store
	logger         *log.Logger
	logFile        *os.File
	numWorkers     int
	pendingTimeout time.Duration
}

// NewMaintenance 创建一个新的维护模块实例。
func NewMaintenance(logDir string, db database.Store, pendingTimeout time.Duration, workerCount int) (Maintenance, error) {
	logFilePath := filepath.Join(logDir, "maintenance.log")
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("无法初始化维护模块日志: %w", err)
	}
	logger := log.New(file, "MAINTENANCE: ", log.LstdFlags|log.Lshortfile)
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 10 * time.Minute
	}
	return &defaultMaintenance{
		db:             db,
		logger:         logger,
		logFile:        file,
		numWorkers:     workerCount,
		pendingTimeout: pendingTimeout,
	}, nil
}

// ReapStuckJobs 执行一次超时任务清理。
// 整个清理是存储层的一条条件批量更新，没有逐任务的错误处理：
// 更新失败时清理整体中止，返回 0 和错误。
func (m *defaultMaintenance) ReapStuckJobs(ctx context.Context) (int64, error) {
	m.logger.Println("--- 开始清理滞留任务 ---")

	count, err := m.db.Jobs().FailStuck(ctx, m.pendingTimeout, StuckJobMessage)
	if err != nil {
		m.logger.Printf("错误: 清理滞留任务失败: %v", err)
		return 0, err
	}

	m.logger.Printf("--- 清理完成，共处理 %d 个滞留任务 ---", count)
	return count, nil
}

// GenerateFileManifest 并发地为照片库生成文件清单
func (m *defaultMaintenance) GenerateFileManifest(ctx context.Context, libraryPath, outputPath string) error {
	m.logger.Println("--- 开始生成文件清单 (File Manifest) ---")

	// 1. 创建输出文件
	manifestFileName := fmt.Sprintf("manifest_%s.txt", time.Now().Format("2006-01-02"))
	manifestPath := filepath.Join(outputPath, manifestFileName)
	file, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("无法创建清单文件: %w", err)
	}
	defer file.Close()
	m.logger.Printf("清单文件将被保存到: %s", manifestPath)

	// 2. 设置并发工作池
	var wg sync.WaitGroup
	tasks := make(chan string, m.numWorkers)
	results := make(chan string, m.numWorkers)

	// 启动哈希计算工人
	for i := 0; i < m.numWorkers; i++ {
		wg.Add(1)
		go m.manifestWorker(&wg, libraryPath, tasks, results)
	}

	// 启动一个单独的协程来将结果写入文件，避免并发写文件
	var writeWg sync.WaitGroup
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		for line := range results {
			if _, err := file.WriteString(line); err != nil {
				m.logger.Printf("错误: 写入清单文件失败: %v", err)
			}
		}
	}()

	// 3. 分发任务
	m.logger.Println("开始扫描照片库并分发任务...")
	err = filepath.WalkDir(libraryPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			tasks <- path
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("扫描照片库失败: %w", err)
	}

	close(tasks)
	wg.Wait()
	close(results)
	writeWg.Wait()

	m.logger.Println("--- 文件清单生成完毕 ---")
	return nil
}

// manifestWorker 是计算哈希并格式化输出的工人
func (m *defaultMaintenance) manifestWorker(wg *sync.WaitGroup, libraryPath string, tasks <-chan string, results chan<- string) {
	defer wg.Done()
	for path := range tasks {
		hash, err := hasher.CalculateSHA256(path)
		if err != nil {
			m.logger.Printf("警告: 计算文件 %s 的哈希失败: %v", path, err)
			continue
		}
		// 为了可移植性，路径相对于库根目录并统一分隔符为 '/'
		relPath, err := filepath.Rel(libraryPath, path)
		if err != nil {
			relPath = path
		}
		line := fmt.Sprintf("%s *%s\n", hash, filepath.ToSlash(relPath))
		results <- line
	}
}

// BackupDatabase 调用 mongodump 工具来备份数据库
func (m *defaultMaintenance) BackupDatabase(ctx context.Context, dbURI, dbName, outputPath string) error {
	m.logger.Println("--- 开始执行数据库备份 ---")

	// 检查 mongodump 命令是否存在
	if _, err := exec.LookPath("mongodump"); err != nil {
		m.logger.Println("致命错误: 在系统 PATH 中找不到 'mongodump' 命令。")
		m.logger.Println("请确保您已正确安装 MongoDB Database Tools，并将其添加到了系统环境变量中。")
		return fmt.Errorf("'mongodump' command not found in PATH")
	}

	// 1. 创建输出文件路径
	backupFileName := fmt.Sprintf("db_backup_%s.gz", time.Now().Format("2006-01-02_150405"))
	archiveFile := filepath.Join(outputPath, backupFileName)
	m.logger.Printf("数据库备份文件将被保存到: %s", archiveFile)

	// 2. 构建并执行命令
	cmd := exec.CommandContext(ctx, "mongodump",
		"--uri", dbURI,
		"--db", dbName,
		"--archive="+archiveFile,
		"--gzip",
	)

	// 将命令的输出连接到我们的日志，以便实时查看进度和错误
	cmd.Stdout = m.logger.Writer()
	cmd.Stderr = m.logger.Writer()

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("执行 mongodump 失败: %w", err)
	}

	m.logger.Println("--- 数据库备份成功 ---")
	return nil
}
