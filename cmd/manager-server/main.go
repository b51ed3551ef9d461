// 文件: cmd/manager-server/main.go
package main

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/internal/api"
	"PhotoFlow_Manager/internal/task"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/database/mongo"
	"PhotoFlow_Manager/pkg/ingest"
	"PhotoFlow_Manager/pkg/logger"
	"PhotoFlow_Manager/pkg/maintenance"
	"PhotoFlow_Manager/pkg/rename"
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	// --- 1. 初始化 ---
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("FATAL: 无法加载配置: %v", err)
	}
	if err := logger.InitLogger(); err != nil {
		log.Fatalf("FATAL: 无法初始化日志: %v", err)
	}
	slog.Info("应用启动")
	defer slog.Info("应用关闭")

	logDir, err := filepath.Abs(config.C.Logger.Path)
	if err != nil {
		slog.Error("FATAL: 无法获取日志目录绝对路径", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		slog.Error("FATAL: 无法创建日志目录", "error", err)
		os.Exit(1)
	}

	// --- 2. 连接数据库 ---
	var db database.Store
	db, err = mongo.NewStore(context.Background(), config.C)
	if err != nil {
		slog.Error("FATAL: 无法连接到数据库", "error", err)
		os.Exit(1)
	}
	if err := db.EnsureIndexes(context.Background()); err != nil {
		slog.Error("FATAL: 无法创建/验证数据库索引", "error", err)
		os.Exit(1)
	}
	slog.Info("数据库连接成功并已验证索引")

	// --- 3. 创建核心服务实例 ---
	ingestor, err := ingest.NewIngestor(logDir, db, config.C.Uploads, config.C.Jobs.WorkerCount)
	if err != nil {
		slog.Error("FATAL: 无法创建照片入库器", "error", err)
		os.Exit(1)
	}
	defer ingestor.Close()
	slog.Info("照片入库器创建成功")

	maint, err := maintenance.NewMaintenance(logDir, db, config.C.Jobs.PendingTimeout, config.C.Jobs.WorkerCount)
	if err != nil {
		slog.Error("FATAL: 无法创建维护模块", "error", err)
		os.Exit(1)
	}

	taskManager := task.NewManager(db, rename.NewEngine(), config.C.Jobs.BatchSize)
	slog.Info("任务管理器创建成功")

	// 周期性地清理滞留在 pending 状态的任务
	go runReaper(maint, config.C.Jobs.ReapInterval)

	// --- 4. 设置并启动HTTP服务器 ---
	router := api.RegisterRoutes(taskManager, db, ingestor, maint)

	server := &http.Server{
		Addr:         config.C.Server.Port,
		Handler:      router,
		ReadTimeout:  config.C.Server.Timeout,
		WriteTimeout: config.C.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("HTTP服务器正在启动...", "地址", config.C.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("无法启动HTTP服务器", "error", err)
		os.Exit(1)
	}
}

// runReaper 按固定间隔执行滞留任务清理。清理本身是幂等的，
// 与外部调度器触发的清理接口并发执行也是安全的。
func runReaper(maint maintenance.Maintenance, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		count, err := maint.ReapStuckJobs(ctx)
		cancel()
		if err != nil {
			slog.Error("滞留任务清理失败", "error", err)
			continue
		}
		if count > 0 {
			slog.Info("滞留任务清理完成", "清理数", count)
		}
	}
}
