package main

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/database/mongo"
	"PhotoFlow_Manager/pkg/maintenance"
	"PhotoFlow_Manager/pkg/photocache"
	"PhotoFlow_Manager/pkg/rename"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

func main() {
	// --- 1. 定义命令行参数 ---
	action := flag.String("action", "", "要执行的操作: reap, create-manifest, dump-database, list-photos, history, rename-preview")
	userID := flag.String("user", "", "用于 list-photos / history 的用户标识")
	query := flag.String("query", "", "用于 list-photos 的搜索关键词")
	page := flag.Int("page", 1, "分页页码")
	limit := flag.Int("limit", 20, "每页数量")

	// rename-preview 专用参数
	dir := flag.String("dir", "", "rename-preview 要预览的本地目录")
	prefix := flag.String("prefix", "", "命名模式: 前缀")
	suffix := flag.String("suffix", "", "命名模式: 后缀")
	numberFormat := flag.String("number-format", "sequential", "命名模式: sequential/random/timestamp/none")
	startNumber := flag.Int("start-number", 1, "命名模式: 起始序号")
	separator := flag.String("separator", "-", "命名模式: 分隔符")
	caseTransform := flag.String("case", "none", "命名模式: none/lowercase/uppercase/capitalize")
	removeSpaces := flag.Bool("remove-spaces", false, "命名模式: 把空白替换为分隔符")
	removeSpecial := flag.Bool("remove-special", false, "命名模式: 去除特殊字符")

	flag.Parse()

	if *action == "" {
		fmt.Println("错误: 必须提供 -action 参数。")
		flag.Usage()
		os.Exit(1)
	}

	// rename-preview 是纯本地操作，不需要配置和数据库
	if *action == "rename-preview" {
		pattern := rename.Pattern{
			Prefix:             *prefix,
			Suffix:             *suffix,
			NumberFormat:       rename.NumberFormat(*numberFormat),
			StartNumber:        *startNumber,
			Separator:          *separator,
			CaseTransform:      rename.CaseTransform(*caseTransform),
			RemoveSpaces:       *removeSpaces,
			RemoveSpecialChars: *removeSpecial,
		}
		if err := runRenamePreview(*dir, pattern); err != nil {
			fmt.Printf("错误: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// --- 2. 初始化应用核心组件 ---
	if err := config.LoadConfig("."); err != nil {
		log.Fatalf("FATAL: 无法加载配置: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	var db database.Store
	db, err := mongo.NewStore(context.Background(), config.C)
	if err != nil {
		slog.Error("FATAL: 无法连接到数据库", "error", err)
		os.Exit(1)
	}
	if err := db.EnsureIndexes(context.Background()); err != nil {
		slog.Error("FATAL: 无法创建/验证数据库索引", "error", err)
		os.Exit(1)
	}

	logDir, _ := filepath.Abs(config.C.Logger.Path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		slog.Error("FATAL: 无法创建日志目录", "error", err)
		os.Exit(1)
	}
	maintenanceModule, err := maintenance.NewMaintenance(logDir, db, config.C.Jobs.PendingTimeout, config.C.Jobs.WorkerCount)
	if err != nil {
		slog.Error("FATAL: 无法创建维护模块", "error", err)
		os.Exit(1)
	}

	// --- 3. 根据 action 参数执行相应的功能 ---
	ctx := context.Background()
	switch *action {
	case "reap":
		slog.Info("开始清理滞留任务...")
		count, err := maintenanceModule.ReapStuckJobs(ctx)
		if err != nil {
			slog.Error("清理滞留任务失败", "error", err)
			os.Exit(1)
		}
		fmt.Printf("已清理 %d 个超时任务。\n", count)

	case "create-manifest":
		slog.Info("开始生成照片库文件清单...")
		libraryPath, _ := filepath.Abs(config.C.Uploads.LibraryPath)
		backupPath, _ := filepath.Abs(config.C.Uploads.BackupPath)
		if err := maintenanceModule.GenerateFileManifest(ctx, libraryPath, backupPath); err != nil {
			slog.Error("生成文件清单失败", "error", err)
		} else {
			slog.Info("文件清单生成成功！")
		}

	case "dump-database":
		slog.Info("开始执行数据库压缩备份...")
		backupPath, _ := filepath.Abs(config.C.Uploads.BackupPath)
		if err := maintenanceModule.BackupDatabase(ctx, config.C.Database.URI, config.C.Database.Name, backupPath); err != nil {
			slog.Error("数据库备份失败", "error", err)
		} else {
			slog.Info("数据库备份成功！")
		}

	case "list-photos":
		if *userID == "" {
			fmt.Println("错误: list-photos 操作需要提供 -user 参数。")
			return
		}
		fmt.Printf("--- 获取用户 '%s' 的照片列表 ---\n", *userID)

		// 默认视图（无搜索、第一页）走本地缓存，TTL 内的重复查询不访问数据库
		var cache *photocache.Manager
		if storage, err := photocache.NewFileStorage(afero.NewOsFs(), config.C.Cache.Dir); err == nil {
			cache = photocache.NewManager(storage, config.C.Cache.TTL, nil)
		}
		useCache := cache != nil && *query == "" && *page == 1
		if useCache {
			if photos, ok := cache.Get(*userID); ok {
				fmt.Printf("本地缓存命中，共 %d 张照片:\n", len(photos))
				for _, p := range photos {
					fmt.Printf("  ID: %s, FileName: %s, Size: %d, 尺寸: %dx%d\n",
						p.ID.Hex(), p.FileName, p.Size, p.Width, p.Height)
				}
				return
			}
		}

		photos, total, err := db.Photos().List(ctx, *userID, database.ListQuery{
			Search: *query,
			Page:   *page,
			Limit:  *limit,
		})
		if err != nil {
			slog.Error("获取照片列表失败", "error", err)
			return
		}
		if useCache {
			cache.Set(*userID, photos, &photocache.Preferences{
				SortBy:    photocache.SortByName,
				SortOrder: photocache.OrderAsc,
			})
		}
		fmt.Printf("总共找到 %d 张照片 (正在显示第 %d 页，每页 %d 张):\n", total, *page, *limit)
		for _, p := range photos {
			fmt.Printf("  ID: %s, FileName: %s, Size: %d, 尺寸: %dx%d\n",
				p.ID.Hex(), p.FileName, p.Size, p.Width, p.Height)
		}

	case "history":
		if *userID == "" {
			fmt.Println("错误: history 操作需要提供 -user 参数。")
			return
		}
		fmt.Printf("--- 获取用户 '%s' 的重命名历史 ---\n", *userID)
		entries, total, err := db.History().ListByUser(ctx, *userID, *page, *limit)
		if err != nil {
			slog.Error("获取重命名历史失败", "error", err)
			return
		}
		fmt.Printf("总共找到 %d 条历史记录:\n", total)
		for _, e := range entries {
			fmt.Printf("[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action)
			for _, pair := range e.Pairs {
				fmt.Printf("    %s -> %s\n", pair.OldName, pair.NewName)
			}
		}

	default:
		fmt.Printf("错误: 未知的 action '%s'\n", *action)
		flag.Usage()
	}
}

// runRenamePreview 对本地目录中的文件预览命名模式的效果，不做任何实际改名。
func runRenamePreview(dir string, pattern rename.Pattern) error {
	if dir == "" {
		return fmt.Errorf("rename-preview 操作需要提供 -dir 参数")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("无法读取目录 %s: %w", dir, err)
	}

	var files []rename.File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, rename.File{Name: entry.Name(), LastModified: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	if len(files) == 0 {
		fmt.Println("目录中没有文件。")
		return nil
	}

	engine := rename.NewEngine()
	pairs := engine.PlanBatch(files, pattern)

	historyLog := rename.NewHistoryLog()
	entry := historyLog.Record(fmt.Sprintf("预览批量重命名 %d 个文件", len(pairs)), pairs)

	fmt.Printf("--- 重命名预览 (%d 个文件, 记录ID: %s) ---\n", len(pairs), entry.ID)
	for _, pair := range pairs {
		fmt.Printf("  %s -> %s\n", pair.OldName, pair.NewName)
	}
	return nil
}
