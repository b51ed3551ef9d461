//go:build ignore
// +build ignore

// ^^^ 使用 go run rename_debug.go 运行此脚本前，请注释掉上面两行

// 这是一个独立的调试脚本，用来快速验证命名模式引擎在各种配置下的输出。
package main

import (
	"PhotoFlow_Manager/pkg/rename"
	"fmt"
	"time"
)

func main() {
	files := []rename.File{
		{Name: "IMG_0001.JPG", LastModified: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)},
		{Name: "my photo.png", LastModified: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)},
		{Name: "фото (1)#@.jpg", LastModified: time.Now()},
		{Name: "noext", LastModified: time.Now()},
	}

	patterns := map[string]rename.Pattern{
		"序号+前缀": {
			Prefix:       "trip",
			NumberFormat: rename.NumberSequential,
			StartNumber:  1,
			Separator:    "-",
		},
		"日期模式": {
			Prefix:       "backup",
			NumberFormat: rename.NumberTimestamp,
			Separator:    "_",
		},
		"清理+首字母大写": {
			NumberFormat:       rename.NumberNone,
			Separator:          "_",
			CaseTransform:      rename.CaseCapitalize,
			RemoveSpaces:       true,
			RemoveSpecialChars: true,
		},
		"随机串": {
			Prefix:       "pic",
			NumberFormat: rename.NumberRandom,
			Separator:    "-",
		},
	}

	engine := rename.NewEngine()
	for label, pattern := range patterns {
		fmt.Printf("=== %s ===\n", label)
		for i, f := range files {
			fmt.Printf("  %-20s -> %s\n", f.Name, engine.GenerateNewName(f, i, pattern))
		}
		fmt.Println()
	}
}
