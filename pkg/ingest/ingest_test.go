package ingest

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/pkg/database/memory"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG 生成一张指定尺寸和底色的测试图片。
func encodePNG(t *testing.T, width, height int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestIngestor(t *testing.T, store *memory.Store) (PhotoIngestor, string) {
	t.Helper()
	libraryDir := t.TempDir()
	cfg := config.UploadsConfig{
		LibraryPath:     libraryDir,
		ThumbnailWidth:  32,
		ThumbnailHeight: 32,
	}
	ing, err := NewIngestor(t.TempDir(), store, cfg, 2)
	require.NoError(t, err)
	t.Cleanup(ing.Close)
	return ing, libraryDir
}

func TestIngestBatch_StoresDecodedPhotos(t *testing.T) {
	store := memory.NewStore()
	ing, libraryDir := newTestIngestor(t, store)

	files := []UploadFile{
		{Name: "Красная площадь.png", Data: encodePNG(t, 64, 48, color.RGBA{R: 255, A: 255})},
		{Name: "beach day.png", Data: encodePNG(t, 48, 64, color.RGBA{B: 255, A: 255})},
	}

	summary, err := ing.IngestBatch(context.Background(), "u1", files)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Ingested)
	assert.Equal(t, 0, summary.Duplicates)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Photos, 2)

	byName := make(map[string]int)
	for i, p := range summary.Photos {
		byName[p.FileName] = i
		assert.Equal(t, "u1", p.UserID)
		assert.NotEmpty(t, p.FileHash)
		assert.NotEmpty(t, p.Thumbnail)
		assert.FileExists(t, filepath.Join(libraryDir, "u1", p.FileName))
	}

	// 检索名去除音调符号并转小写
	red := summary.Photos[byName["Красная площадь.png"]]
	assert.Equal(t, "krasnaia ploshchad'.png", red.SearchName)
	assert.Equal(t, 64, red.Width)
	assert.Equal(t, 48, red.Height)

	count, err := store.Photos().CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIngestBatch_DeduplicatesByContentHash(t *testing.T) {
	store := memory.NewStore()
	ing, _ := newTestIngestor(t, store)

	data := encodePNG(t, 32, 32, color.RGBA{G: 255, A: 255})

	first, err := ing.IngestBatch(context.Background(), "u1", []UploadFile{
		{Name: "original.png", Data: data},
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Ingested)

	// 同样的字节换个名字再传一次，应被内容哈希去重
	second, err := ing.IngestBatch(context.Background(), "u1", []UploadFile{
		{Name: "copy.png", Data: data},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Ingested)
	assert.Equal(t, 1, second.Duplicates)

	// 去重按用户隔离，另一个用户可以入库同样的内容
	other, err := ing.IngestBatch(context.Background(), "u2", []UploadFile{
		{Name: "copy.png", Data: data},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, other.Ingested)
}

func TestIngestBatch_CountsUndecodableFiles(t *testing.T) {
	store := memory.NewStore()
	ing, _ := newTestIngestor(t, store)

	summary, err := ing.IngestBatch(context.Background(), "u1", []UploadFile{
		{Name: "notes.txt", Data: []byte("这不是一张图片")},
		{Name: "ok.png", Data: encodePNG(t, 16, 16, color.RGBA{A: 255})},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 1, summary.Failed)
}
