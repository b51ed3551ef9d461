package photocache

import (
	"PhotoFlow_Manager/internal/models"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 让测试可以随意拨动当前时间。
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func somePhotos() []models.Photo {
	return []models.Photo{
		{UserID: "u1", FileName: "trip-001.jpg", Size: 1024},
		{UserID: "u1", FileName: "trip-002.jpg", Size: 2048},
	}
}

func TestCache_SetThenGetWithinTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	m := NewManager(NewMapStorage(), DefaultTTL, clock.Now)

	photos := somePhotos()
	m.Set("u1", photos, nil)

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, photos, got)

	// TTL 窗口内反复读取结果不变
	clock.Advance(29 * time.Minute)
	got, ok = m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, photos, got)
}

func TestCache_ExpiredEntryIsDeletedOnRead(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	storage := NewMapStorage()
	m := NewManager(storage, DefaultTTL, clock.Now)

	m.Set("u1", somePhotos(), nil)
	clock.Advance(31 * time.Minute)

	_, ok := m.Get("u1")
	assert.False(t, ok)
	// 过期条目必须在读取时被顺带删除
	assert.Equal(t, 0, storage.Len())
}

func TestCache_VersionMismatchIsDeletedOnRead(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	storage := NewMapStorage()
	m := NewManager(storage, DefaultTTL, clock.Now)

	m.Set("u1", somePhotos(), nil)

	// 篡改已存条目的版本号，模拟旧版本代码写入的缓存
	raw, ok, err := storage.Get("photo_cache_u1")
	require.NoError(t, err)
	require.True(t, ok)
	var data CacheData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	data.Version = "v1"
	tampered, err := json.Marshal(&data)
	require.NoError(t, err)
	require.NoError(t, storage.Set("photo_cache_u1", string(tampered)))

	_, found := m.Get("u1")
	assert.False(t, found)
	assert.Equal(t, 0, storage.Len())
}

func TestCache_CorruptEntryIsDeletedOnRead(t *testing.T) {
	storage := NewMapStorage()
	m := NewManager(storage, DefaultTTL, nil)

	require.NoError(t, storage.Set("photo_cache_u1", "{not json"))
	_, ok := m.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, storage.Len())
}

func TestCache_QuotaExceededRecoversSilently(t *testing.T) {
	storage := NewMapStorageWithQuota(64)
	m := NewManager(storage, DefaultTTL, nil)

	// 64 字节的配额装不下序列化后的照片列表，Set 不报错但条目被丢弃
	m.Set("u1", somePhotos(), nil)

	_, ok := m.Get("u1")
	assert.False(t, ok)
	assert.Equal(t, 0, storage.Len())
}

func TestCache_PreferencesRoundTrip(t *testing.T) {
	m := NewManager(NewMapStorage(), DefaultTTL, nil)

	prefs := Preferences{SearchTerm: "beach", SortBy: SortByDate, SortOrder: OrderDesc}
	m.Set("u1", somePhotos(), &prefs)

	got, ok := m.GetPreferences("u1")
	require.True(t, ok)
	assert.Equal(t, prefs, got)

	// prefs 传 nil 时沿用已存偏好
	m.Set("u1", somePhotos()[:1], nil)
	got, ok = m.GetPreferences("u1")
	require.True(t, ok)
	assert.Equal(t, prefs, got)
}

func TestCache_LastWriterWins(t *testing.T) {
	m := NewManager(NewMapStorage(), DefaultTTL, nil)

	m.Set("u1", somePhotos(), nil)
	second := []models.Photo{{UserID: "u1", FileName: "only.jpg"}}
	m.Set("u1", second, nil)

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCache_ClearAndClearAll(t *testing.T) {
	storage := NewMapStorage()
	m := NewManager(storage, DefaultTTL, nil)

	m.Set("u1", somePhotos(), nil)
	m.Set("u2", somePhotos(), nil)

	m.Clear("u1")
	_, ok := m.Get("u1")
	assert.False(t, ok)
	_, ok = m.Get("u2")
	assert.True(t, ok)

	m.ClearAll()
	_, ok = m.Get("u2")
	assert.False(t, ok)
	assert.Equal(t, 0, storage.Len())
}

func TestCache_UsersAreIsolated(t *testing.T) {
	m := NewManager(NewMapStorage(), DefaultTTL, nil)

	m.Set("u1", somePhotos(), nil)
	_, ok := m.Get("u2")
	assert.False(t, ok)
}

func TestFileStorage_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	storage, err := NewFileStorage(fs, "/cache")
	require.NoError(t, err)

	m := NewManager(storage, DefaultTTL, nil)
	photos := somePhotos()
	m.Set("u1", photos, nil)

	got, ok := m.Get("u1")
	require.True(t, ok)
	assert.Equal(t, photos, got)

	keys, err := storage.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"photo_cache_u1"}, keys)

	m.ClearAll()
	keys, err = storage.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
