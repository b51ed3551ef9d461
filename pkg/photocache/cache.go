// Package photocache 实现按用户隔离的照片列表本地缓存。
// 每个用户对应存储层中的一个键，值为 JSON 编码的 CacheData。
// 缓存带有格式版本号和 30 分钟的新鲜度窗口，任一条件不满足都视为缓存缺失，
// 并在读取时顺手删除过期条目。
package photocache

import (
	"PhotoFlow_Manager/internal/models"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// CurrentVersion 是当前代码期望的缓存格式版本。
// 修改 CacheData 的结构时必须同步调高此值，旧条目会在下次读取时被淘汰。
const CurrentVersion = "v2"

// DefaultTTL 是缓存条目的默认新鲜度窗口。
const DefaultTTL = 30 * time.Minute

// keyPrefix 是所有缓存键共享的命名空间前缀。
const keyPrefix = "photo_cache_"

// SortField 是列表排序字段。
type SortField string

const (
	SortByName SortField = "name"
	SortByDate SortField = "date"
	SortBySize SortField = "size"
)

// SortOrder 是排序方向。
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Preferences 保存用户最近一次使用的搜索和排序偏好。
type Preferences struct {
	SearchTerm string    `json:"searchTerm"`
	SortBy     SortField `json:"sortBy"`
	SortOrder  SortOrder `json:"sortOrder"`
}

// CacheData 是每个用户持久化的缓存内容。
type CacheData struct {
	Version     string         `json:"version"`
	Timestamp   time.Time      `json:"timestamp"`
	UserID      string         `json:"userId"`
	Photos      []models.Photo `json:"photos"`
	Preferences Preferences    `json:"preferences"`
}

// ErrQuotaExceeded 表示底层存储空间耗尽。
// 写入时遇到此错误会静默丢弃该用户的条目，下次读取按缓存缺失处理。
var ErrQuotaExceeded = errors.New("photocache: 存储配额耗尽")

// Storage 是可注入的键值持久化能力。默认实现见 storage.go，
// 测试可以用 NewMapStorage 替换。
type Storage interface {
	// Get 返回指定键的值。键不存在时第二个返回值为 false。
	Get(key string) (string, bool, error)
	// Set 写入键值。空间不足时返回（或包装）ErrQuotaExceeded。
	Set(key, value string) error
	// Remove 删除指定键。键不存在不算错误。
	Remove(key string) error
	// Keys 返回当前存在的所有键。
	Keys() ([]string, error)
}

// Manager 是照片缓存的入口。时钟可注入，便于测试控制过期。
// 同一用户键上的并发写入是"后写覆盖"语义，不做合并。
type Manager struct {
	storage Storage
	ttl     time.Duration
	version string
	now     func() time.Time
}

// NewManager 创建缓存管理器。ttl<=0 时使用 DefaultTTL，now 为 nil 时使用 time.Now。
func NewManager(storage Storage, ttl time.Duration, now func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		storage: storage,
		ttl:     ttl,
		version: CurrentVersion,
		now:     now,
	}
}

func cacheKey(userID string) string {
	return keyPrefix + userID
}

// Get 返回用户缓存的照片列表。条目缺失、版本不符或超过 TTL 都返回 (nil, false)，
// 后两种情况会顺带删除失效条目。
func (m *Manager) Get(userID string) ([]models.Photo, bool) {
	data, ok := m.load(userID)
	if !ok {
		return nil, false
	}
	return data.Photos, true
}

// GetPreferences 返回用户缓存的搜索/排序偏好，新鲜度规则与 Get 相同。
func (m *Manager) GetPreferences(userID string) (Preferences, bool) {
	data, ok := m.load(userID)
	if !ok {
		return Preferences{}, false
	}
	return data.Preferences, true
}

// load 读取并校验一个用户的缓存条目。
func (m *Manager) load(userID string) (*CacheData, bool) {
	key := cacheKey(userID)

	raw, exists, err := m.storage.Get(key)
	if err != nil || !exists {
		return nil, false
	}

	var data CacheData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// 无法解析的条目视为损坏，直接清除
		slog.Debug("照片缓存条目损坏，已删除", "userId", userID, "error", err)
		_ = m.storage.Remove(key)
		return nil, false
	}

	if data.Version != m.version || m.now().Sub(data.Timestamp) > m.ttl {
		_ = m.storage.Remove(key)
		return nil, false
	}

	return &data, true
}

// Set 覆盖写入用户的照片列表。prefs 为 nil 时沿用条目中已有的偏好。
// 缓存写入失败从不上抛：配额耗尽时丢弃条目，调用方下次读取未命中后重新拉取数据源。
func (m *Manager) Set(userID string, photos []models.Photo, prefs *Preferences) {
	key := cacheKey(userID)

	data := CacheData{
		Version:   m.version,
		Timestamp: m.now(),
		UserID:    userID,
		Photos:    photos,
	}
	if prefs != nil {
		data.Preferences = *prefs
	} else if prev, ok := m.load(userID); ok {
		data.Preferences = prev.Preferences
	}

	raw, err := json.Marshal(&data)
	if err != nil {
		slog.Warn("照片缓存序列化失败", "userId", userID, "error", err)
		return
	}

	if err := m.storage.Set(key, string(raw)); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			slog.Debug("照片缓存配额耗尽，丢弃条目", "userId", userID)
		} else {
			slog.Warn("照片缓存写入失败，丢弃条目", "userId", userID, "error", err)
		}
		_ = m.storage.Remove(key)
	}
}

// Clear 删除指定用户的缓存条目，用于用户主动清理或退出登录。
func (m *Manager) Clear(userID string) {
	_ = m.storage.Remove(cacheKey(userID))
}

// ClearAll 删除本命名空间下的所有缓存条目。
func (m *Manager) ClearAll() {
	keys, err := m.storage.Keys()
	if err != nil {
		return
	}
	for _, k := range keys {
		if strings.HasPrefix(k, keyPrefix) {
			_ = m.storage.Remove(k)
		}
	}
}
