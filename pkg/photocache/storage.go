package photocache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/afero"
)

// FileStorage 把每个键保存为缓存目录下的一个 JSON 文件。
// 通过 afero 抽象文件系统，测试可以传入 afero.NewMemMapFs()。
type FileStorage struct {
	fs  afero.Fs
	dir string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage 创建文件存储，目录不存在时会创建。
func NewFileStorage(fs afero.Fs, dir string) (*FileStorage, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("无法创建缓存目录 %s: %w", dir, err)
	}
	return &FileStorage{fs: fs, dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) Get(key string) (string, bool, error) {
	raw, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *FileStorage) Set(key, value string) error {
	err := afero.WriteFile(s.fs, s.path(key), []byte(value), 0o644)
	if err != nil && errors.Is(err, syscall.ENOSPC) {
		// 磁盘满按配额耗尽处理，上层会丢弃条目
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func (s *FileStorage) Remove(key string) error {
	err := s.fs.Remove(s.path(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileStorage) Keys() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(info.Name(), ".json"))
	}
	return keys, nil
}

// MapStorage 是内存实现，主要用于测试。
// MaxBytes 大于 0 时模拟存储配额：超出后 Set 返回 ErrQuotaExceeded。
type MapStorage struct {
	mu       sync.Mutex
	entries  map[string]string
	maxBytes int
}

var _ Storage = (*MapStorage)(nil)

// NewMapStorage 创建不限容量的内存存储。
func NewMapStorage() *MapStorage {
	return &MapStorage{entries: make(map[string]string)}
}

// NewMapStorageWithQuota 创建带容量上限（按值的总字节数计）的内存存储。
func NewMapStorageWithQuota(maxBytes int) *MapStorage {
	return &MapStorage{entries: make(map[string]string), maxBytes: maxBytes}
}

func (s *MapStorage) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MapStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxBytes > 0 {
		total := len(value)
		for k, v := range s.entries {
			if k != key {
				total += len(v)
			}
		}
		if total > s.maxBytes {
			return ErrQuotaExceeded
		}
	}
	s.entries[key] = value
	return nil
}

func (s *MapStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MapStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len 返回当前条目数，测试断言用。
func (s *MapStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
