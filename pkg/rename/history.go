package rename

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry 是一次已提交批量重命名的不可变记录。
// Pairs 在创建时被拷贝，之后不会再变化。
type HistoryEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Pairs     []Pair    `json:"pairs"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryLog 是只增不改的本地重命名历史。
// 条目按插入顺序保存；除了稳定的插入顺序外不提供其他排序保证，
// 展示层自行决定正序还是倒序渲染。
type HistoryLog struct {
	mu      sync.Mutex
	entries []HistoryEntry
	now     func() time.Time
}

// NewHistoryLog 创建一个空的历史记录。
func NewHistoryLog() *HistoryLog {
	return &HistoryLog{now: time.Now}
}

// NewHistoryLogWithClock 允许测试注入固定时钟。
func NewHistoryLogWithClock(now func() time.Time) *HistoryLog {
	return &HistoryLog{now: now}
}

// Record 追加一条历史并返回其快照。传入的 pairs 会被拷贝，
// 调用方之后修改原切片不影响已记录的条目。
func (l *HistoryLog) Record(action string, pairs []Pair) HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := HistoryEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Pairs:     append([]Pair(nil), pairs...),
		CreatedAt: l.now(),
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Entries 按插入顺序返回所有条目的拷贝。
func (l *HistoryLog) Entries() []HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]HistoryEntry(nil), l.entries...)
}

// Len 返回已记录的条目数量。
func (l *HistoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
