package rename

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryLog_AppendOnlyOrder(t *testing.T) {
	log := NewHistoryLog()

	e1 := log.Record("批量重命名 2 个文件", []Pair{{OldName: "a.jpg", NewName: "trip-001.jpg"}, {OldName: "b.jpg", NewName: "trip-002.jpg"}})
	e2 := log.Record("批量重命名 1 个文件", []Pair{{OldName: "c.jpg", NewName: "trip-003.jpg"}})

	require.NotEqual(t, e1.ID, e2.ID)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, e1.ID, entries[0].ID)
	assert.Equal(t, e2.ID, entries[1].ID)
	assert.Equal(t, 2, log.Len())
}

func TestHistoryLog_EntryIsImmutableSnapshot(t *testing.T) {
	log := NewHistoryLog()

	pairs := []Pair{{OldName: "a.jpg", NewName: "x.jpg"}}
	entry := log.Record("rename", pairs)

	// 修改调用方的切片不能影响已记录的条目
	pairs[0].NewName = "mutated.jpg"
	assert.Equal(t, "x.jpg", entry.Pairs[0].NewName)
	assert.Equal(t, "x.jpg", log.Entries()[0].Pairs[0].NewName)
}

func TestHistoryLog_ClockInjection(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	log := NewHistoryLogWithClock(func() time.Time { return fixed })

	entry := log.Record("rename", nil)
	assert.Equal(t, fixed, entry.CreatedAt)
}
