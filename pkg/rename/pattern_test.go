package rename

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNewName_SequentialPadding(t *testing.T) {
	e := NewEngine()
	p := Pattern{
		Prefix:       "trip",
		NumberFormat: NumberSequential,
		StartNumber:  1,
		Separator:    "-",
		CaseTransform: CaseNone,
	}
	f := File{Name: "IMG_0001.JPG"}

	assert.Equal(t, "trip-001.JPG", e.GenerateNewName(f, 0, p))
	assert.Equal(t, "trip-010.JPG", e.GenerateNewName(f, 9, p))
	assert.Equal(t, "trip-100.JPG", e.GenerateNewName(f, 99, p))
}

func TestGenerateNewName_SequentialConsecutive(t *testing.T) {
	e := NewEngine()
	p := Pattern{NumberFormat: NumberSequential, StartNumber: 7, Separator: "_"}
	f := File{Name: "a.png"}

	for i := 0; i < 20; i++ {
		want := fmt.Sprintf("%03d.png", 7+i)
		assert.Equal(t, want, e.GenerateNewName(f, i, p))
	}
}

func TestGenerateNewName_SequentialOverflowKeepsNaturalWidth(t *testing.T) {
	e := NewEngine()
	p := Pattern{NumberFormat: NumberSequential, StartNumber: 998, Separator: "-"}
	f := File{Name: "a.jpg"}

	assert.Equal(t, "998.jpg", e.GenerateNewName(f, 0, p))
	assert.Equal(t, "1000.jpg", e.GenerateNewName(f, 2, p))
	assert.Equal(t, "12345.jpg", e.GenerateNewName(f, 11347, p))
}

func TestGenerateNewName_CapitalizeWithSpaces(t *testing.T) {
	e := NewEngine()
	p := Pattern{
		NumberFormat:  NumberNone,
		Separator:     "_",
		CaseTransform: CaseCapitalize,
		RemoveSpaces:  true,
	}
	got := e.GenerateNewName(File{Name: "my photo.png"}, 0, p)
	assert.Equal(t, "My_Photo.png", got)
}

func TestGenerateNewName_IdentityRoundTrip(t *testing.T) {
	// numberFormat=none、无前后缀、无变换时必须还原出原始文件名
	e := NewEngine()
	p := Pattern{NumberFormat: NumberNone, CaseTransform: CaseNone}

	for _, name := range []string{"IMG_0001.JPG", "holiday.png", "noext", "a.b.c.gif"} {
		assert.Equal(t, name, e.GenerateNewName(File{Name: name}, 0, p))
	}
}

func TestGenerateNewName_ExtensionHandling(t *testing.T) {
	e := NewEngine()
	p := Pattern{Prefix: "x", NumberFormat: NumberSequential, StartNumber: 1, Separator: "-"}

	// 含 '.' 的原名：输出必须以 '.'+原扩展名结尾
	got := e.GenerateNewName(File{Name: "photo.JPEG"}, 0, p)
	assert.True(t, strings.HasSuffix(got, ".JPEG"), got)

	// 不含 '.' 的原名：不追加任何扩展名
	got = e.GenerateNewName(File{Name: "photo"}, 0, p)
	assert.Equal(t, "x-001", got)
}

func TestGenerateNewName_SeparatorRules(t *testing.T) {
	e := NewEngine()

	// 只有前缀、numberFormat=none：前缀和原名之间仍要插入分隔符
	p := Pattern{Prefix: "trip", NumberFormat: NumberNone, Separator: "-"}
	assert.Equal(t, "trip-beach.jpg", e.GenerateNewName(File{Name: "beach.jpg"}, 0, p))

	// 前缀为空：左侧无内容，不插入分隔符
	p.Prefix = ""
	assert.Equal(t, "beach.jpg", e.GenerateNewName(File{Name: "beach.jpg"}, 0, p))

	// 前缀+后缀：两侧各插一次分隔符
	p = Pattern{Prefix: "a", Suffix: "z", NumberFormat: NumberSequential, StartNumber: 1, Separator: "_"}
	assert.Equal(t, "a_001_z.jpg", e.GenerateNewName(File{Name: "x.jpg"}, 0, p))
}

func TestGenerateNewName_SuffixOnly(t *testing.T) {
	e := NewEngine()
	p := Pattern{Suffix: "edited", NumberFormat: NumberNone, Separator: "-"}
	assert.Equal(t, "beach-edited.jpg", e.GenerateNewName(File{Name: "beach.jpg"}, 0, p))
}

func TestGenerateNewName_Timestamp(t *testing.T) {
	e := NewEngine()
	p := Pattern{NumberFormat: NumberTimestamp, Separator: "-"}
	f := File{
		Name:         "clip.mp4",
		LastModified: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	assert.Equal(t, "2025-03-14.mp4", e.GenerateNewName(f, 0, p))
}

func TestGenerateNewName_RandomTokenDeterministicWithStub(t *testing.T) {
	// 注入固定随机源后 random 模式也必须可复现
	e := NewEngineWithRand(func() float64 { return 0 })
	p := Pattern{NumberFormat: NumberRandom, Separator: "-"}
	got := e.GenerateNewName(File{Name: "a.jpg"}, 0, p)
	assert.Equal(t, "000000.jpg", got)

	e = NewEngineWithRand(func() float64 { return 0.9999999 })
	got = e.GenerateNewName(File{Name: "a.jpg"}, 0, p)
	assert.Equal(t, "ZZZZZZ.jpg", got)
}

func TestGenerateNewName_RandomTokenShape(t *testing.T) {
	e := NewEngine()
	p := Pattern{Prefix: "p", NumberFormat: NumberRandom, Separator: "-"}
	got := e.GenerateNewName(File{Name: "a.jpg"}, 0, p)

	require.True(t, strings.HasPrefix(got, "p-"), got)
	require.True(t, strings.HasSuffix(got, ".jpg"), got)
	token := strings.TrimSuffix(strings.TrimPrefix(got, "p-"), ".jpg")
	require.Len(t, token, 6)
	assert.Equal(t, strings.ToUpper(token), token)
}

func TestGenerateNewName_RemoveSpecialChars(t *testing.T) {
	e := NewEngine()
	p := Pattern{NumberFormat: NumberNone, RemoveSpecialChars: true}
	got := e.GenerateNewName(File{Name: "фото (1)#@.jpg"}, 0, p)
	assert.Equal(t, "1.jpg", got)

	// 点、下划线和连字符必须保留
	got = e.GenerateNewName(File{Name: "a_b-c.d.jpg"}, 0, p)
	assert.Equal(t, "a_b-c.d.jpg", got)
}

func TestGenerateNewName_CaseTransforms(t *testing.T) {
	e := NewEngine()
	f := File{Name: "My Photo.JPG"}

	p := Pattern{NumberFormat: NumberNone, CaseTransform: CaseLowercase}
	assert.Equal(t, "my photo.JPG", e.GenerateNewName(f, 0, p))

	p.CaseTransform = CaseUppercase
	assert.Equal(t, "MY PHOTO.JPG", e.GenerateNewName(f, 0, p))

	// 空分隔符的 capitalize 退化为单段处理
	p.CaseTransform = CaseCapitalize
	p.Separator = ""
	assert.Equal(t, "My photo.JPG", e.GenerateNewName(f, 0, p))
}

func TestGenerateNewName_CapitalizeMultiCharSeparator(t *testing.T) {
	// 多字符分隔符按字面整体切分，而不是逐字符切
	e := NewEngine()
	p := Pattern{
		Prefix:        "my",
		Suffix:        "set",
		NumberFormat:  NumberSequential,
		StartNumber:   1,
		Separator:     "--",
		CaseTransform: CaseCapitalize,
	}
	got := e.GenerateNewName(File{Name: "x.jpg"}, 0, p)
	assert.Equal(t, "My--001--Set.jpg", got)
}

func TestGenerateNewName_FallbackToOriginal(t *testing.T) {
	// 前缀、后缀、编号部分全为空且原名无扩展名时走兜底分支
	e := NewEngine()
	p := Pattern{NumberFormat: NumberFormat("unknown")}
	assert.Equal(t, "noext", e.GenerateNewName(File{Name: "noext"}, 0, p))
}

func TestPlanBatch_OrderAndPairs(t *testing.T) {
	e := NewEngine()
	p := Pattern{Prefix: "trip", NumberFormat: NumberSequential, StartNumber: 1, Separator: "-"}
	files := []File{{Name: "a.jpg"}, {Name: "b.jpg"}, {Name: "c.jpg"}}

	pairs := e.PlanBatch(files, p)
	require.Len(t, pairs, 3)
	assert.Equal(t, Pair{OldName: "a.jpg", NewName: "trip-001.jpg"}, pairs[0])
	assert.Equal(t, Pair{OldName: "b.jpg", NewName: "trip-002.jpg"}, pairs[1])
	assert.Equal(t, Pair{OldName: "c.jpg", NewName: "trip-003.jpg"}, pairs[2])
}
