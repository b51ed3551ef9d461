// Package rename 实现批量重命名的命名模式引擎。
// 引擎是纯字符串计算：输入一个文件描述、它在批次中的序号和一份模式配置，
// 输出新文件名。除 random 模式外结果完全确定。
package rename

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// NumberFormat 决定名字中间的编号/日期部分如何生成。
type NumberFormat string

const (
	// NumberSequential 生成 startNumber+index 的序号，不足三位补零。
	NumberSequential NumberFormat = "sequential"
	// NumberRandom 生成 6 位大写 base-36 随机串。同一批次内不做去重，
	// 需要唯一性的调用方应使用 sequential。
	NumberRandom NumberFormat = "random"
	// NumberTimestamp 使用文件的最后修改日期 (YYYY-MM-DD)。
	NumberTimestamp NumberFormat = "timestamp"
	// NumberNone 使用去掉扩展名的原始文件名。
	NumberNone NumberFormat = "none"
)

// CaseTransform 决定对组装完成的名字（不含扩展名）做何种大小写变换。
type CaseTransform string

const (
	CaseNone       CaseTransform = "none"
	CaseLowercase  CaseTransform = "lowercase"
	CaseUppercase  CaseTransform = "uppercase"
	CaseCapitalize CaseTransform = "capitalize"
)

// Pattern 是一次批量重命名的模式配置，批次执行期间不可变。
// 所有字段组合都是合法的，包括空的前缀/后缀。
type Pattern struct {
	Prefix             string        `json:"prefix"`
	Suffix             string        `json:"suffix"`
	NumberFormat       NumberFormat  `json:"numberFormat"`
	StartNumber        int           `json:"startNumber"`
	DateFormat         string        `json:"dateFormat,omitempty"`
	CaseTransform      CaseTransform `json:"caseTransform"`
	Separator          string        `json:"separator"`
	RemoveSpaces       bool          `json:"removeSpaces"`
	RemoveSpecialChars bool          `json:"removeSpecialChars"`
}

// File 是引擎的输入：文件名和最后修改时间即可，
// 不需要文件内容。
type File struct {
	Name         string
	LastModified time.Time
}

// Pair 记录单个文件的新旧名字。
type Pair struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	// 仅保留字母、数字和 . _ - 三个安全符号
	disallowedChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Engine 持有一个注入的随机源，供 random 模式使用。
// 随机源以函数注入而非使用全局生成器，测试可以传入固定序列。
type Engine struct {
	rnd func() float64
}

// NewEngine 返回一个使用 math/rand 全局随机源的引擎。
func NewEngine() *Engine {
	return &Engine{rnd: rand.Float64}
}

// NewEngineWithRand 返回一个使用指定随机源的引擎。rnd 必须返回 [0,1) 的值。
func NewEngineWithRand(rnd func() float64) *Engine {
	return &Engine{rnd: rnd}
}

// GenerateNewName 为批次中第 index 个文件计算新文件名。
//
// 组装顺序：前缀 → 分隔符 → 编号/日期部分 → 分隔符 → 后缀，
// 分隔符只在左侧已有内容、且右侧确实会产生内容时插入；
// 之后依次应用去空白、去特殊字符和大小写变换，最后补回原扩展名。
func (e *Engine) GenerateNewName(file File, index int, p Pattern) string {
	name := ""

	if p.Prefix != "" {
		name += p.Prefix
	}

	component := e.numberComponent(file, index, p)

	// 空串判断必须显式进行，分隔符的插入完全取决于两侧是否有内容
	if name != "" && (component != "" || p.Suffix != "") {
		name += p.Separator
	}
	name += component

	if name != "" && p.Suffix != "" {
		name += p.Separator
	}
	name += p.Suffix

	if p.RemoveSpaces {
		name = whitespaceRun.ReplaceAllString(name, p.Separator)
	}
	if p.RemoveSpecialChars {
		name = disallowedChars.ReplaceAllString(name, "")
	}

	switch p.CaseTransform {
	case CaseLowercase:
		name = strings.ToLower(name)
	case CaseUppercase:
		name = strings.ToUpper(name)
	case CaseCapitalize:
		name = capitalizeSegments(name, p.Separator)
	}

	// 补回原始扩展名（最后一个 '.' 之后的部分），大小写变换不影响扩展名
	if i := strings.LastIndex(file.Name, "."); i >= 0 {
		name += "." + file.Name[i+1:]
	}

	// 防御性兜底：前缀、后缀和编号部分全部为空时退回原名
	if name == "" {
		return file.Name
	}
	return name
}

// numberComponent 根据 NumberFormat 生成名字中间的那一段。
func (e *Engine) numberComponent(file File, index int, p Pattern) string {
	switch p.NumberFormat {
	case NumberSequential:
		// %03d 对 1000 以上的值按自然宽度输出，不截断
		return fmt.Sprintf("%03d", p.StartNumber+index)
	case NumberRandom:
		return e.randomToken()
	case NumberTimestamp:
		layout := "2006-01-02"
		if p.DateFormat != "" {
			layout = p.DateFormat
		}
		s := file.LastModified.UTC().Format(layout)
		s = strings.ReplaceAll(s, ":", "-")
		return strings.ReplaceAll(s, ".", "-")
	case NumberNone:
		// 去掉扩展名的原始文件名；没有 '.' 的文件名保持不变
		if i := strings.LastIndex(file.Name, "."); i >= 0 {
			return file.Name[:i]
		}
		return file.Name
	default:
		return ""
	}
}

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

// randomToken 把一个 [0,1) 的随机小数展开为 6 位 base-36 数字并转大写。
// 同一批次内可能碰撞，这是已接受的限制。
func (e *Engine) randomToken() string {
	f := e.rnd()
	var b [6]byte
	for i := range b {
		f *= 36
		d := int(f)
		if d > 35 {
			d = 35
		}
		b[i] = base36Digits[d]
		f -= float64(d)
	}
	return strings.ToUpper(string(b[:]))
}

// capitalizeSegments 按字面分隔符切分，每段首字母大写、其余小写后重新拼接。
// 分隔符为空串时整个名字作为单独一段处理。
func capitalizeSegments(s, sep string) string {
	if sep == "" {
		return capitalizeWord(s)
	}
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = capitalizeWord(parts[i])
	}
	return strings.Join(parts, sep)
}

func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	runes := []rune(w)
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}

// PlanBatch 对一组文件依序应用同一模式，返回新旧名字对。
// 返回的切片顺序与输入一致。
func (e *Engine) PlanBatch(files []File, p Pattern) []Pair {
	pairs := make([]Pair, 0, len(files))
	for i, f := range files {
		pairs = append(pairs, Pair{
			OldName: f.Name,
			NewName: e.GenerateNewName(f, i, p),
		})
	}
	return pairs
}
