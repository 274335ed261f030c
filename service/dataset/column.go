/*
 * @module service/dataset/column
 * @description 数据列模型，保存列名、列类型、取值与缺失掩码
 * @architecture DDD领域驱动设计 - 值对象
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 构造 -> 只读访问 -> 派生新列
 * @rules 列创建后不可变，所有变换通过构造新列完成
 * @dependencies strconv, time
 * @refs service/dataset/dataset.go
 */

package dataset

import (
	"math"
	"strconv"
	"time"
)

// ColumnType 列类型
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeBoolean     ColumnType = "boolean"
	TypeDatetime    ColumnType = "datetime"
)

// Column 数据列
// 数值、布尔、时间列的取值保存在floats中（时间为Unix秒），分类列保存在texts中
type Column struct {
	name    string
	typ     ColumnType
	floats  []float64
	texts   []string
	missing []bool
}

// NewNumericColumn 创建数值列，NaN视为缺失
func NewNumericColumn(name string, values []float64) *Column {
	return newFloatColumn(name, TypeNumeric, values)
}

// NewBooleanColumn 创建布尔列（0/1），NaN视为缺失，非零值归一为1
func NewBooleanColumn(name string, values []float64) *Column {
	col := newFloatColumn(name, TypeBoolean, values)
	for i, v := range col.floats {
		if !col.missing[i] && v != 0 {
			col.floats[i] = 1
		}
	}
	return col
}

// NewDatetimeColumn 创建时间列，零值时间视为缺失
func NewDatetimeColumn(name string, values []time.Time) *Column {
	floats := make([]float64, len(values))
	for i, t := range values {
		if t.IsZero() {
			floats[i] = math.NaN()
			continue
		}
		floats[i] = float64(t.Unix())
	}
	return newFloatColumn(name, TypeDatetime, floats)
}

// NewCategoricalColumn 创建分类列，空字符串视为缺失
func NewCategoricalColumn(name string, values []string) *Column {
	col := &Column{
		name:    name,
		typ:     TypeCategorical,
		texts:   make([]string, len(values)),
		missing: make([]bool, len(values)),
	}
	copy(col.texts, values)
	for i, v := range values {
		col.missing[i] = v == ""
	}
	return col
}

func newFloatColumn(name string, typ ColumnType, values []float64) *Column {
	col := &Column{
		name:    name,
		typ:     typ,
		floats:  make([]float64, len(values)),
		missing: make([]bool, len(values)),
	}
	copy(col.floats, values)
	for i, v := range values {
		if math.IsNaN(v) {
			col.missing[i] = true
		}
	}
	return col
}

// Name 列名
func (c *Column) Name() string { return c.name }

// Type 列类型
func (c *Column) Type() ColumnType { return c.typ }

// Len 行数
func (c *Column) Len() int { return len(c.missing) }

// IsNumeric 是否为可直接参与数值计算的列（数值、布尔、时间）
func (c *Column) IsNumeric() bool { return c.typ != TypeCategorical }

// IsMissing 判断第i行是否缺失
func (c *Column) IsMissing(i int) bool { return c.missing[i] }

// Float 第i行的数值，缺失或分类列返回NaN
func (c *Column) Float(i int) float64 {
	if c.typ == TypeCategorical || c.missing[i] {
		return math.NaN()
	}
	return c.floats[i]
}

// Text 第i行的文本表示，缺失返回空字符串
func (c *Column) Text(i int) string {
	if c.missing[i] {
		return ""
	}
	switch c.typ {
	case TypeCategorical:
		return c.texts[i]
	case TypeBoolean:
		if c.floats[i] != 0 {
			return "true"
		}
		return "false"
	case TypeDatetime:
		return time.Unix(int64(c.floats[i]), 0).UTC().Format(time.RFC3339)
	default:
		return strconv.FormatFloat(c.floats[i], 'g', -1, 64)
	}
}

// Floats 返回数值副本，缺失位置为NaN
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// Texts 返回文本副本，缺失位置为空字符串
func (c *Column) Texts() []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.Text(i)
	}
	return out
}

// PresentFloats 返回非缺失数值
func (c *Column) PresentFloats() []float64 {
	out := make([]float64, 0, c.Len())
	if c.typ == TypeCategorical {
		return out
	}
	for i, v := range c.floats {
		if !c.missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// PresentTexts 返回非缺失文本
func (c *Column) PresentTexts() []string {
	out := make([]string, 0, c.Len())
	for i := range c.missing {
		if !c.missing[i] {
			out = append(out, c.Text(i))
		}
	}
	return out
}

// MissingCount 缺失值个数
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.missing {
		if m {
			n++
		}
	}
	return n
}

// DistinctCount 非缺失取值的不同个数
func (c *Column) DistinctCount() int {
	seen := make(map[string]struct{})
	for i := range c.missing {
		if !c.missing[i] {
			seen[c.Text(i)] = struct{}{}
		}
	}
	return len(seen)
}

// Take 按行号抽取生成新列
func (c *Column) Take(rows []int) *Column {
	out := &Column{name: c.name, typ: c.typ, missing: make([]bool, len(rows))}
	if c.typ == TypeCategorical {
		out.texts = make([]string, len(rows))
	} else {
		out.floats = make([]float64, len(rows))
	}
	for j, r := range rows {
		out.missing[j] = c.missing[r]
		if c.typ == TypeCategorical {
			out.texts[j] = c.texts[r]
		} else {
			out.floats[j] = c.floats[r]
		}
	}
	return out
}

// WithFloats 返回同名同类型的新列，取值替换为values，NaN视为缺失
// 分类列不适用，调用方应使用WithTexts
func (c *Column) WithFloats(values []float64) *Column {
	if c.typ == TypeBoolean {
		return NewBooleanColumn(c.name, values)
	}
	return newFloatColumn(c.name, c.typ, values)
}

// WithTexts 返回同名分类列，取值替换为values
func (c *Column) WithTexts(values []string) *Column {
	return NewCategoricalColumn(c.name, values)
}

// Renamed 返回改名后的副本
func (c *Column) Renamed(name string) *Column {
	out := c.Take(identity(c.Len()))
	out.name = name
	return out
}

func identity(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
