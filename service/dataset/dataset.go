/*
 * @module service/dataset/dataset
 * @description 表格数据集模型，按顺序保存命名列，提供只读访问和派生操作
 * @architecture DDD领域驱动设计 - 聚合根
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 加载 -> 各阶段派生新数据集 -> 对比/回滚
 * @rules 数据集不可变，所有列等长，列名唯一，列顺序稳定
 * @dependencies golang.org/x/crypto/blake2b
 * @refs service/dataset/column.go, service/preprocess
 */

package dataset

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrDuplicateColumn 列名重复
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrLengthMismatch 列长度不一致
	ErrLengthMismatch = errors.New("column length mismatch")
	// ErrColumnNotFound 列不存在
	ErrColumnNotFound = errors.New("column not found")
)

// Dataset 不可变数据集
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New 由列构造数据集
func New(columns ...*Column) (*Dataset, error) {
	ds := &Dataset{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil || col.Name() == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, exists := ds.index[col.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.Name())
		}
		if i == 0 {
			ds.rows = col.Len()
		} else if col.Len() != ds.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, expected %d", ErrLengthMismatch, col.Name(), col.Len(), ds.rows)
		}
		ds.index[col.Name()] = len(ds.columns)
		ds.columns = append(ds.columns, col)
	}
	return ds, nil
}

// NumRows 行数
func (d *Dataset) NumRows() int { return d.rows }

// NumColumns 列数
func (d *Dataset) NumColumns() int { return len(d.columns) }

// Names 按顺序返回列名
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name()
	}
	return names
}

// Columns 按顺序返回列
func (d *Dataset) Columns() []*Column {
	out := make([]*Column, len(d.columns))
	copy(out, d.columns)
	return out
}

// Column 按列名获取列
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has 判断列是否存在
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// IndexOf 返回列位置，不存在返回-1
func (d *Dataset) IndexOf(name string) int {
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Replace 用零个或多个新列替换指定列，新列位于原列位置
func (d *Dataset) Replace(name string, replacement ...*Column) (*Dataset, error) {
	pos, ok := d.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	cols := make([]*Column, 0, len(d.columns)+len(replacement))
	cols = append(cols, d.columns[:pos]...)
	cols = append(cols, replacement...)
	cols = append(cols, d.columns[pos+1:]...)
	return New(cols...)
}

// Drop 删除列，不存在的列名被忽略
func (d *Dataset) Drop(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	cols := make([]*Column, 0, len(d.columns))
	for _, col := range d.columns {
		if !drop[col.Name()] {
			cols = append(cols, col)
		}
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.rows = d.rows
	}
	return out
}

// TakeRows 按行号抽取生成新数据集
func (d *Dataset) TakeRows(rows []int) *Dataset {
	cols := make([]*Column, len(d.columns))
	for i, col := range d.columns {
		cols[i] = col.Take(rows)
	}
	out, _ := New(cols...)
	out.rows = len(rows)
	return out
}

// MissingCount 全部缺失值个数
func (d *Dataset) MissingCount() int {
	n := 0
	for _, col := range d.columns {
		n += col.MissingCount()
	}
	return n
}

// Fingerprint 计算数据集内容指纹，用于确定性审计
func (d *Dataset) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	buf := make([]byte, 8)
	for _, col := range d.columns {
		h.Write([]byte(col.Name()))
		h.Write([]byte{0})
		h.Write([]byte(col.Type()))
		h.Write([]byte{0})
		for i := 0; i < col.Len(); i++ {
			if col.IsMissing(i) {
				h.Write([]byte{1})
				continue
			}
			if col.Type() == TypeCategorical {
				h.Write([]byte(col.Text(i)))
				h.Write([]byte{0})
				continue
			}
			binary.LittleEndian.PutUint64(buf, math.Float64bits(col.Float(i)))
			h.Write(buf)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
