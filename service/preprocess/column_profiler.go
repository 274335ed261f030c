/*
 * @module service/preprocess/column_profiler
 * @description 列画像，计算缺失率、基数、类型分类与数值摘要
 * @architecture 纯函数组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 数据集 -> 列画像映射
 * @rules 无副作用且幂等，低基数数值列标记为分类候选
 * @dependencies processor-service/service/stats
 * @refs service/preprocess/missing_value_handler.go
 */

package preprocess

import (
	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// ColumnClass 列的处理类别
type ColumnClass string

const (
	ClassNumeric     ColumnClass = "numeric"
	ClassCategorical ColumnClass = "categorical"
	ClassBoolean     ColumnClass = "boolean"
)

// 低基数判定：不同取值不超过lowCardinalityMax且占比不超过lowCardinalityRatio
const (
	lowCardinalityMax   = 10
	lowCardinalityRatio = 0.05
)

// NumericSummary 数值摘要
type NumericSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Skew   float64 `json:"skew"`
}

// ColumnProfile 列画像
type ColumnProfile struct {
	Name           string             `json:"name"`
	Type           dataset.ColumnType `json:"type"`
	Class          ColumnClass        `json:"class"`
	Count          int                `json:"count"`
	MissingCount   int                `json:"missing_count"`
	MissingPct     float64            `json:"missing_pct"`
	UniqueCount    int                `json:"unique_count"`
	UniquePct      float64            `json:"unique_pct"`
	LowCardinality bool               `json:"low_cardinality"`
	Numeric        *NumericSummary    `json:"numeric,omitempty"`
}

// MissingRatio 缺失比例 (0-1)
func (p ColumnProfile) MissingRatio() float64 { return p.MissingPct / 100 }

// Profiles 列名到画像的映射
type Profiles map[string]ColumnProfile

// ColumnProfiler 列画像计算器
type ColumnProfiler struct{}

// Profile 计算数据集所有列的画像
func (ColumnProfiler) Profile(ds *dataset.Dataset) Profiles {
	out := make(Profiles, ds.NumColumns())
	for _, col := range ds.Columns() {
		out[col.Name()] = ProfileColumn(col)
	}
	return out
}

// ProfileColumn 计算单列画像
func ProfileColumn(col *dataset.Column) ColumnProfile {
	n := col.Len()
	p := ColumnProfile{
		Name:         col.Name(),
		Type:         col.Type(),
		Count:        n,
		MissingCount: col.MissingCount(),
		UniqueCount:  col.DistinctCount(),
	}
	if n > 0 {
		p.MissingPct = float64(p.MissingCount) / float64(n) * 100
		p.UniquePct = float64(p.UniqueCount) / float64(n) * 100
	}

	switch col.Type() {
	case dataset.TypeCategorical:
		p.Class = ClassCategorical
		p.LowCardinality = p.UniqueCount <= lowCardinalityMax
	case dataset.TypeBoolean:
		p.Class = ClassBoolean
		p.LowCardinality = true
	default:
		p.Class = ClassNumeric
		present := col.PresentFloats()
		if col.Type() == dataset.TypeNumeric && isBinary(present) {
			p.Class = ClassBoolean
		}
		if len(present) > 0 {
			mean, std := stats.MeanStd(present)
			lo, hi := stats.MinMax(present)
			p.Numeric = &NumericSummary{
				Min:    lo,
				Max:    hi,
				Mean:   mean,
				Median: stats.Median(present),
				Std:    std,
				Skew:   stats.Skewness(present),
			}
		}
		nonMissing := n - p.MissingCount
		p.LowCardinality = p.UniqueCount <= lowCardinalityMax &&
			nonMissing > 0 && float64(p.UniqueCount)/float64(nonMissing) <= lowCardinalityRatio
	}
	return p
}

// isBinary 所有取值均为0或1且至少出现一个
func isBinary(values []float64) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v != 0 && v != 1 {
			return false
		}
	}
	return true
}
