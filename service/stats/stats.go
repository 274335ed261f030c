/*
 * @module service/stats/stats
 * @description 统计工具函数，提供均值、标准差、分位数、偏度、相关系数等基础统计量
 * @architecture 工具层 - 纯函数统计库
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 输入切片 -> 统计量计算 -> 返回标量
 * @rules 所有函数不修改输入切片，空输入返回0，结果中不出现NaN
 * @dependencies gonum.org/v1/gonum/stat, gonum.org/v1/gonum/floats
 * @refs service/preprocess
 */

package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean 计算均值
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// MeanStd 计算均值和总体标准差
func MeanStd(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	mean, std := stat.PopMeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// Std 计算总体标准差
func Std(x []float64) float64 {
	_, std := MeanStd(x)
	return std
}

// MinMax 返回最小值和最大值
func MinMax(x []float64) (float64, float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return floats.Min(x), floats.Max(x)
}

// Sum 求和
func Sum(x []float64) float64 {
	return floats.Sum(x)
}

// Median 返回中位数（复制后排序）
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

// Percentile 返回第p百分位数 (0 <= p <= 100)，采用线性插值
func Percentile(x []float64, p float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, x)
	sort.Float64s(cp)
	if p <= 0 {
		return cp[0]
	}
	if p >= 100 {
		return cp[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return cp[lower]
	}
	return cp[lower]*(1-weight) + cp[upper]*weight
}

// Quartiles 返回Q1和Q3
func Quartiles(x []float64) (float64, float64) {
	return Percentile(x, 25), Percentile(x, 75)
}

// Mode 返回出现次数最多的值，次数相同时取较小值
func Mode(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	counts := make(map[float64]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	mode, best := 0.0, 0
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	return mode
}

// ModeString 返回出现次数最多的字符串，次数相同时取字典序较小者
func ModeString(x []string) string {
	counts := make(map[string]int, len(x))
	for _, v := range x {
		counts[v]++
	}
	mode, best := "", 0
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	return mode
}

// Skewness 计算样本偏度，方差为0时返回0
func Skewness(x []float64) float64 {
	if len(x) < 3 {
		return 0
	}
	if Std(x) == 0 {
		return 0
	}
	s := stat.Skew(x, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// Correlation 计算皮尔逊相关系数，任一方差为0时返回0
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	if Std(x) == 0 || Std(y) == 0 {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Distinct 返回不同取值的个数
func Distinct(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}
