/*
 * @module service/preprocess/matrix
 * @description 数据集到模型输入矩阵的转换，以及任务类型推断
 * @architecture 适配器 - 数据集与参考模型之间的转换
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 数据集 -> 特征矩阵 + 目标向量
 * @rules 分类特征按字典序序号编码，缺失值用该列非缺失中位数填补，分类目标按排序后的类别下标编码
 * @dependencies processor-service/service/stats
 * @refs service/preprocess/feature_selector.go, service/preprocess/performance_validator.go
 */

package preprocess

import (
	"math"
	"sort"

	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// 整数目标列不同取值不超过该数量时推断为分类任务
const classificationMaxClasses = 10

// InferTask 根据目标列推断任务类型
func InferTask(target *dataset.Column) TaskType {
	switch target.Type() {
	case dataset.TypeCategorical, dataset.TypeBoolean:
		return TaskClassification
	case dataset.TypeDatetime:
		return TaskRegression
	}
	present := target.PresentFloats()
	if len(present) == 0 {
		return TaskRegression
	}
	for _, v := range present {
		if v != math.Trunc(v) {
			return TaskRegression
		}
	}
	if stats.Distinct(present) <= classificationMaxClasses {
		return TaskClassification
	}
	return TaskRegression
}

// TargetVector 目标列的数值表示；分类列返回按字典序排列的类别及其下标
func TargetVector(target *dataset.Column) ([]float64, []string) {
	if target.Type() != dataset.TypeCategorical {
		return target.Floats(), nil
	}
	classes := sortedCategories(target)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]float64, target.Len())
	for i := range y {
		if target.IsMissing(i) {
			y[i] = math.NaN()
			continue
		}
		y[i] = float64(index[target.Text(i)])
	}
	return y, classes
}

// ClassLabels 分类任务的目标向量，取值为0..k-1的类别下标
func ClassLabels(target *dataset.Column) ([]float64, int) {
	if target.Type() == dataset.TypeCategorical {
		y, classes := TargetVector(target)
		return y, len(classes)
	}
	distinct := make(map[float64]struct{})
	for _, v := range target.PresentFloats() {
		distinct[v] = struct{}{}
	}
	values := make([]float64, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Float64s(values)
	index := make(map[float64]int, len(values))
	for i, v := range values {
		index[v] = i
	}
	y := make([]float64, target.Len())
	for i := range y {
		if target.IsMissing(i) {
			y[i] = math.NaN()
			continue
		}
		y[i] = float64(index[target.Float(i)])
	}
	if target.Type() == dataset.TypeBoolean && len(values) < 2 {
		return y, 2
	}
	return y, len(values)
}

// FeatureMatrix 将除exclude外的列转换为行优先矩阵
func FeatureMatrix(ds *dataset.Dataset, exclude map[string]bool) ([][]float64, []string) {
	var (
		names   []string
		columns [][]float64
	)
	for _, col := range ds.Columns() {
		if exclude[col.Name()] {
			continue
		}
		names = append(names, col.Name())
		columns = append(columns, featureValues(col))
	}
	rows := ds.NumRows()
	X := make([][]float64, rows)
	for i := range X {
		X[i] = make([]float64, len(columns))
		for j, values := range columns {
			X[i][j] = values[i]
		}
	}
	return X, names
}

func featureValues(col *dataset.Column) []float64 {
	var values []float64
	if col.Type() == dataset.TypeCategorical {
		values, _ = TargetVector(col)
	} else {
		values = col.Floats()
	}
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == len(values) {
		return values
	}
	fill := stats.Median(present)
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = fill
		}
	}
	return values
}

// featureExclusions 目标列与忽略列不参与建模
func featureExclusions(target string, ignore map[string]bool) map[string]bool {
	exclude := make(map[string]bool, len(ignore)+1)
	for k, v := range ignore {
		exclude[k] = v
	}
	if target != "" {
		exclude[target] = true
	}
	return exclude
}
