/*
 * @module testutil/datasets
 * @description 确定性合成数据集工厂
 * @architecture 测试基础设施 - 数据工厂
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 固定种子 -> 生成列 -> 组装数据集
 * @rules 相同参数必须生成完全相同的数据集
 * @dependencies processor-service/service/dataset
 * @refs service/pipeline/pipeline_test.go
 */

package testutil

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"processor-service/service/dataset"
)

// DatasetOption 数据集工厂选项
type DatasetOption func(*datasetShape)

type datasetShape struct {
	rows       int
	seed       int64
	missing    int
	categories []string
	withTarget bool
	outliers   []float64
	extraNoise bool
}

// WithRows 行数
func WithRows(n int) DatasetOption { return func(s *datasetShape) { s.rows = n } }

// WithSeed 随机种子
func WithSeed(seed int64) DatasetOption { return func(s *datasetShape) { s.seed = seed } }

// WithMissing amount列的缺失值个数
func WithMissing(n int) DatasetOption { return func(s *datasetShape) { s.missing = n } }

// WithCategories color列的取值集合
func WithCategories(values ...string) DatasetOption {
	return func(s *datasetShape) { s.categories = values }
}

// WithTarget 增加由color决定的label目标列
func WithTarget() DatasetOption { return func(s *datasetShape) { s.withTarget = true } }

// WithOutliers 在amount列开头写入极端值
func WithOutliers(values ...float64) DatasetOption {
	return func(s *datasetShape) { s.outliers = values }
}

// WithNoise 增加与目标无关的noise列
func WithNoise() DatasetOption { return func(s *datasetShape) { s.extraNoise = true } }

// NewDataset 生成包含数值列amount与分类列color的数据集
func NewDataset(t testing.TB, opts ...DatasetOption) *dataset.Dataset {
	t.Helper()
	shape := &datasetShape{rows: 200, seed: 1, categories: []string{"red", "green", "blue"}}
	for _, opt := range opts {
		opt(shape)
	}
	r := rand.New(rand.NewSource(shape.seed))

	amount := make([]float64, shape.rows)
	for i := range amount {
		amount[i] = 100 + r.NormFloat64()*15
	}
	copy(amount, shape.outliers)
	if shape.missing > 0 {
		step := shape.rows / shape.missing
		for i := 0; i < shape.missing; i++ {
			amount[len(shape.outliers)+(i*step)%(shape.rows-len(shape.outliers))] = math.NaN()
		}
	}

	colors := make([]string, shape.rows)
	for i := range colors {
		colors[i] = shape.categories[i%len(shape.categories)]
	}

	cols := []*dataset.Column{
		dataset.NewNumericColumn("amount", amount),
		dataset.NewCategoricalColumn("color", colors),
	}
	if shape.extraNoise {
		noise := make([]float64, shape.rows)
		for i := range noise {
			noise[i] = r.Float64()
		}
		cols = append(cols, dataset.NewNumericColumn("noise", noise))
	}
	if shape.withTarget {
		labels := make([]string, shape.rows)
		for i, c := range colors {
			labels[i] = "no"
			if c == shape.categories[0] {
				labels[i] = "yes"
			}
		}
		cols = append(cols, dataset.NewCategoricalColumn("label", labels))
	}

	ds, err := dataset.New(cols...)
	require.NoError(t, err)
	return ds
}

// DatasetCSV 将数据集编码为CSV
func DatasetCSV(t testing.TB, ds *dataset.Dataset) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, dataset.WriteCSV(&buf, ds))
	return buf.Bytes()
}
