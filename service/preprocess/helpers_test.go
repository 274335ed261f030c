package preprocess

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"processor-service/service/dataset"
)

func mustDataset(t *testing.T, cols ...*dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(cols...)
	require.NoError(t, err)
	return ds
}

// normalValues 生成确定性的正态分布样本
func normalValues(n int, seed int64, mean, std float64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + r.NormFloat64()*std
	}
	return out
}

// withMissing 将均匀分布的missing个位置置为缺失
func withMissing(values []float64, missing int) []float64 {
	out := append([]float64(nil), values...)
	if missing == 0 {
		return out
	}
	step := len(out) / missing
	for i := 0; i < missing; i++ {
		out[i*step] = math.NaN()
	}
	return out
}

// cycleLabels 循环生成分类标签
func cycleLabels(n int, labels ...string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = labels[i%len(labels)]
	}
	return out
}

// randomDataset 生成包含各类型列与随机缺失的数据集
func randomDataset(t *testing.T, n int, seed int64) *dataset.Dataset {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	missingRatio := func() int { return int(r.Float64() * 0.7 * float64(n)) }

	num := normalValues(n, seed, 10, 3)
	skewed := make([]float64, n)
	for i := range skewed {
		skewed[i] = math.Exp(r.Float64() * 5)
	}
	flags := make([]float64, n)
	for i := range flags {
		flags[i] = float64(r.Intn(2))
	}
	cities := make([]string, n)
	for i := range cities {
		cities[i] = fmt.Sprintf("city_%d", r.Intn(4))
	}

	cats := make([]string, n)
	copy(cats, cities)
	catMissing := missingRatio()
	for i := 0; i < catMissing; i++ {
		cats[r.Intn(n)] = ""
	}
	return mustDataset(t,
		dataset.NewNumericColumn("num", withMissing(num, missingRatio())),
		dataset.NewNumericColumn("skewed", withMissing(skewed, missingRatio())),
		dataset.NewBooleanColumn("flag", withMissing(flags, missingRatio())),
		dataset.NewCategoricalColumn("city", cats),
	)
}

// classificationDataset 目标由分类列与数值列共同决定
func classificationDataset(t *testing.T, n int, seed int64) *dataset.Dataset {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	amount := make([]float64, n)
	noise := make([]float64, n)
	label := make([]string, n)
	group := cycleLabels(n, "a", "b", "c")
	for i := range amount {
		amount[i] = r.Float64() * 100
		noise[i] = r.NormFloat64()
		switch {
		case group[i] == "a":
			label[i] = "yes"
		case group[i] == "b" && amount[i] > 50:
			label[i] = "yes"
		default:
			label[i] = "no"
		}
	}
	return mustDataset(t,
		dataset.NewNumericColumn("amount", amount),
		dataset.NewNumericColumn("noise", noise),
		dataset.NewCategoricalColumn("group", group),
		dataset.NewCategoricalColumn("label", label),
	)
}
