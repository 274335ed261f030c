/*
 * @module service/mlmodel/tree
 * @description CART决策树，分类使用基尼不纯度，回归使用平方误差
 * @architecture 参考模型 - 特征重要性估计与性能验证共用
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 样本行 -> 递归划分 -> 叶子预测值；划分增益累计为特征重要性
 * @rules 随机性只来自调用方传入的rng，增益相同时保留先遍历到的特征，保证结果可复现
 * @dependencies math/rand, sort
 * @refs service/mlmodel/forest.go
 */

package mlmodel

import (
	"math"
	"math/rand"
	"sort"
)

const minGain = 1e-12

type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

// Tree 决策树
type Tree struct {
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int
	Classification bool
	NumClasses     int

	root        *node
	importances []float64
}

// Fit 在X的指定行上训练，rows允许重复（自助采样）
func (t *Tree) Fit(X [][]float64, y []float64, rows []int, rng *rand.Rand) {
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	nfeat := 0
	if len(X) > 0 {
		nfeat = len(X[0])
	}
	t.importances = make([]float64, nfeat)
	t.root = t.build(X, y, rows, 0, rng)
}

// Predict 预测单个样本
func (t *Tree) Predict(x []float64) float64 {
	n := t.root
	for n != nil && !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	if n == nil {
		return 0
	}
	return n.value
}

// Importances 未归一化的特征重要性（加权不纯度下降之和）
func (t *Tree) Importances() []float64 {
	out := make([]float64, len(t.importances))
	copy(out, t.importances)
	return out
}

func (t *Tree) build(X [][]float64, y []float64, rows []int, depth int, rng *rand.Rand) *node {
	impurity := t.impurity(y, rows)
	leaf := &node{leaf: true, value: t.leafValue(y, rows)}
	if impurity <= minGain || len(rows) < 2*t.MinSamplesLeaf || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return leaf
	}

	nfeat := len(t.importances)
	features := make([]int, nfeat)
	for i := range features {
		features[i] = i
	}
	if t.MaxFeatures > 0 && t.MaxFeatures < nfeat {
		rng.Shuffle(nfeat, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:t.MaxFeatures]
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, minGain
	for _, f := range features {
		threshold, gain, ok := t.bestSplit(X, y, rows, f, impurity)
		if ok && gain > bestGain {
			bestFeature, bestThreshold, bestGain = f, threshold, gain
		}
	}
	if bestFeature < 0 {
		return leaf
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if X[r][bestFeature] <= bestThreshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	t.importances[bestFeature] += bestGain
	return &node{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      t.build(X, y, left, depth+1, rng),
		right:     t.build(X, y, right, depth+1, rng),
	}
}

// bestSplit 在单个特征上扫描所有相邻不同取值之间的切分点
// impurity为父节点的总不纯度（样本数加权），返回的gain同样按样本数加权
func (t *Tree) bestSplit(X [][]float64, y []float64, rows []int, f int, impurity float64) (float64, float64, bool) {
	sorted := make([]int, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return X[sorted[i]][f] < X[sorted[j]][f] })

	n := len(sorted)
	var (
		leftCounts, rightCounts []float64
		leftSum, leftSq         float64
		totalSum, totalSq       float64
	)
	if t.Classification {
		leftCounts = make([]float64, t.NumClasses)
		rightCounts = make([]float64, t.NumClasses)
		for _, r := range sorted {
			rightCounts[int(y[r])]++
		}
	} else {
		for _, r := range sorted {
			totalSum += y[r]
			totalSq += y[r] * y[r]
		}
	}

	found := false
	bestThreshold, bestGain := 0.0, 0.0
	for i := 0; i < n-1; i++ {
		r := sorted[i]
		if t.Classification {
			leftCounts[int(y[r])]++
			rightCounts[int(y[r])]--
		} else {
			leftSum += y[r]
			leftSq += y[r] * y[r]
		}
		nl, nr := i+1, n-i-1
		if nl < t.MinSamplesLeaf || nr < t.MinSamplesLeaf {
			continue
		}
		a, b := X[r][f], X[sorted[i+1]][f]
		if a == b {
			continue
		}

		var child float64
		if t.Classification {
			child = gini(leftCounts, nl) + gini(rightCounts, nr)
		} else {
			child = sse(leftSum, leftSq, nl) + sse(totalSum-leftSum, totalSq-leftSq, nr)
		}
		gain := impurity - child
		if !found || gain > bestGain {
			threshold := (a + b) / 2
			if threshold >= b {
				threshold = a
			}
			found, bestThreshold, bestGain = true, threshold, gain
		}
	}
	return bestThreshold, bestGain, found
}

// impurity 样本数加权的不纯度
func (t *Tree) impurity(y []float64, rows []int) float64 {
	if t.Classification {
		counts := make([]float64, t.NumClasses)
		for _, r := range rows {
			counts[int(y[r])]++
		}
		return gini(counts, len(rows))
	}
	var sum, sq float64
	for _, r := range rows {
		sum += y[r]
		sq += y[r] * y[r]
	}
	return sse(sum, sq, len(rows))
}

func (t *Tree) leafValue(y []float64, rows []int) float64 {
	if len(rows) == 0 {
		return 0
	}
	if t.Classification {
		counts := make([]float64, t.NumClasses)
		for _, r := range rows {
			counts[int(y[r])]++
		}
		return float64(argmax(counts))
	}
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	return sum / float64(len(rows))
}

// gini 返回 n * Gini，便于与子节点直接相加
func gini(counts []float64, n int) float64 {
	if n == 0 {
		return 0
	}
	total := float64(n)
	sumSq := 0.0
	for _, c := range counts {
		sumSq += c * c
	}
	return total - sumSq/total
}

// sse 平方误差和
func sse(sum, sq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Max(0, sq-sum*sum/float64(n))
}

// argmax 计数相同时取下标较小者
func argmax(counts []float64) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}
