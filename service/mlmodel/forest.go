/*
 * @module service/mlmodel/forest
 * @description 随机森林，用于特征重要性估计与性能验证的参考模型
 * @architecture 参考模型 - 有界并发训练
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 自助采样 -> 并发训练各树 -> 投票/均值预测 -> 重要性汇总
 * @rules 第i棵树使用Seed+i作为随机源，结果与调度顺序无关；每棵树开始前检查上下文
 * @dependencies golang.org/x/sync/errgroup
 * @refs service/mlmodel/tree.go, service/preprocess/feature_selector.go
 */

package mlmodel

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyTrainingSet 训练集为空
var ErrEmptyTrainingSet = errors.New("empty training set")

// Forest 随机森林
type Forest struct {
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    int // 0表示分类取sqrt(p)，回归取p/3
	Classification bool
	NumClasses     int
	Seed           int64
	Workers        int

	trees       []*Tree
	importances []float64
}

// Fit 训练森林，ctx取消时尚未开始的树不再训练
func (f *Forest) Fit(ctx context.Context, X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 || len(y) != n {
		return ErrEmptyTrainingSet
	}
	nfeat := len(X[0])
	if f.Trees < 1 {
		f.Trees = 1
	}
	if f.Classification && f.NumClasses < 2 {
		f.NumClasses = 2
	}
	maxFeatures := f.MaxFeatures
	if maxFeatures <= 0 {
		if f.Classification {
			maxFeatures = int(math.Ceil(math.Sqrt(float64(nfeat))))
		} else {
			maxFeatures = nfeat / 3
		}
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	workers := f.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*Tree, f.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < f.Trees; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(f.Seed + int64(i)))
			rows := make([]int, n)
			for j := range rows {
				rows[j] = rng.Intn(n)
			}
			tree := &Tree{
				MaxDepth:       f.MaxDepth,
				MinSamplesLeaf: f.MinSamplesLeaf,
				MaxFeatures:    maxFeatures,
				Classification: f.Classification,
				NumClasses:     f.NumClasses,
			}
			tree.Fit(X, y, rows, rng)
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.trees = trees
	f.importances = make([]float64, nfeat)
	for _, tree := range trees {
		imp := tree.Importances()
		total := 0.0
		for _, v := range imp {
			total += v
		}
		if total == 0 {
			continue
		}
		for j, v := range imp {
			f.importances[j] += v / total
		}
	}
	normalize(f.importances)
	return nil
}

// Predict 批量预测；分类为多数投票（平票取较小类别），回归为均值
func (f *Forest) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		if f.Classification {
			votes := make([]float64, f.NumClasses)
			for _, tree := range f.trees {
				c := int(tree.Predict(x))
				if c >= 0 && c < len(votes) {
					votes[c]++
				}
			}
			out[i] = float64(argmax(votes))
			continue
		}
		sum := 0.0
		for _, tree := range f.trees {
			sum += tree.Predict(x)
		}
		if len(f.trees) > 0 {
			out[i] = sum / float64(len(f.trees))
		}
	}
	return out
}

// Importances 归一化后的特征重要性，总和为1（全部为0时保持为0）
func (f *Forest) Importances() []float64 {
	out := make([]float64, len(f.importances))
	copy(out, f.importances)
	return out
}

func normalize(values []float64) {
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
