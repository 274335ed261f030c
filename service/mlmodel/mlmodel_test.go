package mlmodel

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separableData(n int, seed int64) ([][]float64, []float64) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		signal := r.Float64() * 10
		X[i] = []float64{signal, r.NormFloat64()}
		if signal > 5 {
			y[i] = 1
		}
	}
	return X, y
}

func TestKFoldPartitionsAllRows(t *testing.T) {
	folds := KFold(23, 5, 42)
	require.Len(t, folds, 5)
	seen := make(map[int]bool)
	for f, fold := range folds {
		assert.True(t, len(fold) == 4 || len(fold) == 5)
		for _, r := range fold {
			assert.False(t, seen[r])
			seen[r] = true
		}
		assert.Len(t, TrainIndices(folds, f), 23-len(fold))
	}
	assert.Len(t, seen, 23)
	assert.Equal(t, folds, KFold(23, 5, 42))
	assert.Len(t, KFold(3, 5, 1), 3)
}

func TestForestLearnsSeparableClasses(t *testing.T) {
	X, y := separableData(200, 1)
	forest := &Forest{Trees: 15, MaxDepth: 5, Classification: true, NumClasses: 2, Seed: 7}
	require.NoError(t, forest.Fit(context.Background(), X, y))

	pred := forest.Predict(X)
	assert.Greater(t, Accuracy(y, pred), 0.95)

	imp := forest.Importances()
	assert.Greater(t, imp[0], imp[1])
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
}

func TestForestIsDeterministicAcrossWorkerCounts(t *testing.T) {
	X, y := separableData(150, 2)
	single := &Forest{Trees: 10, MaxDepth: 4, Classification: true, NumClasses: 2, Seed: 3, Workers: 1}
	parallel := &Forest{Trees: 10, MaxDepth: 4, Classification: true, NumClasses: 2, Seed: 3, Workers: 8}
	require.NoError(t, single.Fit(context.Background(), X, y))
	require.NoError(t, parallel.Fit(context.Background(), X, y))
	assert.Equal(t, single.Importances(), parallel.Importances())
	assert.Equal(t, single.Predict(X), parallel.Predict(X))
}

func TestForestRegressionAndCancellation(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	X := make([][]float64, 120)
	y := make([]float64, 120)
	for i := range X {
		X[i] = []float64{r.Float64() * 4}
		y[i] = 2 * X[i][0]
	}
	forest := &Forest{Trees: 10, MaxDepth: 6, Seed: 1}
	require.NoError(t, forest.Fit(context.Background(), X, y))
	assert.Greater(t, R2(y, forest.Predict(X)), 0.9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, (&Forest{Trees: 5, Seed: 1}).Fit(ctx, X, y), context.Canceled)
	assert.ErrorIs(t, (&Forest{}).Fit(context.Background(), nil, nil), ErrEmptyTrainingSet)
}

func TestMetrics(t *testing.T) {
	yTrue := []float64{1, 0, 1, 1, 0}
	yPred := []float64{1, 0, 0, 1, 1}
	assert.InDelta(t, 0.6, Accuracy(yTrue, yPred), 1e-12)
	// precision 2/3, recall 2/3
	assert.InDelta(t, 2.0/3, F1(yTrue, yPred, 2), 1e-12)

	assert.Equal(t, 1.0, R2([]float64{2, 2}, []float64{2, 2}))
	assert.InDelta(t, 0.0, RMSE([]float64{1, 2}, []float64{1, 2}), 1e-12)
	assert.InDelta(t, 1.0, RMSE([]float64{0, 0}, []float64{1, -1}), 1e-12)

	multiTrue := []float64{0, 1, 2, 2}
	multiPred := []float64{0, 1, 2, 1}
	// class0 f1=1, class1 p=1/2 r=1 f1=2/3, class2 p=1 r=1/2 f1=2/3
	assert.InDelta(t, (1+2.0/3+2.0/3)/3, F1(multiTrue, multiPred, 3), 1e-12)
}
