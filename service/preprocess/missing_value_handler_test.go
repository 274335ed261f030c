package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/dataset"
)

func TestAutoImputationLeavesNoMissingValues(t *testing.T) {
	opts := DefaultOptions()
	for seed := int64(1); seed <= 25; seed++ {
		ds := randomDataset(t, 80, seed)
		handler := NewMissingValueHandler(opts)
		out, records, err := handler.Apply(ds, ColumnProfiler{}.Profile(ds))
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, ds.NumRows(), out.NumRows())

		for _, col := range out.Columns() {
			assert.Zero(t, col.MissingCount(), "seed %d column %s", seed, col.Name())
		}
		for _, r := range records {
			if r.Kind == KindDropColumn {
				assert.False(t, out.Has(r.Columns[0]))
				assert.Equal(t, ArtifactColumnDrop, r.Artifact.Kind)
			}
		}
	}
}

func TestAutoImputationUsesMedianForSkewedColumns(t *testing.T) {
	skewed := make([]float64, 60)
	linear := make([]float64, 60)
	for i := range skewed {
		skewed[i] = math.Exp(float64(i) / 10)
		linear[i] = float64(i)
	}
	for _, i := range []int{5, 20, 40} {
		skewed[i] = math.NaN()
		linear[i] = math.NaN()
	}
	ds := mustDataset(t,
		dataset.NewNumericColumn("skewed", skewed),
		dataset.NewNumericColumn("linear", linear),
	)

	_, records, err := NewMissingValueHandler(DefaultOptions()).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, string(ImputeMedian), records[0].Method)
	assert.Equal(t, string(ImputeMean), records[1].Method)
	assert.Equal(t, ImputeMean, records[1].Artifact.Imputer.Strategy)
	assert.Equal(t, 3, records[0].Params["missing_count"])
}

func TestDropRowBelowMinimumFails(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingValues.NumericalStrategy = ImputeDropRow
	ds := mustDataset(t, dataset.NewNumericColumn("x", withMissing(normalValues(60, 3, 0, 1), 15)))

	_, records, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)
	last := records[len(records)-1]
	assert.Equal(t, KindDropRows, last.Kind)
	assert.Equal(t, -15, last.RowDelta())
}

func TestDropRowRemovesRowsTogether(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingValues.Strategy = ImputeDropRow
	opts.MissingValues.NumericalStrategy = ImputeAuto
	opts.MissingValues.CategoricalStrategy = ImputeAuto
	opts.MinRows = 10

	labels := cycleLabels(60, "x", "y")
	labels[0] = ""
	labels[3] = ""
	ds := mustDataset(t,
		dataset.NewNumericColumn("a", withMissing(normalValues(60, 5, 0, 1), 3)),
		dataset.NewCategoricalColumn("b", labels),
	)
	out, records, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	// a缺失第0、20、40行，b缺失第0、3行
	assert.Equal(t, 56, out.NumRows())
	assert.Zero(t, out.MissingCount())
	last := records[len(records)-1]
	assert.Equal(t, []string{"a", "b"}, last.Columns)
	assert.Equal(t, 60, last.RowsBefore)
	assert.Equal(t, 56, last.RowsAfter)
}

func TestUnsupportedStrategyIsSkippedAndRecorded(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingValues.CategoricalStrategy = ImputeMean
	labels := cycleLabels(60, "x", "y")
	labels[7] = ""
	ds := mustDataset(t, dataset.NewCategoricalColumn("b", labels))

	out, records, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, KindSkipColumn, records[0].Kind)
	assert.NotEmpty(t, records[0].Reason)
	col, _ := out.Column("b")
	assert.Equal(t, 1, col.MissingCount())
}

func TestMissingTargetRowsAreDropped(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetColumn = "y"
	y := normalValues(70, 9, 0, 1)
	y[1], y[2] = math.NaN(), math.NaN()
	ds := mustDataset(t,
		dataset.NewNumericColumn("x", normalValues(70, 8, 0, 1)),
		dataset.NewNumericColumn("y", y),
	)
	out, records, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	assert.Equal(t, 68, out.NumRows())
	require.Len(t, records, 1)
	assert.Equal(t, []string{"y"}, records[0].Columns)
	assert.Equal(t, -2, records[0].RowDelta())
}

func TestConstantFillValue(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingValues.Strategy = ImputeConstant
	opts.MissingValues.NumericalStrategy = ImputeConstant
	opts.MissingValues.CategoricalStrategy = ImputeConstant
	opts.MissingValues.FillValue = "0"

	labels := cycleLabels(60, "x", "y")
	labels[4] = ""
	ds := mustDataset(t,
		dataset.NewNumericColumn("a", withMissing(normalValues(60, 1, 5, 1), 2)),
		dataset.NewCategoricalColumn("b", labels),
	)
	out, _, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	a, _ := out.Column("a")
	assert.Equal(t, 0.0, a.Float(0))
	b, _ := out.Column("b")
	assert.Equal(t, "0", b.Text(4))
}

func TestFullyMissingColumnsAreDropped(t *testing.T) {
	const rows = 60
	empty := make([]string, rows)
	nan := make([]float64, rows)
	for i := range nan {
		nan[i] = math.NaN()
	}
	ds := mustDataset(t,
		dataset.NewNumericColumn("amount", normalValues(rows, 3, 50, 5)),
		dataset.NewCategoricalColumn("c", empty),
		dataset.NewNumericColumn("z", nan),
	)

	for _, strategy := range []ImputationStrategy{ImputeAuto, ImputeMean, ImputeMode} {
		t.Run(string(strategy), func(t *testing.T) {
			opts := DefaultOptions()
			opts.MissingValues.MaxMissingRatio = 1
			opts.MissingValues.NumericalStrategy = strategy
			require.NoError(t, opts.Validate())

			out, records, err := NewMissingValueHandler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
			require.NoError(t, err)
			assert.Equal(t, []string{"amount"}, out.Names())
			for _, col := range out.Columns() {
				assert.Zero(t, col.MissingCount(), col.Name())
			}

			require.Len(t, records, 2)
			for _, r := range records {
				assert.Equal(t, KindDropColumn, r.Kind)
				assert.Equal(t, "all_missing", r.Artifact.Drop.Reason)
				assert.Equal(t, 1.0, r.Artifact.Drop.MissingRatio)
			}
		})
	}
}
