package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/dataset"
)

func TestScalingParamsReplayExactly(t *testing.T) {
	original := dataset.NewNumericColumn("x", withMissing(normalValues(120, 5, 40, 12), 6))
	ds := mustDataset(t, original)

	for _, method := range []ScalingMethod{ScaleStandard, ScaleMinMax, ScaleRobust} {
		t.Run(string(method), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Scaling.Method = method
			opts.Scaling.FeatureMin, opts.Scaling.FeatureMax = -1, 1

			out, records, err := NewScaler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
			require.NoError(t, err)
			require.Len(t, records, 1)

			data, err := records[0].Artifact.MarshalBinary()
			require.NoError(t, err)
			var restored FitArtifact
			require.NoError(t, restored.UnmarshalBinary(data))

			replayed := ScaleColumn(original, *restored.Scaler)
			scaled, _ := out.Column("x")
			for i := 0; i < original.Len(); i++ {
				assert.Equal(t, scaled.IsMissing(i), replayed.IsMissing(i))
				if !scaled.IsMissing(i) {
					assert.Equal(t, scaled.Float(i), replayed.Float(i), "row %d", i)
				}
			}
		})
	}
}

func TestMinMaxConstantColumn(t *testing.T) {
	constant := make([]float64, 10)
	for i := range constant {
		constant[i] = 7
	}
	ds := mustDataset(t, dataset.NewNumericColumn("c", constant))
	opts := DefaultOptions()
	opts.Scaling.Method = ScaleMinMax

	out, _, err := NewScaler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	col, _ := out.Column("c")
	for _, v := range col.PresentFloats() {
		assert.Equal(t, 0.0, v)
	}
}

func TestScalerSkipsTargetIgnoredAndBinary(t *testing.T) {
	binary := make([]float64, 30)
	for i := range binary {
		binary[i] = float64(i % 2)
	}
	ds := mustDataset(t,
		dataset.NewNumericColumn("x", normalValues(30, 1, 5, 2)),
		dataset.NewNumericColumn("id", normalValues(30, 2, 100, 30)),
		dataset.NewNumericColumn("onehot_like", binary),
		dataset.NewBooleanColumn("flag", binary),
		dataset.NewNumericColumn("y", normalValues(30, 3, 0, 1)),
	)
	opts := DefaultOptions()
	opts.TargetColumn = "y"
	opts.ColumnsToIgnore = []string{"id"}

	_, records, err := NewScaler(opts).Apply(ds, ColumnProfiler{}.Profile(ds))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"x"}, records[0].Columns)
}
