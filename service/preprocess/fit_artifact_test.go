package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"processor-service/service/dataset"
)

func TestFitArtifactBinaryRoundTrip(t *testing.T) {
	scaler := newArtifact(ArtifactScaler, "amount")
	scaler.Scaler = &ScalerParams{Method: ScaleStandard, Mean: 10, Std: 2}

	imputer := newArtifact(ArtifactImputer, "color")
	imputer.Imputer = &ImputerParams{Strategy: ImputeMode, ColumnType: dataset.TypeCategorical, Text: "red"}

	target := newArtifact(ArtifactTargetEncoder, "city")
	target.Target = &TargetEncoderParams{
		Categories: []string{"a", "b"},
		FullMeans:  []float64{0.2, 0.8},
		FoldMeans:  [][]float64{{0.1, 0.9}, {0.3, 0.7}},
		GlobalMean: 0.5,
		Smoothing:  1,
		Folds:      2,
		Seed:       42,
		Rows:       10,
	}

	tests := []struct {
		name     string
		artifact *FitArtifact
	}{
		{"scaler", scaler},
		{"imputer", imputer},
		{"target encoder", target},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.artifact.MarshalBinary()
			require.NoError(t, err)

			var restored FitArtifact
			require.NoError(t, restored.UnmarshalBinary(data))
			assert.Equal(t, *tt.artifact, restored)
		})
	}

	data, err := EncodeArtifacts([]FitArtifact{*scaler, *imputer, *target})
	require.NoError(t, err)
	decoded, err := DecodeArtifacts(data)
	require.NoError(t, err)
	assert.Equal(t, []FitArtifact{*scaler, *imputer, *target}, decoded)
}

func TestFitArtifactRejectsUnknownVersion(t *testing.T) {
	stale := newArtifact(ArtifactScaler, "amount")
	stale.Scaler = &ScalerParams{Method: ScaleMinMax, Min: 0, Max: 1, FeatureMax: 1}
	stale.Version = ArtifactSchemaVersion + 1

	data, err := stale.MarshalBinary()
	require.NoError(t, err)
	var restored FitArtifact
	assert.ErrorContains(t, restored.UnmarshalBinary(data), "不支持的产物版本")

	data, err = EncodeArtifacts([]FitArtifact{*stale})
	require.NoError(t, err)
	_, err = DecodeArtifacts(data)
	assert.Error(t, err)
}

func TestFitArtifactEmbeddedInMsgpackPayload(t *testing.T) {
	// 作为其他结构的字段编码时同样走MarshalBinary
	a := newArtifact(ArtifactLabelEncoder, "grade")
	a.Label = &LabelEncoderParams{Categories: []string{"low", "high"}}
	payload := struct {
		JobID    string      `msgpack:"job_id"`
		Artifact FitArtifact `msgpack:"artifact"`
	}{JobID: "job-1", Artifact: *a}

	data, err := msgpack.Marshal(payload)
	require.NoError(t, err)

	var out struct {
		JobID    string      `msgpack:"job_id"`
		Artifact FitArtifact `msgpack:"artifact"`
	}
	require.NoError(t, msgpack.Unmarshal(data, &out))
	assert.Equal(t, *a, out.Artifact)
}
