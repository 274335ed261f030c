package preprocess

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := map[string]func(*Options){
		"z threshold":       func(o *Options) { o.Outliers.ZThreshold = 0 },
		"missing ratio":     func(o *Options) { o.MissingValues.MaxMissingRatio = 1.5 },
		"min importance":    func(o *Options) { o.Selection.MinImportance = -0.1 },
		"folds":             func(o *Options) { o.Validation.Folds = 1 },
		"feature range":     func(o *Options) { o.Scaling.FeatureMin = 1 },
		"unknown method":    func(o *Options) { o.Scaling.Method = "log" },
		"constant no value": func(o *Options) { o.MissingValues.Strategy = ImputeConstant },
		"target encoding":   func(o *Options) { o.Encoding.Method = EncodeTarget },
		"metric mismatch": func(o *Options) {
			o.Validation.Task = TaskClassification
			o.Validation.Metric = MetricRMSE
		},
		"target ignored": func(o *Options) {
			o.TargetColumn = "y"
			o.ColumnsToIgnore = []string{"id", "y"}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			mutate(&opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.Equal(t, KindInvalidConfiguration, KindOf(err))
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
			assert.NotEqual(t, "数据处理失败，请联系管理员查看日志", UserMessage(err))
		})
	}
}

func TestParseVariantsAcceptAliases(t *testing.T) {
	s, err := ParseImputationStrategy("missing_values.strategy", "most_frequent")
	require.NoError(t, err)
	assert.Equal(t, ImputeMode, s)

	m, err := ParseOutlierMethod("")
	require.NoError(t, err)
	assert.Equal(t, OutlierZScore, m)

	sel, err := ParseSelectionMethod("feature_importance")
	require.NoError(t, err)
	assert.Equal(t, SelectImportance, sel)

	_, err = ParseScalingMethod("quantile")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestKindOfAndUserMessage(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	insufficient := InsufficientData(StageMissingValues, 40, 50)
	assert.ErrorIs(t, insufficient, ErrInsufficientData)
	assert.Contains(t, UserMessage(insufficient), "40")

	internal := NewStageError(KindInternal, StageEncoding, "city", map[string]any{"method": "onehot"}, errors.New("index out of range"))
	assert.NotContains(t, UserMessage(internal), "index out of range")
	assert.Contains(t, internal.Error(), "column=city")
}
