package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"processor-service/service/preprocess"
)

func TestProcessingMetaMatchesParsers(t *testing.T) {
	parsers := map[string]func(string) error{
		"imputation_strategies": func(s string) error { _, err := preprocess.ParseImputationStrategy("strategy", s); return err },
		"outlier_methods":       func(s string) error { _, err := preprocess.ParseOutlierMethod(s); return err },
		"outlier_treatments":    func(s string) error { _, err := preprocess.ParseOutlierTreatment(s); return err },
		"scaling_methods":       func(s string) error { _, err := preprocess.ParseScalingMethod(s); return err },
		"encoding_methods":      func(s string) error { _, err := preprocess.ParseEncodingMethod(s); return err },
		"selection_methods":     func(s string) error { _, err := preprocess.ParseSelectionMethod(s); return err },
	}
	for category, parse := range parsers {
		fields := ProcessingMetas[category]
		require.NotEmpty(t, fields, category)
		defaults := 0
		for _, f := range fields {
			assert.NoError(t, parse(f.Name), "%s/%s", category, f.Name)
			for _, alias := range f.Aliases {
				assert.NoError(t, parse(alias), "%s/%s", category, alias)
			}
			if f.Default {
				defaults++
			}
		}
		assert.Equal(t, 1, defaults, "%s 应只有一个默认项", category)
	}
}

func TestLookup(t *testing.T) {
	f, ok := Lookup(ScalingMethods, "zscore")
	require.True(t, ok)
	assert.Equal(t, string(preprocess.ScaleStandard), f.Name)

	f, ok = Lookup(OutlierTreatments, "remove")
	require.True(t, ok)
	assert.Equal(t, "删除行", f.DisplayName)

	_, ok = Lookup(OutlierTreatments, "cap")
	assert.False(t, ok)
}

func TestIsTerminalProcessingStatus(t *testing.T) {
	assert.True(t, IsTerminalProcessingStatus(ProcessingStatusCompleted))
	assert.True(t, IsTerminalProcessingStatus(ProcessingStatusCancelled))
	assert.False(t, IsTerminalProcessingStatus(ProcessingStatusRunning))
	assert.False(t, IsTerminalProcessingStatus(ProcessingStatusProcessing))
}
