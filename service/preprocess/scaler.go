/*
 * @module service/preprocess/scaler
 * @description 数值列缩放：standard / minmax / robust
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 拟合参数 -> ScalerParams.Apply -> 记录参数到FitArtifact
 * @rules 拟合与重放共用ScalerParams.Apply，保证参数重放结果与训练阶段完全一致；
 *        目标列、忽略列、布尔/0-1列与时间列不缩放
 * @dependencies processor-service/service/stats
 * @refs service/preprocess/fit_artifact.go, service/preprocess/replay.go
 */

package preprocess

import (
	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// Scaler 缩放器
type Scaler struct {
	Options ScalingOptions
	Target  string
	Ignore  map[string]bool
}

// NewScaler 由流水线配置创建缩放器
func NewScaler(opts Options) *Scaler {
	return &Scaler{Options: opts.Scaling, Target: opts.TargetColumn, Ignore: opts.ignoreSet()}
}

// Fit 在给定取值上拟合缩放参数
func (s *Scaler) Fit(values []float64) ScalerParams {
	p := ScalerParams{Method: s.Options.Method}
	switch s.Options.Method {
	case ScaleStandard:
		p.Mean, p.Std = stats.MeanStd(values)
		if p.Std == 0 {
			p.Std = 1
		}
	case ScaleMinMax:
		p.Min, p.Max = stats.MinMax(values)
		p.FeatureMin, p.FeatureMax = s.Options.FeatureMin, s.Options.FeatureMax
	case ScaleRobust:
		p.Median = stats.Median(values)
		q1, q3 := stats.Quartiles(values)
		p.IQR = q3 - q1
		if p.IQR == 0 {
			p.IQR = 1
		}
	}
	return p
}

func (s *Scaler) eligible(col *dataset.Column, p ColumnProfile) bool {
	if col.Name() == s.Target || s.Ignore[col.Name()] {
		return false
	}
	return col.Type() == dataset.TypeNumeric && p.Class == ClassNumeric
}

// Apply 缩放全部可缩放列
func (s *Scaler) Apply(ds *dataset.Dataset, profiles Profiles) (*dataset.Dataset, []TransformationRecord, error) {
	if s.Options.Method == ScaleNone {
		return ds, nil, nil
	}
	var records []TransformationRecord
	replaced := make(map[string]*dataset.Column)
	for _, col := range ds.Columns() {
		if !s.eligible(col, profiles[col.Name()]) {
			continue
		}
		params := s.Fit(col.PresentFloats())
		scaled := ScaleColumn(col, params)
		replaced[col.Name()] = scaled

		artifact := newArtifact(ArtifactScaler, col.Name())
		artifact.Scaler = &params
		records = append(records, TransformationRecord{
			Stage:      StageScaling,
			Kind:       KindScale,
			Columns:    []string{col.Name()},
			Method:     string(params.Method),
			Params:     scalerParamMap(params),
			Before:     summarize(col),
			After:      summarize(scaled),
			RowsBefore: ds.NumRows(),
			RowsAfter:  ds.NumRows(),
			Artifact:   artifact,
		})
	}
	out, err := replaceColumns(ds, replaced)
	if err != nil {
		return nil, records, NewStageError(KindInternal, StageScaling, "", nil, err)
	}
	return out, records, nil
}

// ScaleColumn 使用已拟合参数缩放单列
func ScaleColumn(col *dataset.Column, params ScalerParams) *dataset.Column {
	values := col.Floats()
	for i, v := range values {
		values[i] = params.Apply(v)
	}
	return dataset.NewNumericColumn(col.Name(), values)
}

func scalerParamMap(p ScalerParams) map[string]any {
	switch p.Method {
	case ScaleStandard:
		return map[string]any{"mean": p.Mean, "std": p.Std}
	case ScaleMinMax:
		return map[string]any{"min": p.Min, "max": p.Max, "feature_range": []float64{p.FeatureMin, p.FeatureMax}}
	case ScaleRobust:
		return map[string]any{"median": p.Median, "iqr": p.IQR}
	}
	return nil
}
