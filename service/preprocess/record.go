/*
 * @module service/preprocess/record
 * @description 转换记录与审计轨迹
 * @architecture DDD领域驱动设计 - 值对象
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 阶段执行 -> 生成转换记录 -> 追加到审计轨迹
 * @rules 审计轨迹只追加不修改，行数变化必须记录RowsBefore/RowsAfter
 * @dependencies processor-service/service/stats
 * @refs service/preprocess/fit_artifact.go, service/pipeline/orchestrator.go
 */

package preprocess

import (
	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// 阶段名称，顺序固定
const (
	StageProfile       = "profile"
	StageMissingValues = "missing_values"
	StageOutliers      = "outliers"
	StageScaling       = "scaling"
	StageEncoding      = "encoding"
	StageSelection     = "feature_selection"
	StageValidation    = "validation"
)

// StageOrder 流水线阶段执行顺序
var StageOrder = []string{
	StageProfile,
	StageMissingValues,
	StageOutliers,
	StageScaling,
	StageEncoding,
	StageSelection,
	StageValidation,
}

// 转换类型
const (
	KindImpute         = "impute"
	KindDropColumn     = "drop_column"
	KindDropRows       = "drop_rows"
	KindSkipColumn     = "skip_column"
	KindOutlierTreat   = "treat_outliers"
	KindScale          = "scale"
	KindOneHot         = "one_hot_encode"
	KindTargetEncode   = "target_encode"
	KindLabelEncode    = "label_encode"
	KindSelectFeatures = "select_features"
	KindSkipStage      = "skip_stage"
)

// Summary 列的前后对比摘要
type Summary struct {
	Rows    int     `json:"rows"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean,omitempty"`
	Std     float64 `json:"std,omitempty"`
}

// TransformationRecord 单条转换记录
type TransformationRecord struct {
	Stage      string         `json:"stage"`
	Kind       string         `json:"kind"`
	Columns    []string       `json:"columns"`
	Method     string         `json:"method"`
	Params     map[string]any `json:"params,omitempty"`
	Before     *Summary       `json:"before,omitempty"`
	After      *Summary       `json:"after,omitempty"`
	RowsBefore int            `json:"rows_before"`
	RowsAfter  int            `json:"rows_after"`
	Reason     string         `json:"reason,omitempty"`
	Artifact   *FitArtifact   `json:"artifact,omitempty"`
}

// RowDelta 行数变化，负数表示删除
func (r TransformationRecord) RowDelta() int { return r.RowsAfter - r.RowsBefore }

// Trail 审计轨迹，由编排器单线程追加
type Trail struct {
	records []TransformationRecord
}

// Append 追加记录
func (t *Trail) Append(records ...TransformationRecord) {
	t.records = append(t.records, records...)
}

// Records 返回记录副本
func (t *Trail) Records() []TransformationRecord {
	out := make([]TransformationRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Len 记录条数
func (t *Trail) Len() int { return len(t.records) }

// RowsDropped 全程累计删除的行数
func (t *Trail) RowsDropped() int {
	n := 0
	for _, r := range t.records {
		if d := r.RowDelta(); d < 0 {
			n -= d
		}
	}
	return n
}

// Artifacts 按记录顺序返回拟合产物
func (t *Trail) Artifacts() []FitArtifact {
	return CollectArtifacts(t.records)
}

// CollectArtifacts 按记录顺序提取拟合产物
func CollectArtifacts(records []TransformationRecord) []FitArtifact {
	var out []FitArtifact
	for _, r := range records {
		if r.Artifact != nil {
			out = append(out, *r.Artifact)
		}
	}
	return out
}

// OneHotGroups 从编码记录中还原独热分组：原始列 -> 生成列
func OneHotGroups(records []TransformationRecord) map[string][]string {
	groups := make(map[string][]string)
	for _, r := range records {
		if r.Artifact != nil && r.Artifact.Kind == ArtifactOneHot && r.Artifact.OneHot != nil {
			groups[r.Artifact.Column] = append([]string(nil), r.Artifact.OneHot.Columns...)
		}
	}
	return groups
}

func summarize(col *dataset.Column) *Summary {
	s := &Summary{Rows: col.Len(), Missing: col.MissingCount()}
	if col.IsNumeric() {
		s.Mean, s.Std = stats.MeanStd(col.PresentFloats())
	}
	return s
}
