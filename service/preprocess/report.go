/*
 * @module service/preprocess/report
 * @description 由审计轨迹派生缺失值报告、异常值报告与特征重要性报告
 * @architecture 读模型
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 初始列画像 + 转换记录 -> 报告
 * @rules 报告只读取记录，不重新计算统计量
 * @dependencies github.com/spf13/cast
 * @refs service/preprocess/record.go
 */

package preprocess

import (
	"github.com/spf13/cast"
)

// MissingValueEntry 缺失值报告条目
type MissingValueEntry struct {
	Column       string  `json:"column"`
	DataType     string  `json:"data_type"`
	MissingCount int     `json:"missing_count"`
	MissingPct   float64 `json:"missing_pct"`
	Action       string  `json:"action"`
	Strategy     string  `json:"strategy_applied,omitempty"`
	FilledWith   any     `json:"filled_with,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// OutlierEntry 异常值报告条目
type OutlierEntry struct {
	Column     string  `json:"column"`
	Count      int     `json:"outlier_count"`
	Pct        float64 `json:"outlier_pct"`
	Method     string  `json:"method"`
	Treatment  string  `json:"treatment_strategy"`
	Lower      float64 `json:"lower_bound"`
	Upper      float64 `json:"upper_bound"`
	MeanBefore float64 `json:"mean_before"`
	StdBefore  float64 `json:"std_before"`
	MeanAfter  float64 `json:"mean_after"`
	StdAfter   float64 `json:"std_after"`
}

// BuildMissingValueReport 按列顺序生成缺失值报告，initial为处理前的列画像
func BuildMissingValueReport(columns []string, initial Profiles, records []TransformationRecord) []MissingValueEntry {
	byColumn := make(map[string]TransformationRecord)
	for _, r := range records {
		if r.Stage != StageMissingValues || len(r.Columns) != 1 {
			continue
		}
		if _, seen := byColumn[r.Columns[0]]; !seen {
			byColumn[r.Columns[0]] = r
		}
	}

	var out []MissingValueEntry
	for _, name := range columns {
		p, ok := initial[name]
		if !ok || p.MissingCount == 0 {
			continue
		}
		entry := MissingValueEntry{
			Column:       name,
			DataType:     string(p.Type),
			MissingCount: p.MissingCount,
			MissingPct:   p.MissingPct,
			Action:       "none",
		}
		if r, ok := byColumn[name]; ok {
			entry.Action = r.Kind
			entry.Strategy = r.Method
			entry.Reason = r.Reason
			if r.Params != nil {
				entry.FilledWith = r.Params["fill_value"]
			}
		}
		out = append(out, entry)
	}
	return out
}

// BuildOutlierReport 生成异常值报告
func BuildOutlierReport(records []TransformationRecord) []OutlierEntry {
	var out []OutlierEntry
	for _, r := range records {
		if r.Stage != StageOutliers || r.Kind != KindOutlierTreat {
			continue
		}
		entry := OutlierEntry{
			Column:    r.Columns[0],
			Count:     cast.ToInt(r.Params["outlier_count"]),
			Pct:       cast.ToFloat64(r.Params["outlier_pct"]),
			Method:    r.Method,
			Treatment: cast.ToString(r.Params["treatment"]),
			Lower:     cast.ToFloat64(r.Params["lower"]),
			Upper:     cast.ToFloat64(r.Params["upper"]),
		}
		if r.Before != nil {
			entry.MeanBefore, entry.StdBefore = r.Before.Mean, r.Before.Std
		}
		if r.After != nil {
			entry.MeanAfter, entry.StdAfter = r.After.Mean, r.After.Std
		}
		out = append(out, entry)
	}
	return out
}

// BuildFeatureImportanceReport 返回按重要性降序的特征评分
func BuildFeatureImportanceReport(records []TransformationRecord) []FeatureScore {
	for _, r := range records {
		if r.Artifact != nil && r.Artifact.Kind == ArtifactFeatureSelection {
			return append([]FeatureScore(nil), r.Artifact.Selection.Scores...)
		}
	}
	return nil
}
