/*
 * @module service/preprocess/outlier_handler
 * @description 数值列异常值检测与处理
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 计算边界 -> 标记异常值 -> 截断/删除行/中位数替换 -> 记录前后均值与标准差
 * @rules 仅数值列参与检测，目标列、忽略列、布尔列与时间列不参与；
 *        remove策略统一删除行，低于最小训练行数返回InsufficientData
 * @dependencies processor-service/service/stats
 * @refs service/preprocess/options.go
 */

package preprocess

import (
	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// minOutlierSamples 检测所需的最少非缺失值个数
const minOutlierSamples = 3

// OutlierHandler 异常值处理器
type OutlierHandler struct {
	Options OutlierOptions
	Target  string
	Ignore  map[string]bool
	MinRows int
}

// NewOutlierHandler 由流水线配置创建处理器
func NewOutlierHandler(opts Options) *OutlierHandler {
	return &OutlierHandler{Options: opts.Outliers, Target: opts.TargetColumn, Ignore: opts.ignoreSet(), MinRows: opts.MinRows}
}

// Bounds 计算列的异常值边界，ok为false表示该列无法检测
func (h *OutlierHandler) Bounds(values []float64) (lower, upper float64, ok bool) {
	if len(values) < minOutlierSamples {
		return 0, 0, false
	}
	switch h.Options.Method {
	case OutlierZScore:
		mean, std := stats.MeanStd(values)
		if std == 0 {
			return 0, 0, false
		}
		return mean - h.Options.ZThreshold*std, mean + h.Options.ZThreshold*std, true
	case OutlierIQR:
		q1, q3 := stats.Quartiles(values)
		iqr := q3 - q1
		return q1 - h.Options.IQRMultiplier*iqr, q3 + h.Options.IQRMultiplier*iqr, true
	case OutlierPercentile:
		return stats.Percentile(values, h.Options.LowerPercentile), stats.Percentile(values, h.Options.UpperPercentile), true
	}
	return 0, 0, false
}

func (h *OutlierHandler) eligible(col *dataset.Column, p ColumnProfile) bool {
	if col.Name() == h.Target || h.Ignore[col.Name()] {
		return false
	}
	// 低基数数值列视为离散编码，不做异常值判定
	return col.Type() == dataset.TypeNumeric && p.Class == ClassNumeric && !p.LowCardinality
}

// Apply 检测并处理异常值
func (h *OutlierHandler) Apply(ds *dataset.Dataset, profiles Profiles) (*dataset.Dataset, []TransformationRecord, error) {
	if h.Options.Method == OutlierNone {
		return ds, nil, nil
	}

	rows := ds.NumRows()
	var (
		records  []TransformationRecord
		removed  = make(map[int]bool)
		affected []string
		replaced = make(map[string]*dataset.Column)
	)

	for _, col := range ds.Columns() {
		if !h.eligible(col, profiles[col.Name()]) {
			continue
		}
		present := col.PresentFloats()
		lower, upper, ok := h.Bounds(present)
		if !ok {
			continue
		}

		values := col.Floats()
		median := stats.Median(present)
		flagged := 0
		local := make(map[int]bool)
		for i, v := range values {
			if col.IsMissing(i) || (v >= lower && v <= upper) {
				continue
			}
			flagged++
			switch h.Options.Treatment {
			case TreatClip:
				values[i] = clamp(v, lower, upper)
			case TreatMedian:
				values[i] = median
			case TreatRemove:
				removed[i] = true
				local[i] = true
			}
		}
		if flagged == 0 {
			continue
		}

		treated := col
		if h.Options.Treatment != TreatRemove {
			treated = col.WithFloats(values)
			replaced[col.Name()] = treated
		} else {
			affected = append(affected, col.Name())
			treated = col.Take(keptRows(rows, local))
		}

		artifact := newArtifact(ArtifactOutlierBounds, col.Name())
		artifact.Bounds = &BoundsParams{
			Method:    h.Options.Method,
			Treatment: h.Options.Treatment,
			Lower:     lower,
			Upper:     upper,
			Median:    median,
		}
		records = append(records, TransformationRecord{
			Stage:   StageOutliers,
			Kind:    KindOutlierTreat,
			Columns: []string{col.Name()},
			Method:  string(h.Options.Method),
			Params: map[string]any{
				"treatment":     string(h.Options.Treatment),
				"lower":         lower,
				"upper":         upper,
				"outlier_count": flagged,
				"outlier_pct":   float64(flagged) / float64(len(present)) * 100,
			},
			Before:     summarize(col),
			After:      summarize(treated),
			RowsBefore: rows,
			RowsAfter:  rows,
			Artifact:   artifact,
		})
	}

	out, err := replaceColumns(ds, replaced)
	if err != nil {
		return nil, records, NewStageError(KindInternal, StageOutliers, "", nil, err)
	}
	if len(removed) > 0 {
		out = out.TakeRows(keptRows(rows, removed))
		records = append(records, TransformationRecord{
			Stage:      StageOutliers,
			Kind:       KindDropRows,
			Columns:    affected,
			Method:     string(TreatRemove),
			RowsBefore: rows,
			RowsAfter:  out.NumRows(),
		})
		if out.NumRows() < h.MinRows {
			return nil, records, InsufficientData(StageOutliers, out.NumRows(), h.MinRows)
		}
	}
	return out, records, nil
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}

func keptRows(n int, removed map[int]bool) []int {
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !removed[i] {
			keep = append(keep, i)
		}
	}
	return keep
}
