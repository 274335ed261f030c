/*
 * @module service/preprocess/missing_value_handler
 * @description 缺失值检测与填充
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 目标列缺失行删除 -> 高缺失列删除 -> 按类型选择策略填充 -> 统一删除drop_row行
 * @rules auto策略：数值列偏度(剔除极端值后)超过阈值用中位数否则均值，分类列用众数；
 *        删除行后低于最小训练行数返回InsufficientData；策略与列类型不匹配时跳过该列并记录
 * @dependencies github.com/spf13/cast, processor-service/service/stats
 * @refs service/preprocess/column_profiler.go
 */

package preprocess

import (
	"fmt"
	"math"

	"github.com/spf13/cast"

	"processor-service/service/dataset"
	"processor-service/service/stats"
)

// skewFenceMultiplier 计算偏度前剔除极端值使用的IQR倍数
const skewFenceMultiplier = 3.0

// MissingValueHandler 缺失值处理器
type MissingValueHandler struct {
	Options MissingValueOptions
	Target  string
	MinRows int
}

// NewMissingValueHandler 由流水线配置创建处理器
func NewMissingValueHandler(opts Options) *MissingValueHandler {
	return &MissingValueHandler{Options: opts.MissingValues, Target: opts.TargetColumn, MinRows: opts.MinRows}
}

// Apply 处理缺失值，返回新数据集与转换记录
func (h *MissingValueHandler) Apply(ds *dataset.Dataset, profiles Profiles) (*dataset.Dataset, []TransformationRecord, error) {
	var records []TransformationRecord

	if h.Target != "" {
		if target, ok := ds.Column(h.Target); ok && target.MissingCount() > 0 {
			before := ds.NumRows()
			ds = ds.TakeRows(presentRows(target))
			records = append(records, TransformationRecord{
				Stage:      StageMissingValues,
				Kind:       KindDropRows,
				Columns:    []string{h.Target},
				Method:     string(ImputeDropRow),
				RowsBefore: before,
				RowsAfter:  ds.NumRows(),
				Reason:     "目标列缺失的行不能参与训练",
			})
			if ds.NumRows() < h.MinRows {
				return nil, records, InsufficientData(StageMissingValues, ds.NumRows(), h.MinRows)
			}
			profiles = ColumnProfiler{}.Profile(ds)
		}
	}

	rows := ds.NumRows()
	var (
		dropColumns []string
		dropRowCols []string
		dropRows    = make(map[int]bool)
		replaced    = make(map[string]*dataset.Column)
	)

	for _, col := range ds.Columns() {
		name := col.Name()
		p := profiles[name]
		if name == h.Target || p.MissingCount == 0 {
			continue
		}

		// 全部缺失的列没有可用于拟合的样本，无论上限如何都删除
		allMissing := p.MissingCount == rows
		if allMissing || p.MissingRatio() > h.Options.MaxMissingRatio {
			dropColumns = append(dropColumns, name)
			reason, message := "missing_ratio", fmt.Sprintf("缺失比例 %.2f%% 超过上限", p.MissingPct)
			if allMissing {
				reason, message = "all_missing", "列中没有任何非缺失值"
			}
			artifact := newArtifact(ArtifactColumnDrop, name)
			artifact.Drop = &ColumnDropParams{Reason: reason, MissingRatio: p.MissingRatio()}
			records = append(records, TransformationRecord{
				Stage:      StageMissingValues,
				Kind:       KindDropColumn,
				Columns:    []string{name},
				Method:     "drop_column",
				Params:     map[string]any{"missing_ratio": p.MissingRatio(), "max_missing_ratio": h.Options.MaxMissingRatio, "reason": reason},
				Before:     summarize(col),
				RowsBefore: rows,
				RowsAfter:  rows,
				Reason:     message,
				Artifact:   artifact,
			})
			continue
		}

		strategy, params := h.resolve(col)
		if strategy == ImputeDropRow {
			for i := 0; i < rows; i++ {
				if col.IsMissing(i) {
					dropRows[i] = true
				}
			}
			dropRowCols = append(dropRowCols, name)
			// 删除行之外保留一个回退值，预测阶段无法删除行时使用
			fallback := ImputeMedian
			if col.Type() == dataset.TypeCategorical || col.Type() == dataset.TypeBoolean {
				fallback = ImputeMode
			}
			_, imputer, _ := h.fill(col, fallback)
			imputer.Strategy = ImputeDropRow
			artifact := newArtifact(ArtifactImputer, name)
			artifact.Imputer = imputer
			records = append(records, TransformationRecord{
				Stage:      StageMissingValues,
				Kind:       KindImpute,
				Columns:    []string{name},
				Method:     string(ImputeDropRow),
				Params:     mergeParams(params, map[string]any{"missing_count": p.MissingCount}),
				Before:     summarize(col),
				RowsBefore: rows,
				RowsAfter:  rows,
				Artifact:   artifact,
			})
			continue
		}

		filled, imputer, err := h.fill(col, strategy)
		if err != nil {
			records = append(records, TransformationRecord{
				Stage:      StageMissingValues,
				Kind:       KindSkipColumn,
				Columns:    []string{name},
				Method:     string(strategy),
				Params:     map[string]any{"column_type": string(col.Type())},
				RowsBefore: rows,
				RowsAfter:  rows,
				Reason:     err.Error(),
			})
			continue
		}
		replaced[name] = filled
		artifact := newArtifact(ArtifactImputer, name)
		artifact.Imputer = imputer
		records = append(records, TransformationRecord{
			Stage:      StageMissingValues,
			Kind:       KindImpute,
			Columns:    []string{name},
			Method:     string(strategy),
			Params:     mergeParams(params, map[string]any{"missing_count": p.MissingCount, "fill_value": imputer.display()}),
			Before:     summarize(col),
			After:      summarize(filled),
			RowsBefore: rows,
			RowsAfter:  rows,
			Artifact:   artifact,
		})
	}

	out, err := replaceColumns(ds, replaced)
	if err != nil {
		return nil, records, NewStageError(KindInternal, StageMissingValues, "", nil, err)
	}
	out = out.Drop(dropColumns...)

	if len(dropRows) > 0 {
		keep := make([]int, 0, rows-len(dropRows))
		for i := 0; i < rows; i++ {
			if !dropRows[i] {
				keep = append(keep, i)
			}
		}
		out = out.TakeRows(keep)
		records = append(records, TransformationRecord{
			Stage:      StageMissingValues,
			Kind:       KindDropRows,
			Columns:    dropRowCols,
			Method:     string(ImputeDropRow),
			RowsBefore: rows,
			RowsAfter:  out.NumRows(),
		})
		if out.NumRows() < h.MinRows {
			return nil, records, InsufficientData(StageMissingValues, out.NumRows(), h.MinRows)
		}
	}
	return out, records, nil
}

// resolve 确定列实际使用的策略，auto在此展开
func (h *MissingValueHandler) resolve(col *dataset.Column) (ImputationStrategy, map[string]any) {
	strategy := h.Options.NumericalStrategy
	if col.Type() == dataset.TypeCategorical || col.Type() == dataset.TypeBoolean {
		strategy = h.Options.CategoricalStrategy
	}
	if strategy == "" || strategy == ImputeAuto {
		strategy = h.Options.Strategy
	}
	if strategy != "" && strategy != ImputeAuto {
		return strategy, nil
	}

	switch col.Type() {
	case dataset.TypeCategorical, dataset.TypeBoolean:
		return ImputeMode, map[string]any{"auto": true}
	case dataset.TypeDatetime:
		return ImputeMedian, map[string]any{"auto": true}
	}
	skew := adjustedSkew(col.PresentFloats())
	params := map[string]any{"auto": true, "skew": skew, "skew_threshold": h.Options.SkewThreshold}
	if math.Abs(skew) > h.Options.SkewThreshold {
		return ImputeMedian, params
	}
	return ImputeMean, params
}

// fill 按策略填充单列
func (h *MissingValueHandler) fill(col *dataset.Column, strategy ImputationStrategy) (*dataset.Column, *ImputerParams, error) {
	imputer := &ImputerParams{Strategy: strategy, ColumnType: col.Type()}
	unsupported := func() error {
		return NewStageError(KindUnsupportedColumnType, StageMissingValues, col.Name(),
			map[string]any{"strategy": string(strategy), "column_type": string(col.Type())},
			fmt.Errorf("策略 %s 不适用于 %s 列", strategy, col.Type()))
	}

	if col.Type() == dataset.TypeCategorical {
		switch strategy {
		case ImputeMode:
			imputer.Text = stats.ModeString(col.PresentTexts())
		case ImputeConstant:
			imputer.Text = h.Options.FillValue
		default:
			return nil, nil, unsupported()
		}
		return fillTexts(col, imputer.Text), imputer, nil
	}

	present := col.PresentFloats()
	switch strategy {
	case ImputeMean, ImputeMedian:
		if col.Type() == dataset.TypeBoolean {
			return nil, nil, unsupported()
		}
		if strategy == ImputeMean {
			imputer.Value = stats.Mean(present)
		} else {
			imputer.Value = stats.Median(present)
		}
		if col.Type() == dataset.TypeDatetime {
			imputer.Value = math.Round(imputer.Value)
		}
	case ImputeMode:
		imputer.Value = stats.Mode(present)
	case ImputeConstant:
		v, err := constantValue(col.Type(), h.Options.FillValue)
		if err != nil {
			return nil, nil, unsupported()
		}
		imputer.Value = v
	default:
		return nil, nil, unsupported()
	}
	return fillFloats(col, imputer.Value), imputer, nil
}

func (p *ImputerParams) display() any {
	switch p.ColumnType {
	case dataset.TypeCategorical:
		return p.Text
	case dataset.TypeBoolean:
		return p.Value != 0
	default:
		return p.Value
	}
}

func constantValue(typ dataset.ColumnType, raw string) (float64, error) {
	switch typ {
	case dataset.TypeBoolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case dataset.TypeDatetime:
		t, err := cast.ToTimeE(raw)
		if err != nil {
			return 0, err
		}
		return float64(t.Unix()), nil
	default:
		return cast.ToFloat64E(raw)
	}
}

func fillFloats(col *dataset.Column, value float64) *dataset.Column {
	values := col.Floats()
	for i := range values {
		if col.IsMissing(i) {
			values[i] = value
		}
	}
	return col.WithFloats(values)
}

func fillTexts(col *dataset.Column, value string) *dataset.Column {
	values := col.Texts()
	for i := range values {
		if col.IsMissing(i) {
			values[i] = value
		}
	}
	return col.WithTexts(values)
}

// adjustedSkew 剔除Q1-3IQR到Q3+3IQR之外的极端值后计算偏度
func adjustedSkew(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	q1, q3 := stats.Quartiles(values)
	iqr := q3 - q1
	lower, upper := q1-skewFenceMultiplier*iqr, q3+skewFenceMultiplier*iqr
	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lower && v <= upper {
			kept = append(kept, v)
		}
	}
	return stats.Skewness(kept)
}

func presentRows(col *dataset.Column) []int {
	rows := make([]int, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		if !col.IsMissing(i) {
			rows = append(rows, i)
		}
	}
	return rows
}

// replaceColumns 按原位置替换列
func replaceColumns(ds *dataset.Dataset, replaced map[string]*dataset.Column) (*dataset.Dataset, error) {
	out := ds
	for _, name := range ds.Names() {
		col, ok := replaced[name]
		if !ok {
			continue
		}
		var err error
		if out, err = out.Replace(name, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeParams(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
