/*
 * @module service/preprocess/feature_selector
 * @description 特征评分与筛选
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 构建特征单元(独热分组为一个单元) -> 评分 -> 稳定降序排序 -> 阈值/数量/相关性筛选 -> 删除列
 * @rules 目标列、保护列与忽略列永不删除；至少保留排名第一的特征；
 *        重要性估计使用固定种子的随机森林，同分按原始列顺序
 * @dependencies processor-service/service/mlmodel, processor-service/service/stats
 * @refs service/preprocess/matrix.go
 */

package preprocess

import (
	"context"
	"math"
	"sort"

	"processor-service/service/dataset"
	"processor-service/service/mlmodel"
	"processor-service/service/stats"
)

// 重要性估计森林参数
const (
	selectorTrees    = 30
	selectorMaxDepth = 8
)

// FeatureSelector 特征选择器
type FeatureSelector struct {
	Options SelectionOptions
	Target  string
	Ignore  map[string]bool
	Task    TaskType
	Seed    int64
}

// NewFeatureSelector 由流水线配置创建选择器
func NewFeatureSelector(opts Options) *FeatureSelector {
	return &FeatureSelector{
		Options: opts.Selection,
		Target:  opts.TargetColumn,
		Ignore:  opts.ignoreSet(),
		Task:    opts.Validation.Task,
		Seed:    opts.Seed,
	}
}

// featureUnit 独热分组作为一个整体参与评分与取舍
type featureUnit struct {
	name     string
	members  []string
	position int
	score    float64
}

// Apply 评分并删除低价值特征，groups为独热分组（原始列 -> 生成列）
func (s *FeatureSelector) Apply(ctx context.Context, ds *dataset.Dataset, groups map[string][]string) (*dataset.Dataset, []TransformationRecord, error) {
	rows := ds.NumRows()
	target, hasTarget := ds.Column(s.Target)
	if s.Options.Method == SelectNone || s.Target == "" || !hasTarget {
		reason := "未配置目标列，跳过特征选择"
		if s.Options.Method == SelectNone {
			reason = "特征选择方法为none"
		}
		return ds, []TransformationRecord{{
			Stage:      StageSelection,
			Kind:       KindSkipStage,
			Method:     string(s.Options.Method),
			RowsBefore: rows,
			RowsAfter:  rows,
			Reason:     reason,
		}}, nil
	}

	X, names := FeatureMatrix(ds, featureExclusions(s.Target, s.Ignore))
	if len(names) == 0 {
		return ds, nil, nil
	}
	units := buildUnits(names, groups)

	columnScores, err := s.score(ctx, X, names, target)
	if err != nil {
		return nil, nil, err
	}
	for i := range units {
		u := &units[i]
		for _, m := range u.members {
			v := columnScores[m]
			if s.Options.Method == SelectCorrelation {
				u.score = math.Max(u.score, v)
			} else {
				u.score += v
			}
		}
	}
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].score != units[j].score {
			return units[i].score > units[j].score
		}
		return units[i].position < units[j].position
	})

	protected := make(map[string]bool, len(s.Options.Protected))
	for _, p := range s.Options.Protected {
		protected[p] = true
	}
	isProtected := func(u featureUnit) bool {
		if protected[u.name] {
			return true
		}
		for _, m := range u.members {
			if protected[m] {
				return true
			}
		}
		return false
	}

	column := make(map[string][]float64, len(names))
	for j, n := range names {
		col := make([]float64, len(X))
		for i := range X {
			col[i] = X[i][j]
		}
		column[n] = col
	}

	scores := make([]FeatureScore, len(units))
	var keptUnits []featureUnit
	for rank, u := range units {
		fs := FeatureScore{Feature: u.name, Score: u.score, Rank: rank + 1}
		if len(u.members) > 1 || u.members[0] != u.name {
			fs.Members = u.members
		}
		switch {
		case isProtected(u):
			fs.Kept, fs.Reason = true, "protected"
		case rank == 0:
			fs.Kept = true
		case u.score < s.Options.MinImportance:
			fs.Reason = "below_min_importance"
		case s.Options.MaxFeatures > 0 && len(keptUnits) >= s.Options.MaxFeatures:
			fs.Reason = "max_features"
		case s.correlated(u, keptUnits, column):
			fs.Reason = "correlated"
		default:
			fs.Kept = true
		}
		if fs.Kept {
			keptUnits = append(keptUnits, u)
		}
		scores[rank] = fs
	}

	var kept, dropped []string
	for _, fs := range scores {
		members := fs.Members
		if members == nil {
			members = []string{fs.Feature}
		}
		if fs.Kept {
			kept = append(kept, members...)
		} else {
			dropped = append(dropped, members...)
		}
	}

	out := ds.Drop(dropped...)
	artifact := newArtifact(ArtifactFeatureSelection, s.Target)
	artifact.Selection = &SelectionParams{Method: s.Options.Method, Kept: kept, Dropped: dropped, Scores: scores}
	record := TransformationRecord{
		Stage:   StageSelection,
		Kind:    KindSelectFeatures,
		Columns: dropped,
		Method:  string(s.Options.Method),
		Params: map[string]any{
			"min_importance":        s.Options.MinImportance,
			"max_features":          s.Options.MaxFeatures,
			"correlation_threshold": s.Options.CorrelationThreshold,
			"kept":                  len(kept),
			"dropped":               len(dropped),
		},
		RowsBefore: rows,
		RowsAfter:  out.NumRows(),
		Artifact:   artifact,
	}
	return out, []TransformationRecord{record}, nil
}

// score 按列评分
func (s *FeatureSelector) score(ctx context.Context, X [][]float64, names []string, target *dataset.Column) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	task := s.Task
	if task == "" || task == TaskAuto {
		task = InferTask(target)
	}

	if s.Options.Method == SelectCorrelation {
		y, _ := TargetVector(target)
		if task == TaskClassification {
			y, _ = ClassLabels(target)
		}
		rows := completeRows(y)
		X, y = pick(X, rows), pickValues(y, rows)
		for j, n := range names {
			col := make([]float64, len(X))
			for i := range X {
				col[i] = X[i][j]
			}
			out[n] = math.Abs(stats.Correlation(col, y))
		}
		return out, nil
	}

	forest := &mlmodel.Forest{
		Trees:          selectorTrees,
		MaxDepth:       selectorMaxDepth,
		MinSamplesLeaf: 2,
		Seed:           s.Seed,
	}
	var y []float64
	if task == TaskClassification {
		forest.Classification = true
		y, forest.NumClasses = ClassLabels(target)
	} else {
		y, _ = TargetVector(target)
	}
	rows := completeRows(y)
	if err := forest.Fit(ctx, pick(X, rows), pickValues(y, rows)); err != nil {
		return nil, wrapFitError(ctx, StageSelection, err)
	}
	for j, imp := range forest.Importances() {
		out[names[j]] = imp
	}
	return out, nil
}

// correlated 单列特征与已保留的单列特征高度相关时返回true，独热分组不参与相关性剔除
func (s *FeatureSelector) correlated(u featureUnit, kept []featureUnit, column map[string][]float64) bool {
	if s.Options.CorrelationThreshold <= 0 || len(u.members) != 1 {
		return false
	}
	for _, k := range kept {
		if len(k.members) != 1 {
			continue
		}
		r := stats.Correlation(column[u.members[0]], column[k.members[0]])
		if math.Abs(r) >= s.Options.CorrelationThreshold {
			return true
		}
	}
	return false
}

// buildUnits 将列组织为特征单元，保持原始列顺序
func buildUnits(names []string, groups map[string][]string) []featureUnit {
	owner := make(map[string]string)
	for source, members := range groups {
		for _, m := range members {
			owner[m] = source
		}
	}
	var units []featureUnit
	index := make(map[string]int)
	for pos, n := range names {
		source, grouped := owner[n]
		if !grouped {
			units = append(units, featureUnit{name: n, members: []string{n}, position: pos})
			continue
		}
		if i, ok := index[source]; ok {
			units[i].members = append(units[i].members, n)
			continue
		}
		index[source] = len(units)
		units = append(units, featureUnit{name: source, members: []string{n}, position: pos})
	}
	return units
}

// wrapFitError 将模型训练中的上下文错误转换为阶段错误
func wrapFitError(ctx context.Context, stage string, err error) error {
	if cerr := ContextError(ctx, stage); cerr != nil {
		return cerr
	}
	return NewStageError(KindInternal, stage, "", nil, err)
}
