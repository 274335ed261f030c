/*
 * @module service/preprocess/performance_validator
 * @description 性能验证：在原始与转换后数据上用同一参考模型做K折交叉验证并给出结论
 * @architecture 流水线阶段组件
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 任务推断 -> 相同折划分 -> 两份数据交叉验证 -> 计算下降幅度 -> 结论
 * @rules 参考模型固定不可配置；每折开始前检查上下文；
 *        性能下降不超过容忍度且特征数未增加时选择transformed，否则选择original
 * @dependencies processor-service/service/mlmodel
 * @refs service/preprocess/matrix.go
 */

package preprocess

import (
	"context"
	"math"

	"processor-service/service/dataset"
	"processor-service/service/mlmodel"
)

// 参考模型参数
const (
	referenceTrees    = 25
	referenceMaxDepth = 8
	referenceMinLeaf  = 1
)

// Verdict 验证结论
type Verdict string

const (
	VerdictTransformed Verdict = "transformed"
	VerdictOriginal    Verdict = "original"
)

// ValidationReport 验证报告
type ValidationReport struct {
	Task             TaskType   `json:"task"`
	Metric           MetricName `json:"metric"`
	OriginalScore    float64    `json:"performance_original"`
	TransformedScore float64    `json:"performance_transformed"`
	Difference       float64    `json:"performance_difference"`
	DifferencePct    float64    `json:"performance_difference_pct"`
	FeaturesBefore   int        `json:"feature_count_original"`
	FeaturesAfter    int        `json:"feature_count_transformed"`
	Folds            int        `json:"folds"`
	Seed             int64      `json:"seed"`
	Tolerance        float64    `json:"tolerance"`
	Verdict          Verdict    `json:"best_choice"`
	Skipped          bool       `json:"skipped,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

// PerformanceValidator 性能验证器
type PerformanceValidator struct {
	Options ValidationOptions
	Target  string
	Ignore  map[string]bool
	Seed    int64
}

// NewPerformanceValidator 由流水线配置创建验证器
func NewPerformanceValidator(opts Options) *PerformanceValidator {
	return &PerformanceValidator{Options: opts.Validation, Target: opts.TargetColumn, Ignore: opts.ignoreSet(), Seed: opts.Seed}
}

// Validate 比较原始数据与转换后数据
func (v *PerformanceValidator) Validate(ctx context.Context, original, transformed *dataset.Dataset) (*ValidationReport, error) {
	exclude := featureExclusions(v.Target, v.Ignore)
	xo, namesO := FeatureMatrix(original, exclude)
	xt, namesT := FeatureMatrix(transformed, exclude)
	report := &ValidationReport{
		FeaturesBefore: len(namesO),
		FeaturesAfter:  len(namesT),
		Seed:           v.Seed,
		Tolerance:      v.Options.Tolerance,
	}

	target, ok := original.Column(v.Target)
	if v.Target == "" || !ok {
		report.Skipped = true
		report.Reason = "未配置目标列，仅按特征数给出结论"
		report.Verdict = v.verdictByFeatures(report)
		return report, nil
	}
	if len(namesO) == 0 || len(namesT) == 0 || original.NumRows() != transformed.NumRows() {
		report.Skipped = true
		report.Reason = "没有可用于比较的特征"
		report.Verdict = v.verdictByFeatures(report)
		return report, nil
	}

	report.Task = v.Options.Task
	if report.Task == "" || report.Task == TaskAuto {
		report.Task = InferTask(target)
	}
	report.Metric = v.Options.Metric
	if report.Metric == "" || report.Metric == MetricAuto {
		report.Metric = MetricAccuracy
		if report.Task == TaskRegression {
			report.Metric = MetricR2
		}
	}

	var (
		y          []float64
		numClasses int
	)
	if report.Task == TaskClassification {
		y, numClasses = ClassLabels(target)
	} else {
		y, _ = TargetVector(target)
	}
	if rows := completeRows(y); len(rows) < len(y) {
		xo, xt, y = pick(xo, rows), pick(xt, rows), pickValues(y, rows)
	}

	folds := mlmodel.KFold(len(y), v.Options.Folds, v.Seed)
	report.Folds = len(folds)
	if len(folds) < 2 {
		report.Skipped = true
		report.Reason = "样本不足以进行交叉验证"
		report.Verdict = v.verdictByFeatures(report)
		return report, nil
	}

	var err error
	if report.OriginalScore, err = v.crossValidate(ctx, xo, y, folds, report, numClasses); err != nil {
		return nil, err
	}
	if report.TransformedScore, err = v.crossValidate(ctx, xt, y, folds, report, numClasses); err != nil {
		return nil, err
	}

	report.Difference = report.TransformedScore - report.OriginalScore
	drop := relativeDrop(report.Metric, report.OriginalScore, report.TransformedScore)
	report.DifferencePct = -drop * 100
	report.Verdict = VerdictOriginal
	if drop <= v.Options.Tolerance && report.FeaturesAfter <= report.FeaturesBefore {
		report.Verdict = VerdictTransformed
	}
	return report, nil
}

func (v *PerformanceValidator) verdictByFeatures(r *ValidationReport) Verdict {
	if r.FeaturesAfter <= r.FeaturesBefore {
		return VerdictTransformed
	}
	return VerdictOriginal
}

// crossValidate 返回各折指标的平均值
func (v *PerformanceValidator) crossValidate(ctx context.Context, X [][]float64, y []float64, folds [][]int, r *ValidationReport, numClasses int) (float64, error) {
	total := 0.0
	for f, valRows := range folds {
		if err := ContextError(ctx, StageValidation); err != nil {
			return 0, err
		}
		trainRows := mlmodel.TrainIndices(folds, f)
		forest := &mlmodel.Forest{
			Trees:          referenceTrees,
			MaxDepth:       referenceMaxDepth,
			MinSamplesLeaf: referenceMinLeaf,
			Classification: r.Task == TaskClassification,
			NumClasses:     numClasses,
			Seed:           v.Seed + int64(f)*1000,
		}
		if err := forest.Fit(ctx, pick(X, trainRows), pickValues(y, trainRows)); err != nil {
			return 0, wrapFitError(ctx, StageValidation, err)
		}
		pred := forest.Predict(pick(X, valRows))
		total += score(r.Metric, pickValues(y, valRows), pred, numClasses)
	}
	return total / float64(len(folds)), nil
}

func score(metric MetricName, yTrue, yPred []float64, numClasses int) float64 {
	switch metric {
	case MetricF1:
		return mlmodel.F1(yTrue, yPred, numClasses)
	case MetricR2:
		return mlmodel.R2(yTrue, yPred)
	case MetricRMSE:
		return mlmodel.RMSE(yTrue, yPred)
	default:
		return mlmodel.Accuracy(yTrue, yPred)
	}
}

// relativeDrop 相对性能下降，正数表示变差；RMSE越小越好
func relativeDrop(metric MetricName, original, transformed float64) float64 {
	diff := original - transformed
	if metric == MetricRMSE {
		diff = transformed - original
	}
	if original == 0 {
		return diff
	}
	return diff / math.Abs(original)
}

// completeRows 目标值非缺失的行
func completeRows(y []float64) []int {
	rows := make([]int, 0, len(y))
	for i, v := range y {
		if !math.IsNaN(v) {
			rows = append(rows, i)
		}
	}
	return rows
}

func pick(X [][]float64, rows []int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = X[r]
	}
	return out
}

func pickValues(y []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}
