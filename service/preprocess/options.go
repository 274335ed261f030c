/*
 * @module service/preprocess/options
 * @description 预处理流水线配置，每个配置维度都是封闭的枚举加参数
 * @architecture DDD领域驱动设计 - 值对象
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 请求配置 -> 解析枚举 -> 参数校验 -> 流水线执行
 * @rules 非法方法名或越界阈值在任何阶段运行之前以InvalidConfiguration拒绝
 * @dependencies time
 * @refs service/preprocess/errors.go
 */

package preprocess

import (
	"fmt"
	"strings"
	"time"
)

// ImputationStrategy 缺失值填充策略
type ImputationStrategy string

const (
	ImputeAuto     ImputationStrategy = "auto"
	ImputeMean     ImputationStrategy = "mean"
	ImputeMedian   ImputationStrategy = "median"
	ImputeMode     ImputationStrategy = "mode"
	ImputeConstant ImputationStrategy = "constant"
	ImputeDropRow  ImputationStrategy = "drop_row"
)

// OutlierMethod 异常值检测方法
type OutlierMethod string

const (
	OutlierZScore     OutlierMethod = "zscore"
	OutlierIQR        OutlierMethod = "iqr"
	OutlierPercentile OutlierMethod = "percentile"
	OutlierNone       OutlierMethod = "none"
)

// OutlierTreatment 异常值处理策略
type OutlierTreatment string

const (
	TreatClip   OutlierTreatment = "clip"
	TreatRemove OutlierTreatment = "remove"
	TreatMedian OutlierTreatment = "median"
)

// ScalingMethod 缩放方法
type ScalingMethod string

const (
	ScaleStandard ScalingMethod = "standard"
	ScaleMinMax   ScalingMethod = "minmax"
	ScaleRobust   ScalingMethod = "robust"
	ScaleNone     ScalingMethod = "none"
)

// EncodingMethod 分类编码方法
type EncodingMethod string

const (
	EncodeAuto   EncodingMethod = "auto"
	EncodeOneHot EncodingMethod = "onehot"
	EncodeTarget EncodingMethod = "target"
	EncodeLabel  EncodingMethod = "label"
)

// SelectionMethod 特征选择方法
type SelectionMethod string

const (
	SelectImportance  SelectionMethod = "importance"
	SelectCorrelation SelectionMethod = "correlation"
	SelectNone        SelectionMethod = "none"
)

// TaskType 参考模型任务类型
type TaskType string

const (
	TaskAuto           TaskType = "auto"
	TaskClassification TaskType = "classification"
	TaskRegression     TaskType = "regression"
)

// MetricName 评估指标
type MetricName string

const (
	MetricAuto     MetricName = "auto"
	MetricAccuracy MetricName = "accuracy"
	MetricF1       MetricName = "f1"
	MetricR2       MetricName = "r2"
	MetricRMSE     MetricName = "rmse"
)

// 各维度的别名表，空字符串映射到默认值
var (
	imputationAliases = map[string]ImputationStrategy{
		"": ImputeAuto, "auto": ImputeAuto, "mean": ImputeMean, "median": ImputeMedian,
		"mode": ImputeMode, "most_frequent": ImputeMode, "constant": ImputeConstant,
		"drop_row": ImputeDropRow, "drop": ImputeDropRow,
	}
	outlierMethodAliases = map[string]OutlierMethod{
		"": OutlierZScore, "zscore": OutlierZScore, "z_score": OutlierZScore, "iqr": OutlierIQR,
		"percentile": OutlierPercentile, "none": OutlierNone,
	}
	treatmentAliases = map[string]OutlierTreatment{
		"": TreatClip, "auto": TreatClip, "clip": TreatClip, "remove": TreatRemove,
		"median": TreatMedian, "impute": TreatMedian,
	}
	scalingAliases = map[string]ScalingMethod{
		"": ScaleStandard, "auto": ScaleStandard, "standard": ScaleStandard, "zscore": ScaleStandard,
		"minmax": ScaleMinMax, "robust": ScaleRobust, "none": ScaleNone,
	}
	encodingAliases = map[string]EncodingMethod{
		"": EncodeAuto, "auto": EncodeAuto, "onehot": EncodeOneHot, "one_hot": EncodeOneHot,
		"target": EncodeTarget, "label": EncodeLabel,
	}
	selectionAliases = map[string]SelectionMethod{
		"": SelectImportance, "auto": SelectImportance, "importance": SelectImportance,
		"feature_importance": SelectImportance, "correlation": SelectCorrelation, "none": SelectNone,
	}
	taskAliases = map[string]TaskType{
		"": TaskAuto, "auto": TaskAuto, "classification": TaskClassification, "regression": TaskRegression,
	}
	metricAliases = map[string]MetricName{
		"": MetricAuto, "auto": MetricAuto, "accuracy": MetricAccuracy, "f1": MetricF1,
		"r2": MetricR2, "rmse": MetricRMSE,
	}
)

func parseVariant[T ~string](field, raw string, table map[string]T) (T, error) {
	v, ok := table[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		var zero T
		return zero, invalidConfig(field, "不支持的取值 %q", raw)
	}
	return v, nil
}

func knownVariant[T ~string](v T, table map[string]T) bool {
	for _, known := range table {
		if known == v {
			return true
		}
	}
	return false
}

// ParseImputationStrategy 解析缺失值策略
func ParseImputationStrategy(field, raw string) (ImputationStrategy, error) {
	return parseVariant(field, raw, imputationAliases)
}

// ParseOutlierMethod 解析异常值检测方法
func ParseOutlierMethod(raw string) (OutlierMethod, error) {
	return parseVariant("outliers.detection_method", raw, outlierMethodAliases)
}

// ParseOutlierTreatment 解析异常值处理策略
func ParseOutlierTreatment(raw string) (OutlierTreatment, error) {
	return parseVariant("outliers.treatment_strategy", raw, treatmentAliases)
}

// ParseScalingMethod 解析缩放方法
func ParseScalingMethod(raw string) (ScalingMethod, error) {
	return parseVariant("scaling.method", raw, scalingAliases)
}

// ParseEncodingMethod 解析编码方法
func ParseEncodingMethod(raw string) (EncodingMethod, error) {
	return parseVariant("encoding.method", raw, encodingAliases)
}

// ParseSelectionMethod 解析特征选择方法
func ParseSelectionMethod(raw string) (SelectionMethod, error) {
	return parseVariant("feature_selection.method", raw, selectionAliases)
}

// ParseTaskType 解析任务类型
func ParseTaskType(raw string) (TaskType, error) {
	return parseVariant("validation.task", raw, taskAliases)
}

// ParseMetricName 解析评估指标
func ParseMetricName(raw string) (MetricName, error) {
	return parseVariant("validation.metric", raw, metricAliases)
}

// MissingValueOptions 缺失值处理配置
type MissingValueOptions struct {
	Strategy            ImputationStrategy `json:"strategy" yaml:"strategy"`
	NumericalStrategy   ImputationStrategy `json:"numerical_strategy" yaml:"numerical_strategy"`
	CategoricalStrategy ImputationStrategy `json:"categorical_strategy" yaml:"categorical_strategy"`
	FillValue           string             `json:"fill_value,omitempty" yaml:"fill_value"`
	MaxMissingRatio     float64            `json:"max_missing_ratio" yaml:"max_missing_ratio"` // 超过该比例的列被整体删除
	SkewThreshold       float64            `json:"skew_threshold" yaml:"skew_threshold"`       // auto策略下偏度超过该值使用中位数
}

// OutlierOptions 异常值处理配置
type OutlierOptions struct {
	Method          OutlierMethod    `json:"detection_method" yaml:"detection_method"`
	Treatment       OutlierTreatment `json:"treatment_strategy" yaml:"treatment_strategy"`
	ZThreshold      float64          `json:"z_threshold" yaml:"z_threshold"`
	IQRMultiplier   float64          `json:"iqr_multiplier" yaml:"iqr_multiplier"`
	LowerPercentile float64          `json:"lower_percentile" yaml:"lower_percentile"`
	UpperPercentile float64          `json:"upper_percentile" yaml:"upper_percentile"`
}

// ScalingOptions 缩放配置
type ScalingOptions struct {
	Method     ScalingMethod `json:"method" yaml:"method"`
	FeatureMin float64       `json:"feature_min" yaml:"feature_min"`
	FeatureMax float64       `json:"feature_max" yaml:"feature_max"`
}

// EncodingOptions 分类编码配置
type EncodingOptions struct {
	Method        EncodingMethod `json:"method" yaml:"method"`
	MaxCategories int            `json:"max_categories" yaml:"max_categories"`
	TargetFolds   int            `json:"target_folds" yaml:"target_folds"`
	Smoothing     float64        `json:"smoothing" yaml:"smoothing"`
}

// SelectionOptions 特征选择配置
type SelectionOptions struct {
	Method               SelectionMethod `json:"method" yaml:"method"`
	MinImportance        float64         `json:"min_importance" yaml:"min_importance"`
	MaxFeatures          int             `json:"max_features" yaml:"max_features"` // 0表示不限制
	CorrelationThreshold float64         `json:"correlation_threshold" yaml:"correlation_threshold"`
	Protected            []string        `json:"protected,omitempty" yaml:"protected"`
}

// ValidationOptions 性能验证配置
type ValidationOptions struct {
	Task      TaskType   `json:"task" yaml:"task"`
	Metric    MetricName `json:"metric" yaml:"metric"`
	Folds     int        `json:"folds" yaml:"folds"`
	Tolerance float64    `json:"tolerance" yaml:"tolerance"` // 允许的相对性能下降
}

// Options 流水线完整配置
type Options struct {
	MissingValues   MissingValueOptions `json:"missing_values" yaml:"missing_values"`
	Outliers        OutlierOptions      `json:"outliers" yaml:"outliers"`
	Scaling         ScalingOptions      `json:"scaling" yaml:"scaling"`
	Encoding        EncodingOptions     `json:"encoding" yaml:"encoding"`
	Selection       SelectionOptions    `json:"feature_selection" yaml:"feature_selection"`
	Validation      ValidationOptions   `json:"validation" yaml:"validation"`
	TargetColumn    string              `json:"target_column,omitempty" yaml:"target_column"`
	ColumnsToIgnore []string            `json:"columns_to_ignore,omitempty" yaml:"columns_to_ignore"`
	MinRows         int                 `json:"min_rows" yaml:"min_rows"`
	Seed            int64               `json:"seed" yaml:"seed"`
	Timeout         time.Duration       `json:"timeout" yaml:"timeout"`
}

// 平台默认值
const (
	DefaultMinRows              = 50
	DefaultMaxMissingRatio      = 0.5
	DefaultSkewThreshold        = 1.0
	DefaultZThreshold           = 3.0
	DefaultIQRMultiplier        = 1.5
	DefaultMaxCategories        = 10
	DefaultTargetFolds          = 5
	DefaultSmoothing            = 1.0
	DefaultMinImportance        = 0.01
	DefaultCorrelationThreshold = 0.95
	DefaultFolds                = 5
	DefaultTolerance            = 0.05
	DefaultSeed                 = 42
	DefaultTimeout              = 10 * time.Minute
)

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		MissingValues: MissingValueOptions{
			Strategy:            ImputeAuto,
			NumericalStrategy:   ImputeAuto,
			CategoricalStrategy: ImputeMode,
			MaxMissingRatio:     DefaultMaxMissingRatio,
			SkewThreshold:       DefaultSkewThreshold,
		},
		Outliers: OutlierOptions{
			Method:          OutlierZScore,
			Treatment:       TreatClip,
			ZThreshold:      DefaultZThreshold,
			IQRMultiplier:   DefaultIQRMultiplier,
			LowerPercentile: 1,
			UpperPercentile: 99,
		},
		Scaling: ScalingOptions{Method: ScaleStandard, FeatureMin: 0, FeatureMax: 1},
		Encoding: EncodingOptions{
			Method:        EncodeAuto,
			MaxCategories: DefaultMaxCategories,
			TargetFolds:   DefaultTargetFolds,
			Smoothing:     DefaultSmoothing,
		},
		Selection: SelectionOptions{
			Method:               SelectImportance,
			MinImportance:        DefaultMinImportance,
			CorrelationThreshold: DefaultCorrelationThreshold,
		},
		Validation: ValidationOptions{
			Task:      TaskAuto,
			Metric:    MetricAuto,
			Folds:     DefaultFolds,
			Tolerance: DefaultTolerance,
		},
		MinRows: DefaultMinRows,
		Seed:    DefaultSeed,
		Timeout: DefaultTimeout,
	}
}

// Validate 校验配置，返回InvalidConfiguration错误
func (o Options) Validate() error {
	mv := o.MissingValues
	for field, s := range map[string]ImputationStrategy{
		"missing_values.strategy":             mv.Strategy,
		"missing_values.numerical_strategy":   mv.NumericalStrategy,
		"missing_values.categorical_strategy": mv.CategoricalStrategy,
	} {
		if !knownVariant(s, imputationAliases) {
			return invalidConfig(field, "不支持的取值 %q", s)
		}
		if s == ImputeConstant && mv.FillValue == "" {
			return invalidConfig("missing_values.fill_value", "constant策略需要提供fill_value")
		}
	}
	if mv.MaxMissingRatio <= 0 || mv.MaxMissingRatio > 1 {
		return invalidConfig("missing_values.max_missing_ratio", "必须在(0, 1]范围内，当前为 %v", mv.MaxMissingRatio)
	}
	if mv.SkewThreshold < 0 {
		return invalidConfig("missing_values.skew_threshold", "不能为负数")
	}

	out := o.Outliers
	if !knownVariant(out.Method, outlierMethodAliases) {
		return invalidConfig("outliers.detection_method", "不支持的取值 %q", out.Method)
	}
	if !knownVariant(out.Treatment, treatmentAliases) {
		return invalidConfig("outliers.treatment_strategy", "不支持的取值 %q", out.Treatment)
	}
	if out.ZThreshold <= 0 {
		return invalidConfig("outliers.z_threshold", "必须大于0，当前为 %v", out.ZThreshold)
	}
	if out.IQRMultiplier <= 0 {
		return invalidConfig("outliers.iqr_multiplier", "必须大于0，当前为 %v", out.IQRMultiplier)
	}
	if out.LowerPercentile < 0 || out.UpperPercentile > 100 || out.LowerPercentile >= out.UpperPercentile {
		return invalidConfig("outliers.lower_percentile", "百分位区间 [%v, %v] 非法", out.LowerPercentile, out.UpperPercentile)
	}

	if !knownVariant(o.Scaling.Method, scalingAliases) {
		return invalidConfig("scaling.method", "不支持的取值 %q", o.Scaling.Method)
	}
	if o.Scaling.FeatureMin >= o.Scaling.FeatureMax {
		return invalidConfig("scaling.feature_range", "下界 %v 必须小于上界 %v", o.Scaling.FeatureMin, o.Scaling.FeatureMax)
	}

	enc := o.Encoding
	if !knownVariant(enc.Method, encodingAliases) {
		return invalidConfig("encoding.method", "不支持的取值 %q", enc.Method)
	}
	if enc.MaxCategories < 1 {
		return invalidConfig("encoding.max_categories", "必须至少为1，当前为 %d", enc.MaxCategories)
	}
	if enc.TargetFolds < 2 {
		return invalidConfig("encoding.target_folds", "必须至少为2，当前为 %d", enc.TargetFolds)
	}
	if enc.Smoothing < 0 {
		return invalidConfig("encoding.smoothing", "不能为负数")
	}
	if enc.Method == EncodeTarget && o.TargetColumn == "" {
		return invalidConfig("encoding.method", "target编码需要指定target_column")
	}

	sel := o.Selection
	if !knownVariant(sel.Method, selectionAliases) {
		return invalidConfig("feature_selection.method", "不支持的取值 %q", sel.Method)
	}
	if sel.MinImportance < 0 || sel.MinImportance > 1 {
		return invalidConfig("feature_selection.min_importance", "必须在[0, 1]范围内，当前为 %v", sel.MinImportance)
	}
	if sel.MaxFeatures < 0 {
		return invalidConfig("feature_selection.max_features", "不能为负数")
	}
	if sel.CorrelationThreshold < 0 || sel.CorrelationThreshold > 1 {
		return invalidConfig("feature_selection.correlation_threshold", "必须在[0, 1]范围内，当前为 %v", sel.CorrelationThreshold)
	}

	val := o.Validation
	if !knownVariant(val.Task, taskAliases) {
		return invalidConfig("validation.task", "不支持的取值 %q", val.Task)
	}
	if !knownVariant(val.Metric, metricAliases) {
		return invalidConfig("validation.metric", "不支持的取值 %q", val.Metric)
	}
	if val.Task == TaskClassification && (val.Metric == MetricR2 || val.Metric == MetricRMSE) {
		return invalidConfig("validation.metric", "分类任务不支持指标 %s", val.Metric)
	}
	if val.Task == TaskRegression && (val.Metric == MetricAccuracy || val.Metric == MetricF1) {
		return invalidConfig("validation.metric", "回归任务不支持指标 %s", val.Metric)
	}
	if val.Folds < 2 {
		return invalidConfig("validation.folds", "必须至少为2，当前为 %d", val.Folds)
	}
	if val.Tolerance < 0 || val.Tolerance > 1 {
		return invalidConfig("validation.tolerance", "必须在[0, 1]范围内，当前为 %v", val.Tolerance)
	}

	if o.MinRows < 1 {
		return invalidConfig("min_rows", "必须至少为1，当前为 %d", o.MinRows)
	}
	if o.Timeout < 0 {
		return invalidConfig("timeout", "不能为负数")
	}
	for _, c := range o.ColumnsToIgnore {
		if o.TargetColumn != "" && c == o.TargetColumn {
			return invalidConfig("columns_to_ignore", "目标列 %q 不能同时被忽略", c)
		}
	}
	return nil
}

// ignoreSet 返回忽略列集合
func (o Options) ignoreSet() map[string]bool {
	set := make(map[string]bool, len(o.ColumnsToIgnore))
	for _, c := range o.ColumnsToIgnore {
		set[c] = true
	}
	return set
}

// String 用于日志输出的简要描述
func (o Options) String() string {
	return fmt.Sprintf("missing=%s/%s/%s outliers=%s/%s scaling=%s encoding=%s selection=%s target=%q",
		o.MissingValues.Strategy, o.MissingValues.NumericalStrategy, o.MissingValues.CategoricalStrategy,
		o.Outliers.Method, o.Outliers.Treatment, o.Scaling.Method, o.Encoding.Method, o.Selection.Method, o.TargetColumn)
}
