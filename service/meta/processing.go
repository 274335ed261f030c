/*
 * @module service/meta/processing
 * @description 数据预处理作业的状态与可选方法元数据
 * @architecture 元数据定义
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 无
 * @rules 元数据名称与preprocess包中的变体取值保持一致
 * @dependencies processor-service/service/preprocess
 * @refs api/controllers/meta_controller.go
 */

package meta

import "processor-service/service/preprocess"

// 处理作业状态常量
const (
	ProcessingStatusPending    = "pending"
	ProcessingStatusRunning    = "running"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
	ProcessingStatusCancelled  = "cancelled"
	ProcessingStatusProcessing = "processing" // 提交响应中使用的对外状态
)

var ProcessingStatuses = []MetaField{
	{Name: ProcessingStatusPending, DisplayName: "等待执行", Type: "string"},
	{Name: ProcessingStatusRunning, DisplayName: "执行中", Type: "string"},
	{Name: ProcessingStatusCompleted, DisplayName: "已完成", Type: "string"},
	{Name: ProcessingStatusFailed, DisplayName: "失败", Type: "string"},
	{Name: ProcessingStatusCancelled, DisplayName: "已取消", Type: "string"},
}

// IsTerminalProcessingStatus 判断是否为终态
func IsTerminalProcessingStatus(status string) bool {
	return status == ProcessingStatusCompleted || status == ProcessingStatusFailed || status == ProcessingStatusCancelled
}

var ImputationStrategies = []MetaField{
	{Name: string(preprocess.ImputeAuto), DisplayName: "自动", Type: "string", Default: true,
		Description: "数值列按偏度选择均值或中位数，分类列使用众数，缺失比例过高的列整体删除"},
	{Name: string(preprocess.ImputeMean), DisplayName: "均值", Type: "string"},
	{Name: string(preprocess.ImputeMedian), DisplayName: "中位数", Type: "string"},
	{Name: string(preprocess.ImputeMode), DisplayName: "众数", Type: "string", Aliases: []string{"most_frequent"}},
	{Name: string(preprocess.ImputeConstant), DisplayName: "常量", Type: "string", Description: "需要同时提供fill_value"},
	{Name: string(preprocess.ImputeDropRow), DisplayName: "删除行", Type: "string", Aliases: []string{"drop"}},
}

var OutlierMethods = []MetaField{
	{Name: string(preprocess.OutlierZScore), DisplayName: "Z分数", Type: "string", Default: true, Aliases: []string{"z_score"}},
	{Name: string(preprocess.OutlierIQR), DisplayName: "四分位距", Type: "string"},
	{Name: string(preprocess.OutlierPercentile), DisplayName: "百分位", Type: "string"},
	{Name: string(preprocess.OutlierNone), DisplayName: "不处理", Type: "string"},
}

var OutlierTreatments = []MetaField{
	{Name: string(preprocess.TreatClip), DisplayName: "截断", Type: "string", Default: true},
	{Name: string(preprocess.TreatRemove), DisplayName: "删除行", Type: "string"},
	{Name: string(preprocess.TreatMedian), DisplayName: "中位数替换", Type: "string", Aliases: []string{"impute"}},
}

var ScalingMethods = []MetaField{
	{Name: string(preprocess.ScaleStandard), DisplayName: "标准化", Type: "string", Default: true, Aliases: []string{"zscore"}},
	{Name: string(preprocess.ScaleMinMax), DisplayName: "最小最大归一化", Type: "string"},
	{Name: string(preprocess.ScaleRobust), DisplayName: "稳健缩放", Type: "string"},
	{Name: string(preprocess.ScaleNone), DisplayName: "不缩放", Type: "string"},
}

var EncodingMethods = []MetaField{
	{Name: string(preprocess.EncodeAuto), DisplayName: "自动", Type: "string", Default: true,
		Description: "基数不超过max_categories时独热编码，否则目标编码"},
	{Name: string(preprocess.EncodeOneHot), DisplayName: "独热编码", Type: "string", Aliases: []string{"one_hot"}},
	{Name: string(preprocess.EncodeTarget), DisplayName: "目标编码", Type: "string", Description: "需要target_column"},
	{Name: string(preprocess.EncodeLabel), DisplayName: "标签编码", Type: "string"},
}

var SelectionMethods = []MetaField{
	{Name: string(preprocess.SelectImportance), DisplayName: "随机森林重要性", Type: "string", Default: true, Aliases: []string{"feature_importance"}},
	{Name: string(preprocess.SelectCorrelation), DisplayName: "相关系数", Type: "string"},
	{Name: string(preprocess.SelectNone), DisplayName: "不选择", Type: "string"},
}

// ProcessingMetas 处理作业相关元数据
var ProcessingMetas = map[string][]MetaField{
	"statuses":              ProcessingStatuses,
	"imputation_strategies": ImputationStrategies,
	"outlier_methods":       OutlierMethods,
	"outlier_treatments":    OutlierTreatments,
	"scaling_methods":       ScalingMethods,
	"encoding_methods":      EncodingMethods,
	"selection_methods":     SelectionMethods,
}
