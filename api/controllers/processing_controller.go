/*
 * @module api/controllers/processing_controller
 * @description 数据预处理作业控制器，提供作业提交、状态查询、报告、取消、重放与事件订阅接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow HTTP请求 -> 参数校验 -> 合并平台默认配置 -> 作业服务 -> 统一响应
 * @rules 请求结构先经validator校验，再解析为封闭的配置变体；未提供的字段使用平台默认值；
 *        报告类接口只对已完成作业可用，转换记录对失败作业同样可用
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/render, github.com/go-playground/validator/v10, github.com/spf13/cast
 * @refs service/processing/processing_service.go, service/notify/sse_broker.go
 */

package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"processor-service/service/dataset"
	"processor-service/service/meta"
	"processor-service/service/monitoring"
	"processor-service/service/notify"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
	"processor-service/service/processing"
)

var validate = validator.New()

// ProcessingController 预处理作业控制器
type ProcessingController struct {
	service   *processing.ProcessingService
	broker    *notify.SSEBroker
	collector *monitoring.MetricsCollector
	defaults  preprocess.Options
}

// NewProcessingController 创建预处理作业控制器，broker与collector可为nil
func NewProcessingController(svc *processing.ProcessingService, broker *notify.SSEBroker,
	collector *monitoring.MetricsCollector, defaults preprocess.Options) *ProcessingController {
	return &ProcessingController{service: svc, broker: broker, collector: collector, defaults: defaults}
}

// MissingValuesRequest 缺失值处理参数
type MissingValuesRequest struct {
	Strategy            string   `json:"strategy,omitempty" example:"auto"`
	NumericalStrategy   string   `json:"numerical_strategy,omitempty" example:"median"`
	CategoricalStrategy string   `json:"categorical_strategy,omitempty" example:"mode"`
	FillValue           *string  `json:"fill_value,omitempty" example:"0"`
	MaxMissingRatio     *float64 `json:"max_missing_ratio,omitempty" validate:"omitempty,gt=0,lte=1" example:"0.5"`
}

// OutliersRequest 异常值处理参数
type OutliersRequest struct {
	DetectionMethod   string   `json:"detection_method,omitempty" example:"zscore"`
	TreatmentStrategy string   `json:"treatment_strategy,omitempty" example:"clip"`
	ZThreshold        *float64 `json:"z_threshold,omitempty" validate:"omitempty,gt=0" example:"3"`
	IQRMultiplier     *float64 `json:"iqr_multiplier,omitempty" validate:"omitempty,gt=0" example:"1.5"`
	LowerPercentile   *float64 `json:"lower_percentile,omitempty" validate:"omitempty,gte=0,lt=100" example:"1"`
	UpperPercentile   *float64 `json:"upper_percentile,omitempty" validate:"omitempty,gt=0,lte=100" example:"99"`
}

// ScalingRequest 缩放参数
type ScalingRequest struct {
	Method       string    `json:"method,omitempty" example:"standard"`
	FeatureRange []float64 `json:"feature_range,omitempty" validate:"omitempty,len=2"`
}

// EncodingRequest 分类编码参数
type EncodingRequest struct {
	Method        string `json:"method,omitempty" example:"auto"`
	MaxCategories *int   `json:"max_categories,omitempty" validate:"omitempty,gte=1" example:"10"`
}

// FeatureSelectionRequest 特征选择参数
type FeatureSelectionRequest struct {
	Method               string   `json:"method,omitempty" example:"importance"`
	MinImportance        *float64 `json:"min_importance,omitempty" validate:"omitempty,gte=0,lte=1" example:"0.01"`
	MaxFeatures          *int     `json:"max_features,omitempty" validate:"omitempty,gte=0" example:"20"`
	CorrelationThreshold *float64 `json:"correlation_threshold,omitempty" validate:"omitempty,gt=0,lte=1" example:"0.95"`
	Protected            []string `json:"protected,omitempty" validate:"omitempty,dive,required"`
}

// ValidationRequest 性能验证参数
type ValidationRequest struct {
	Task      string   `json:"task,omitempty" example:"auto"`
	Metric    string   `json:"metric,omitempty" example:"auto"`
	Folds     *int     `json:"folds,omitempty" validate:"omitempty,gte=2,lte=20" example:"5"`
	Tolerance *float64 `json:"tolerance,omitempty" validate:"omitempty,gte=0,lt=1" example:"0.05"`
}

// ProcessRequest 提交预处理作业请求
type ProcessRequest struct {
	DatasetID        string                   `json:"dataset_id" validate:"required,max=128" example:"sales_2024"`
	MissingValues    *MissingValuesRequest    `json:"missing_values,omitempty"`
	Outliers         *OutliersRequest         `json:"outliers,omitempty"`
	Scaling          *ScalingRequest          `json:"scaling,omitempty"`
	Encoding         *EncodingRequest         `json:"encoding,omitempty"`
	FeatureSelection *FeatureSelectionRequest `json:"feature_selection,omitempty"`
	Validation       *ValidationRequest       `json:"validation,omitempty"`
	TargetColumn     string                   `json:"target_column,omitempty" example:"churn"`
	ColumnsToIgnore  []string                 `json:"columns_to_ignore,omitempty" validate:"omitempty,dive,required"`
}

// SubmitResponse 提交响应
type SubmitResponse struct {
	JobID     string    `json:"job_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	DatasetID string    `json:"dataset_id" example:"sales_2024"`
	Status    string    `json:"status" example:"processing"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusResponse 作业状态响应
type StatusResponse struct {
	JobID             string                       `json:"job_id"`
	DatasetID         string                       `json:"dataset_id"`
	Status            string                       `json:"status" example:"running"`
	Stage             string                       `json:"stage,omitempty" example:"encoding"`
	ErrorKind         string                       `json:"error_kind,omitempty"`
	Error             string                       `json:"error,omitempty"`
	Summary           pipeline.Summary             `json:"summary"`
	ValidationMetrics *preprocess.ValidationReport `json:"validation_metrics,omitempty"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

// ReplayRequest 重放请求
type ReplayRequest struct {
	DatasetID string `json:"dataset_id" validate:"required,max=128" example:"sales_2025_q1"`
}

// toOptions 在默认配置上覆盖请求中提供的字段
func (req *ProcessRequest) toOptions(base preprocess.Options) (preprocess.Options, error) {
	opts := base
	opts.Selection.Protected = append([]string(nil), base.Selection.Protected...)
	opts.ColumnsToIgnore = append([]string(nil), base.ColumnsToIgnore...)
	var err error

	if mv := req.MissingValues; mv != nil {
		if mv.Strategy != "" {
			if opts.MissingValues.Strategy, err = preprocess.ParseImputationStrategy("missing_values.strategy", mv.Strategy); err != nil {
				return opts, err
			}
			// 统一策略同时作用于数值列与分类列，除非单独指定
			opts.MissingValues.NumericalStrategy = opts.MissingValues.Strategy
			opts.MissingValues.CategoricalStrategy = opts.MissingValues.Strategy
		}
		if mv.NumericalStrategy != "" {
			if opts.MissingValues.NumericalStrategy, err = preprocess.ParseImputationStrategy("missing_values.numerical_strategy", mv.NumericalStrategy); err != nil {
				return opts, err
			}
		}
		if mv.CategoricalStrategy != "" {
			if opts.MissingValues.CategoricalStrategy, err = preprocess.ParseImputationStrategy("missing_values.categorical_strategy", mv.CategoricalStrategy); err != nil {
				return opts, err
			}
		}
		if mv.FillValue != nil {
			opts.MissingValues.FillValue = *mv.FillValue
		}
		if mv.MaxMissingRatio != nil {
			opts.MissingValues.MaxMissingRatio = *mv.MaxMissingRatio
		}
	}

	if o := req.Outliers; o != nil {
		if o.DetectionMethod != "" {
			if opts.Outliers.Method, err = preprocess.ParseOutlierMethod(o.DetectionMethod); err != nil {
				return opts, err
			}
		}
		if o.TreatmentStrategy != "" {
			if opts.Outliers.Treatment, err = preprocess.ParseOutlierTreatment(o.TreatmentStrategy); err != nil {
				return opts, err
			}
		}
		setFloat(&opts.Outliers.ZThreshold, o.ZThreshold)
		setFloat(&opts.Outliers.IQRMultiplier, o.IQRMultiplier)
		setFloat(&opts.Outliers.LowerPercentile, o.LowerPercentile)
		setFloat(&opts.Outliers.UpperPercentile, o.UpperPercentile)
	}

	if sc := req.Scaling; sc != nil {
		if sc.Method != "" {
			if opts.Scaling.Method, err = preprocess.ParseScalingMethod(sc.Method); err != nil {
				return opts, err
			}
		}
		if len(sc.FeatureRange) == 2 {
			opts.Scaling.FeatureMin, opts.Scaling.FeatureMax = sc.FeatureRange[0], sc.FeatureRange[1]
		}
	}

	if enc := req.Encoding; enc != nil {
		if enc.Method != "" {
			if opts.Encoding.Method, err = preprocess.ParseEncodingMethod(enc.Method); err != nil {
				return opts, err
			}
		}
		setInt(&opts.Encoding.MaxCategories, enc.MaxCategories)
	}

	if fs := req.FeatureSelection; fs != nil {
		if fs.Method != "" {
			if opts.Selection.Method, err = preprocess.ParseSelectionMethod(fs.Method); err != nil {
				return opts, err
			}
		}
		setFloat(&opts.Selection.MinImportance, fs.MinImportance)
		setInt(&opts.Selection.MaxFeatures, fs.MaxFeatures)
		setFloat(&opts.Selection.CorrelationThreshold, fs.CorrelationThreshold)
		if len(fs.Protected) > 0 {
			opts.Selection.Protected = fs.Protected
		}
	}

	if v := req.Validation; v != nil {
		if v.Task != "" {
			if opts.Validation.Task, err = preprocess.ParseTaskType(v.Task); err != nil {
				return opts, err
			}
		}
		if v.Metric != "" {
			if opts.Validation.Metric, err = preprocess.ParseMetricName(v.Metric); err != nil {
				return opts, err
			}
		}
		setInt(&opts.Validation.Folds, v.Folds)
		setFloat(&opts.Validation.Tolerance, v.Tolerance)
	}

	if req.TargetColumn != "" {
		opts.TargetColumn = req.TargetColumn
	}
	if len(req.ColumnsToIgnore) > 0 {
		opts.ColumnsToIgnore = req.ColumnsToIgnore
	}
	return opts, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func toStatusResponse(snap pipeline.Snapshot) StatusResponse {
	return StatusResponse{
		JobID:             snap.JobID,
		DatasetID:         snap.DatasetID,
		Status:            string(snap.State),
		Stage:             snap.Stage,
		ErrorKind:         string(snap.ErrorKind),
		Error:             snap.Error,
		Summary:           snap.Summary,
		ValidationMetrics: snap.Validation,
		CreatedAt:         snap.CreatedAt,
		UpdatedAt:         snap.UpdatedAt,
	}
}

// Submit 提交预处理作业
// @Summary 提交预处理作业
// @Description 对已上传的数据集执行缺失值、异常值、缩放、编码、特征选择与性能验证，作业异步执行
// @Tags 数据预处理
// @Accept json
// @Produce json
// @Param request body ProcessRequest true "预处理请求"
// @Success 202 {object} APIResponse{data=SubmitResponse}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 413 {object} APIResponse
// @Router /process [post]
func (c *ProcessingController) Submit(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数校验失败", err))
		return
	}
	opts, err := req.toOptions(c.defaults)
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("处理配置无效", err))
		return
	}

	snap, err := c.service.Submit(r.Context(), req.DatasetID, opts)
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("提交预处理作业失败", err))
		return
	}
	render.Render(w, r, AcceptedResponse("预处理作业已提交", SubmitResponse{
		JobID:     snap.JobID,
		DatasetID: snap.DatasetID,
		Status:    meta.ProcessingStatusProcessing,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}))
}

// Status 查询作业状态
// @Summary 查询作业状态
// @Description 返回作业状态、摘要与验证指标
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=StatusResponse}
// @Failure 404 {object} APIResponse
// @Router /process/{id} [get]
func (c *ProcessingController) Status(w http.ResponseWriter, r *http.Request) {
	snap, err := c.service.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("查询作业状态失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("查询作业状态成功", toStatusResponse(snap)))
}

// Full 查询作业完整信息
// @Summary 查询作业完整信息
// @Description 已完成作业返回快照与全部报告，未完成作业只返回快照
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=processing.JobReport}
// @Failure 404 {object} APIResponse
// @Router /process/{id}/full [get]
func (c *ProcessingController) Full(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := c.service.Report(r.Context(), id)
	if errors.Is(err, processing.ErrJobNotCompleted) {
		snap, serr := c.service.Status(r.Context(), id)
		if serr != nil {
			render.Render(w, r, ServiceErrorResponse("查询作业失败", serr))
			return
		}
		report, err = &processing.JobReport{Snapshot: snap}, nil
	}
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("查询作业失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("查询作业成功", report))
}

// Transformations 查询转换记录
// @Summary 查询转换记录
// @Description 按执行顺序返回转换记录，失败或取消的作业返回已完成阶段的记录
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=[]preprocess.TransformationRecord}
// @Failure 404 {object} APIResponse
// @Router /process/{id}/transformations [get]
func (c *ProcessingController) Transformations(w http.ResponseWriter, r *http.Request) {
	records, err := c.service.Transformations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("查询转换记录失败", err))
		return
	}
	if records == nil {
		records = []preprocess.TransformationRecord{}
	}
	render.Render(w, r, SuccessResponse("查询转换记录成功", records))
}

// MissingValues 查询缺失值报告
// @Summary 查询缺失值报告
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=[]preprocess.MissingValueEntry}
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/missing-values [get]
func (c *ProcessingController) MissingValues(w http.ResponseWriter, r *http.Request) {
	report, ok := c.report(w, r, "查询缺失值报告失败")
	if !ok {
		return
	}
	render.Render(w, r, SuccessResponse("查询缺失值报告成功", nonNil(report.MissingValues)))
}

// Outliers 查询异常值报告
// @Summary 查询异常值报告
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=[]preprocess.OutlierEntry}
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/outliers [get]
func (c *ProcessingController) Outliers(w http.ResponseWriter, r *http.Request) {
	report, ok := c.report(w, r, "查询异常值报告失败")
	if !ok {
		return
	}
	render.Render(w, r, SuccessResponse("查询异常值报告成功", nonNil(report.Outliers)))
}

// FeatureImportance 查询特征重要性报告
// @Summary 查询特征重要性报告
// @Description 按重要性降序返回，同分按原始列顺序
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=[]preprocess.FeatureScore}
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/feature-importance [get]
func (c *ProcessingController) FeatureImportance(w http.ResponseWriter, r *http.Request) {
	report, ok := c.report(w, r, "查询特征重要性失败")
	if !ok {
		return
	}
	render.Render(w, r, SuccessResponse("查询特征重要性成功", nonNil(report.FeatureImportance)))
}

func (c *ProcessingController) report(w http.ResponseWriter, r *http.Request, failMsg string) (*processing.JobReport, bool) {
	report, err := c.service.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse(failMsg, err))
		return nil, false
	}
	return report, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// Artifacts 获取拟合产物
// @Summary 获取拟合产物
// @Description 返回可在预测阶段重放的拟合产物；format=msgpack时返回二进制编码
// @Tags 数据预处理
// @Produce json
// @Produce application/msgpack
// @Param id path string true "作业ID"
// @Param format query string false "json或msgpack"
// @Success 200 {object} APIResponse{data=[]preprocess.FitArtifact}
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/artifacts [get]
func (c *ProcessingController) Artifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifacts, err := c.service.Artifacts(r.Context(), id)
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("获取拟合产物失败", err))
		return
	}
	if r.URL.Query().Get("format") == "msgpack" {
		data, err := preprocess.EncodeArtifacts(artifacts)
		if err != nil {
			render.Render(w, r, InternalErrorResponse("编码拟合产物失败", err))
			return
		}
		w.Header().Set("Content-Type", "application/msgpack")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".artifacts"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	render.Render(w, r, SuccessResponse("获取拟合产物成功", nonNil(artifacts)))
}

// Replay 在新数据集上重放拟合产物
// @Summary 重放拟合产物
// @Description 将已完成作业的拟合产物应用到另一个已上传的数据集，返回CSV
// @Tags 数据预处理
// @Accept json
// @Produce text/csv
// @Param id path string true "作业ID"
// @Param request body ReplayRequest true "重放请求"
// @Success 200 {string} string "处理后的CSV"
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/replay [post]
func (c *ProcessingController) Replay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		render.Render(w, r, BadRequestResponse("请求参数校验失败", err))
		return
	}
	out, err := c.service.Replay(r.Context(), chi.URLParam(r, "id"), req.DatasetID)
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("重放拟合产物失败", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := dataset.WriteCSV(w, out); err != nil {
		slog.Error("写出重放结果失败", "job_id", chi.URLParam(r, "id"), "error", err)
	}
}

// ByDataset 查询数据集最近一次作业
// @Summary 查询数据集最近一次作业
// @Tags 数据预处理
// @Produce json
// @Param dataset_id path string true "数据集ID"
// @Success 200 {object} APIResponse{data=StatusResponse}
// @Failure 404 {object} APIResponse
// @Router /process/dataset/{dataset_id} [get]
func (c *ProcessingController) ByDataset(w http.ResponseWriter, r *http.Request) {
	snap, err := c.service.LatestForDataset(r.Context(), chi.URLParam(r, "dataset_id"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("查询数据集作业失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("查询数据集作业成功", toStatusResponse(snap)))
}

// Cancel 取消作业
// @Summary 取消作业
// @Description 取消在阶段边界生效，已完成阶段的转换记录会被保留
// @Tags 数据预处理
// @Produce json
// @Param id path string true "作业ID"
// @Success 200 {object} APIResponse{data=StatusResponse}
// @Failure 404 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /process/{id}/cancel [post]
func (c *ProcessingController) Cancel(w http.ResponseWriter, r *http.Request) {
	snap, err := c.service.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		render.Render(w, r, ServiceErrorResponse("取消作业失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("已请求取消作业", toStatusResponse(snap)))
}

// Stats 作业统计
// @Summary 作业统计
// @Description 统计最近若干小时内的作业状态分布、成功率、错误分布与平均耗时
// @Tags 数据预处理
// @Produce json
// @Param hours query int false "统计窗口（小时），默认24"
// @Success 200 {object} APIResponse{data=monitoring.JobMetrics}
// @Failure 400 {object} APIResponse
// @Router /process/stats [get]
func (c *ProcessingController) Stats(w http.ResponseWriter, r *http.Request) {
	if c.collector == nil {
		render.Render(w, r, ErrorResponse(http.StatusServiceUnavailable, "作业统计不可用", nil))
		return
	}
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		v, err := cast.ToIntE(raw)
		if err != nil || v <= 0 {
			render.Render(w, r, BadRequestResponse("hours必须为正整数", err))
			return
		}
		hours = v
	}
	metrics, err := c.collector.CollectJobMetrics(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		render.Render(w, r, InternalErrorResponse("统计作业失败", err))
		return
	}
	render.Render(w, r, SuccessResponse("统计作业成功", metrics))
}

// Events 订阅作业终态事件
// @Summary 订阅作业终态事件
// @Description 以SSE推送作业完成、失败、取消事件；dataset_id为空时接收全部事件
// @Tags 数据预处理
// @Produce text/event-stream
// @Param dataset_id query string false "数据集ID"
// @Success 200 {string} string "SSE事件流"
// @Router /process/events [get]
func (c *ProcessingController) Events(w http.ResponseWriter, r *http.Request) {
	if c.broker == nil {
		render.Render(w, r, ErrorResponse(http.StatusServiceUnavailable, "事件订阅未启用", nil))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		render.Render(w, r, InternalErrorResponse("连接不支持流式响应", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := c.broker.Subscribe(r.URL.Query().Get("dataset_id"))
	defer c.broker.Unsubscribe(sub.ID)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber_id\":%q,\"timestamp\":%q}\n\n",
		sub.ID, time.Now().Format(time.RFC3339))
	flusher.Flush()

	for {
		select {
		case ev := <-sub.Events:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		case <-sub.Done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
