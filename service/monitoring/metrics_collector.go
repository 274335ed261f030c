/*
 * @module service/monitoring/metrics_collector
 * @description 指标收集器，导出流水线Prometheus指标并汇总作业表统计
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 阶段完成/作业结束 -> 更新计数器与直方图；统计请求 -> 按时间范围聚合作业表
 * @rules 指标名以processor_为前缀；阶段耗时以秒为单位；统计只读不写
 * @dependencies github.com/prometheus/client_golang, gorm.io/gorm
 * @refs service/pipeline/orchestrator.go, api/controllers/processing_controller.go
 */

package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"processor-service/service/models"
	"processor-service/service/pipeline"
)

// PipelineMetrics 流水线Prometheus指标，实现pipeline.Observer
type PipelineMetrics struct {
	jobs          *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	rowsDropped   *prometheus.CounterVec
	inflight      prometheus.Gauge
}

// NewPipelineMetrics 创建并注册指标
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processor_jobs_total",
			Help: "按终态统计的处理作业数量",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "processor_job_duration_seconds",
			Help:    "处理作业从开始到终态的耗时",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "processor_stage_duration_seconds",
			Help:    "流水线各阶段耗时",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "processor_rows_dropped_total",
			Help: "各阶段删除的行数",
		}, []string{"stage"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "processor_jobs_inflight",
			Help: "正在执行的处理作业数量",
		}),
	}
	reg.MustRegister(m.jobs, m.jobDuration, m.stageDuration, m.rowsDropped, m.inflight)
	return m
}

// StageCompleted 记录阶段耗时与删除行数
func (m *PipelineMetrics) StageCompleted(stage string, duration time.Duration, rowsDropped int) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if rowsDropped > 0 {
		m.rowsDropped.WithLabelValues(stage).Add(float64(rowsDropped))
	}
}

// JobFinished 记录作业终态
func (m *PipelineMetrics) JobFinished(state pipeline.JobState, duration time.Duration) {
	m.jobs.WithLabelValues(string(state)).Inc()
	m.jobDuration.WithLabelValues(string(state)).Observe(duration.Seconds())
}

// JobStarted 正在执行的作业数加一，返回对应的结束回调
func (m *PipelineMetrics) JobStarted() func() {
	m.inflight.Inc()
	return m.inflight.Dec
}

// MetricsCollector 作业表统计收集器
type MetricsCollector struct {
	db *gorm.DB
}

// JobMetrics 处理作业统计
type JobMetrics struct {
	Timestamp         time.Time        `json:"timestamp"`
	Since             time.Time        `json:"since"`
	TotalJobs         int64            `json:"total_jobs"`         // 总作业数
	StatusCounts      map[string]int64 `json:"status_counts"`      // 各状态作业数
	SuccessRate       float64          `json:"success_rate"`       // 终态作业中的完成比例(%)
	AvgDurationMs     float64          `json:"avg_duration_ms"`    // 已完成作业的平均耗时
	TotalRowsIn       int64            `json:"total_rows_in"`      // 输入总行数
	TotalRowsOut      int64            `json:"total_rows_out"`     // 输出总行数
	ErrorDistribution map[string]int64 `json:"error_distribution"` // 按错误类型统计的失败数
}

// NewMetricsCollector 创建指标收集器实例
func NewMetricsCollector(db *gorm.DB) *MetricsCollector {
	return &MetricsCollector{db: db}
}

// CollectJobMetrics 统计since之后创建的作业
func (c *MetricsCollector) CollectJobMetrics(ctx context.Context, since time.Time) (*JobMetrics, error) {
	db := c.db.WithContext(ctx).Model(&models.ProcessingJob{}).Where("created_at >= ?", since).Session(&gorm.Session{})

	var statusRows []struct {
		Status string
		Count  int64
	}
	if err := db.Select("status, COUNT(*) AS count").Group("status").Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("统计作业状态失败: %w", err)
	}

	metrics := &JobMetrics{
		Timestamp:         time.Now(),
		Since:             since,
		StatusCounts:      make(map[string]int64),
		ErrorDistribution: make(map[string]int64),
	}
	var terminal, completed int64
	for _, row := range statusRows {
		metrics.StatusCounts[row.Status] = row.Count
		metrics.TotalJobs += row.Count
		switch pipeline.JobState(row.Status) {
		case pipeline.StateCompleted:
			completed += row.Count
			terminal += row.Count
		case pipeline.StateFailed, pipeline.StateCancelled:
			terminal += row.Count
		}
	}
	if terminal > 0 {
		metrics.SuccessRate = float64(completed) / float64(terminal) * 100
	}

	var errorRows []struct {
		ErrorKind string
		Count     int64
	}
	if err := db.Select("error_kind, COUNT(*) AS count").
		Where("error_kind <> ''").Group("error_kind").Scan(&errorRows).Error; err != nil {
		return nil, fmt.Errorf("统计错误分布失败: %w", err)
	}
	for _, row := range errorRows {
		metrics.ErrorDistribution[row.ErrorKind] = row.Count
	}

	var totals struct {
		RowsIn  int64
		RowsOut int64
	}
	if err := db.
		Select("COALESCE(SUM(rows_in), 0) AS rows_in, COALESCE(SUM(rows_out), 0) AS rows_out").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("统计处理行数失败: %w", err)
	}
	metrics.TotalRowsIn, metrics.TotalRowsOut = totals.RowsIn, totals.RowsOut

	var spans []struct {
		StartedAt  *time.Time
		FinishedAt *time.Time
	}
	if err := db.Select("started_at, finished_at").
		Where("status = ? AND started_at IS NOT NULL AND finished_at IS NOT NULL", string(pipeline.StateCompleted)).
		Scan(&spans).Error; err != nil {
		return nil, fmt.Errorf("统计作业耗时失败: %w", err)
	}
	var total time.Duration
	for _, s := range spans {
		total += s.FinishedAt.Sub(*s.StartedAt)
	}
	if len(spans) > 0 {
		metrics.AvgDurationMs = float64(total.Milliseconds()) / float64(len(spans))
	}
	return metrics, nil
}
