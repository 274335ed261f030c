/*
 * @module service/pipeline/orchestrator
 * @description 流水线编排器，按固定顺序执行各预处理阶段并推进作业状态机
 * @architecture 流水线编排 - 单写者状态机
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow profile -> missing_values -> outliers -> scaling -> encoding -> feature_selection -> validation
 * @rules 配置错误在任何阶段执行前拒绝；阶段边界检查取消与超时；
 *        失败时保留已完成阶段的转换记录；中间数据集在终态前不对外暴露
 * @dependencies processor-service/service/preprocess, log/slog
 * @refs service/pipeline/registry.go, service/processing/processing_service.go
 */

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"processor-service/service/dataset"
	"processor-service/service/preprocess"
)

// StateSink 作业状态持久化接口，在每次状态迁移后调用
type StateSink interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// Observer 作业执行观测接口
type Observer interface {
	StageCompleted(stage string, duration time.Duration, rowsDropped int)
	JobFinished(state JobState, duration time.Duration)
}

// Orchestrator 流水线编排器
type Orchestrator struct {
	registry *Registry
	sink     StateSink
	observer Observer
	profiler preprocess.ColumnProfiler
	logger   *slog.Logger
}

// NewOrchestrator 创建编排器，sink与observer可为nil
func NewOrchestrator(registry *Registry, sink StateSink, observer Observer) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		sink:     sink,
		observer: observer,
		logger:   slog.Default().With("component", "pipeline"),
	}
}

// Registry 返回作业注册表
func (o *Orchestrator) Registry() *Registry { return o.registry }

// run 单次执行的内部状态，不对外暴露
type run struct {
	opts       preprocess.Options
	input      *dataset.Dataset
	current    *dataset.Dataset
	original   *dataset.Dataset
	initial    preprocess.Profiles
	profiles   preprocess.Profiles
	trail      preprocess.Trail
	validation *preprocess.ValidationReport
	started    time.Time
}

// Run 执行作业，阻塞直到作业进入终态
func (o *Orchestrator) Run(ctx context.Context, job *Job, ds *dataset.Dataset) (*Result, error) {
	if _, ok := o.registry.Get(job.ID); !ok {
		if _, err := o.registry.Register(job); err != nil && !errors.Is(err, ErrJobExists) {
			return nil, err
		}
	}

	r := &run{opts: job.Options, input: ds, current: ds, started: time.Now()}
	log := o.logger.With("job_id", job.ID, "dataset_id", job.DatasetID)

	if err := job.Options.Validate(); err != nil {
		return nil, o.fail(ctx, job, r, err, log)
	}
	if err := checkColumns(job.Options, ds); err != nil {
		return nil, o.fail(ctx, job, r, err, log)
	}
	if err := preprocess.ContextError(ctx, preprocess.StageProfile); err != nil {
		return nil, o.fail(ctx, job, r, err, log)
	}

	runCtx := ctx
	if job.Options.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, job.Options.Timeout)
		defer cancel()
	}

	snap, err := o.registry.transition(job.ID, StateRunning, nil)
	if err != nil {
		return nil, err
	}
	o.persist(ctx, snap, log)
	log.Info("处理作业开始", "rows", ds.NumRows(), "columns", ds.NumColumns(), "config", job.Options.String())

	for _, stage := range preprocess.StageOrder {
		if err := preprocess.ContextError(runCtx, stage); err != nil {
			return nil, o.fail(ctx, job, r, err, log)
		}
		o.setStage(job.ID, stage, r)

		began := time.Now()
		records, err := o.execute(runCtx, stage, r)
		r.trail.Append(records...)
		elapsed := time.Since(began)
		if o.observer != nil {
			o.observer.StageCompleted(stage, elapsed, rowsDropped(records))
		}
		if err != nil {
			return nil, o.fail(ctx, job, r, wrapStageError(stage, err), log)
		}
		log.Debug("阶段完成", "stage", stage, "records", len(records), "rows", r.current.NumRows(),
			"duration_ms", elapsed.Milliseconds())
	}

	result := &Result{
		Original:    r.original,
		Transformed: r.current,
		Columns:     r.input.Names(),
		Profiles:    r.initial,
		Records:     r.trail.Records(),
		Validation:  r.validation,
	}
	snap, err = o.registry.transition(job.ID, StateCompleted, func(e *entry) {
		e.snapshot.Stage = ""
		e.snapshot.Records = result.Records
		e.snapshot.Validation = result.Validation
		e.snapshot.Summary = summarize(r, result.Chosen())
		e.result = result
	})
	if err != nil {
		return nil, err
	}
	o.persist(ctx, snap, log)
	if o.observer != nil {
		o.observer.JobFinished(StateCompleted, time.Since(r.started))
	}
	log.Info("处理作业完成", "verdict", r.validation.Verdict, "transformations", r.trail.Len(),
		"duration_ms", time.Since(r.started).Milliseconds())
	return result, nil
}

// execute 执行单个阶段，返回本阶段产生的转换记录
func (o *Orchestrator) execute(ctx context.Context, stage string, r *run) ([]preprocess.TransformationRecord, error) {
	var (
		next    *dataset.Dataset
		records []preprocess.TransformationRecord
		err     error
	)
	switch stage {
	case preprocess.StageProfile:
		r.profiles = o.profiler.Profile(r.current)
		r.initial = r.profiles
		if r.current.NumRows() < r.opts.MinRows {
			return nil, preprocess.InsufficientData(stage, r.current.NumRows(), r.opts.MinRows)
		}
		return nil, nil
	case preprocess.StageMissingValues:
		next, records, err = preprocess.NewMissingValueHandler(r.opts).Apply(r.current, r.profiles)
	case preprocess.StageOutliers:
		next, records, err = preprocess.NewOutlierHandler(r.opts).Apply(r.current, r.profiles)
	case preprocess.StageScaling:
		next, records, err = preprocess.NewScaler(r.opts).Apply(r.current, r.profiles)
	case preprocess.StageEncoding:
		next, records, err = preprocess.NewCategoricalEncoder(r.opts).Apply(r.current, r.profiles)
	case preprocess.StageSelection:
		groups := preprocess.OneHotGroups(r.trail.Records())
		next, records, err = preprocess.NewFeatureSelector(r.opts).Apply(ctx, r.current, groups)
	case preprocess.StageValidation:
		report, verr := preprocess.NewPerformanceValidator(r.opts).Validate(ctx, r.original, r.current)
		if verr != nil {
			return nil, verr
		}
		r.validation = report
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	if err != nil {
		return records, err
	}
	r.current = next
	r.profiles = o.profiler.Profile(next)
	if stage == preprocess.StageOutliers {
		r.original = next
	}
	return records, nil
}

// fail 将作业迁移到failed或cancelled并保留已有的转换记录
func (o *Orchestrator) fail(ctx context.Context, job *Job, r *run, err error, log *slog.Logger) error {
	kind := preprocess.KindOf(err)
	state := StateFailed
	if kind == preprocess.KindCancelled {
		state = StateCancelled
	}
	records := r.trail.Records()
	snap, terr := o.registry.transition(job.ID, state, func(e *entry) {
		e.snapshot.ErrorKind = kind
		e.snapshot.Error = preprocess.UserMessage(err)
		e.snapshot.Records = records
		e.snapshot.Summary = summarize(r, r.current)
	})
	if terr != nil {
		log.Error("作业状态迁移失败", "to", state, "error", terr)
		return errors.Join(err, terr)
	}
	if state == StateCancelled {
		log.Warn("处理作业已取消", "stage", snap.Stage, "records", len(records))
	} else {
		log.Error("处理作业失败", "stage", snap.Stage, "error_kind", kind, "error", err, "records", len(records))
	}
	o.persist(ctx, snap, log)
	if o.observer != nil {
		o.observer.JobFinished(state, time.Since(r.started))
	}
	return err
}

func (o *Orchestrator) setStage(id, stage string, r *run) {
	records := r.trail.Records()
	if _, err := o.registry.update(id, func(e *entry) error {
		e.snapshot.Stage = stage
		e.snapshot.Records = records
		return nil
	}); err != nil {
		o.logger.Warn("更新作业阶段失败", "job_id", id, "stage", stage, "error", err)
	}
}

// persist 写入外部状态存储，取消信号不影响终态落库
func (o *Orchestrator) persist(ctx context.Context, snap Snapshot, log *slog.Logger) {
	if o.sink == nil {
		return
	}
	if err := o.sink.SaveSnapshot(context.WithoutCancel(ctx), snap); err != nil {
		log.Warn("持久化作业状态失败", "status", snap.State, "error", err)
	}
}

// checkColumns 校验配置引用的列在数据集中存在
func checkColumns(opts preprocess.Options, ds *dataset.Dataset) error {
	if opts.TargetColumn != "" && !ds.Has(opts.TargetColumn) {
		return preprocess.NewStageError(preprocess.KindInvalidConfiguration, "configuration", opts.TargetColumn,
			map[string]any{"field": "target_column"},
			fmt.Errorf("target_column: 数据集中不存在列 %q", opts.TargetColumn))
	}
	for _, name := range opts.Selection.Protected {
		if !ds.Has(name) {
			return preprocess.NewStageError(preprocess.KindInvalidConfiguration, "configuration", name,
				map[string]any{"field": "feature_selection.protected"},
				fmt.Errorf("feature_selection.protected: 数据集中不存在列 %q", name))
		}
	}
	return nil
}

// wrapStageError 为未分类的错误补充阶段上下文
func wrapStageError(stage string, err error) error {
	var se *preprocess.StageError
	if errors.As(err, &se) {
		return err
	}
	kind := preprocess.KindOf(err)
	return preprocess.NewStageError(kind, stage, "", nil, err)
}

func rowsDropped(records []preprocess.TransformationRecord) int {
	dropped := 0
	for _, rec := range records {
		if d := rec.RowDelta(); d < 0 {
			dropped -= d
		}
	}
	return dropped
}

func summarize(r *run, out *dataset.Dataset) Summary {
	s := Summary{
		RowsIn:          r.input.NumRows(),
		ColumnsIn:       r.input.NumColumns(),
		MissingBefore:   r.input.MissingCount(),
		RowsDropped:     r.trail.RowsDropped(),
		Transformations: r.trail.Len(),
		DurationMs:      time.Since(r.started).Milliseconds(),
		Fingerprint:     r.input.Fingerprint(),
	}
	if out != nil {
		s.RowsOut = out.NumRows()
		s.ColumnsOut = out.NumColumns()
		s.MissingAfter = out.MissingCount()
	}
	if r.validation != nil {
		s.Verdict = r.validation.Verdict
	}
	return s
}
