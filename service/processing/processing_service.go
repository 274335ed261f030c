/*
 * @module service/processing/processing_service
 * @description 数据预处理作业服务，负责作业提交、并发调度、结果落地、通知与查询
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/preprocess_pipeline.md
 * @stateFlow 提交 -> 校验数据集与配置 -> 登记pending -> 等待并发槽位与数据集锁 -> 编排器执行 -> 保存结果与处理后数据集 -> 发送通知
 * @rules 同时执行的作业数受MAX_CONCURRENT_JOBS限制；同一数据集同一时刻只有一个作业在执行；
 *        通知失败不改变作业状态；查询优先读取内存注册表，其次读取作业表
 * @dependencies golang.org/x/sync/semaphore, github.com/google/uuid, processor-service/service/pipeline
 * @refs service/init.go, api/controllers/processing_controller.go
 */

package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"processor-service/service/dataset"
	"processor-service/service/distributed_lock"
	"processor-service/service/models"
	"processor-service/service/notify"
	"processor-service/service/pipeline"
	"processor-service/service/preprocess"
	"processor-service/service/store"
)

var (
	// ErrJobNotCompleted 作业尚未完成，报告不可用
	ErrJobNotCompleted = errors.New("processing job not completed")
	// ErrJobFinished 作业已结束，无法取消
	ErrJobFinished = errors.New("processing job already finished")
)

// lockRetryInterval 数据集锁被占用时的重试间隔
const lockRetryInterval = time.Second

// DatasetSource 数据集读取与结果写出
type DatasetSource interface {
	Load(ctx context.Context, id string) (*dataset.Dataset, error)
	SaveProcessed(ctx context.Context, id string, chosen, original *dataset.Dataset) error
	ProcessedPath(id string) string
}

// JobRepository 作业状态存储
type JobRepository interface {
	pipeline.StateSink
	SaveResult(ctx context.Context, jobID string, result *pipeline.Result) error
	Get(ctx context.Context, id string) (*models.ProcessingJob, error)
	LatestByDataset(ctx context.Context, datasetID string) (*models.ProcessingJob, error)
}

// JobObserver 作业执行观测，在编排器观测之外记录执行中的作业数
type JobObserver interface {
	pipeline.Observer
	JobStarted() func()
}

// Dependencies 服务依赖，除Datasets外均可为空
type Dependencies struct {
	Datasets      DatasetSource
	Jobs          JobRepository
	Notifier      notify.Notifier
	Observer      JobObserver
	Lock          distributed_lock.DistributedLock
	LockTTL       time.Duration
	MaxConcurrent int
}

// JobReport 作业快照与完成后的报告
type JobReport struct {
	pipeline.Snapshot
	MissingValues     []preprocess.MissingValueEntry `json:"missing_values_report"`
	Outliers          []preprocess.OutlierEntry      `json:"outliers_report"`
	FeatureImportance []preprocess.FeatureScore      `json:"feature_importance"`
	ProcessedPath     string                         `json:"processed_path,omitempty"`
}

// ProcessingService 预处理作业服务
type ProcessingService struct {
	registry     *pipeline.Registry
	orchestrator *pipeline.Orchestrator
	datasets     DatasetSource
	jobs         JobRepository
	notifier     notify.Notifier
	observer     JobObserver
	locker       *distributed_lock.LockExecutor
	lockTTL      time.Duration
	slots        *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewProcessingService 创建预处理作业服务
func NewProcessingService(registry *pipeline.Registry, deps Dependencies) *ProcessingService {
	if registry == nil {
		registry = pipeline.NewRegistry()
	}
	maxConcurrent := deps.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	s := &ProcessingService{
		registry: registry,
		datasets: deps.Datasets,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		observer: deps.Observer,
		lockTTL:  deps.LockTTL,
		slots:    semaphore.NewWeighted(int64(maxConcurrent)),
		cancels:  make(map[string]context.CancelFunc),
		logger:   slog.Default().With("component", "processing"),
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 15 * time.Minute
	}
	if deps.Lock != nil {
		s.locker = distributed_lock.NewLockExecutor(deps.Lock)
	}

	// 接口变量只在非nil时赋值，避免编排器拿到带类型的nil
	var sink pipeline.StateSink
	if deps.Jobs != nil {
		sink = deps.Jobs
	}
	var observer pipeline.Observer
	if deps.Observer != nil {
		observer = deps.Observer
	}
	s.orchestrator = pipeline.NewOrchestrator(registry, sink, observer)
	return s
}

// Registry 返回作业注册表
func (s *ProcessingService) Registry() *pipeline.Registry {
	return s.registry
}

// Submit 提交预处理作业，数据集与配置校验通过后异步执行
func (s *ProcessingService) Submit(ctx context.Context, datasetID string, opts preprocess.Options) (pipeline.Snapshot, error) {
	if err := store.ValidateDatasetID(datasetID); err != nil {
		return pipeline.Snapshot{}, err
	}
	if err := opts.Validate(); err != nil {
		return pipeline.Snapshot{}, err
	}
	ds, err := s.datasets.Load(ctx, datasetID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	job := &pipeline.Job{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		Options:   opts,
		CreatedAt: time.Now(),
	}
	snap, err := s.registry.Register(job)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	if s.jobs != nil {
		if err := s.jobs.SaveSnapshot(ctx, snap); err != nil {
			s.logger.Warn("保存pending作业失败", "job_id", job.ID, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(job.ID)
		s.execute(runCtx, job, ds)
	}()

	s.logger.Info("处理作业已提交", "job_id", job.ID, "dataset_id", datasetID,
		"rows", ds.NumRows(), "columns", ds.NumColumns())
	return snap, nil
}

// execute 等待执行槽位与数据集锁后运行作业
func (s *ProcessingService) execute(ctx context.Context, job *pipeline.Job, ds *dataset.Dataset) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		// 排队期间被取消，由编排器将作业迁移到cancelled
		s.finish(ctx, job, nil, s.run(ctx, job, ds))
		return
	}
	defer s.slots.Release(1)

	if s.locker == nil {
		result, err := s.runAndCollect(ctx, job, ds)
		s.finish(ctx, job, result, err)
		return
	}

	key := "dataset:" + job.DatasetID
	for {
		var (
			result *pipeline.Result
			runErr error
		)
		err := s.locker.ExecuteWithLockAndRefresh(ctx, key, s.lockTTL, s.lockTTL/3, func() error {
			result, runErr = s.runAndCollect(ctx, job, ds)
			return nil
		})
		if err == nil {
			s.finish(ctx, job, result, runErr)
			return
		}
		if !errors.Is(err, distributed_lock.ErrLockHeld) {
			// 锁服务不可用时不阻塞作业
			s.logger.Warn("获取数据集锁失败，直接执行", "job_id", job.ID, "error", err)
			result, runErr = s.runAndCollect(ctx, job, ds)
			s.finish(ctx, job, result, runErr)
			return
		}
		select {
		case <-ctx.Done():
			s.finish(ctx, job, nil, s.run(ctx, job, ds))
			return
		case <-time.After(lockRetryInterval):
		}
	}
}

// run 只运行编排器，用于作业未真正开始执行的取消路径
func (s *ProcessingService) run(ctx context.Context, job *pipeline.Job, ds *dataset.Dataset) error {
	_, err := s.orchestrator.Run(ctx, job, ds)
	return err
}

func (s *ProcessingService) runAndCollect(ctx context.Context, job *pipeline.Job, ds *dataset.Dataset) (*pipeline.Result, error) {
	if s.observer != nil {
		done := s.observer.JobStarted()
		defer done()
	}
	result, err := s.orchestrator.Run(ctx, job, ds)
	if err != nil {
		return nil, err
	}

	persistCtx := context.WithoutCancel(ctx)
	if s.jobs != nil {
		if err := s.jobs.SaveResult(persistCtx, job.ID, result); err != nil {
			s.logger.Error("保存作业结果失败", "job_id", job.ID, "error", err)
		}
	}
	if err := s.datasets.SaveProcessed(persistCtx, job.DatasetID, result.Chosen(), result.Original); err != nil {
		s.logger.Error("写出处理后数据集失败", "job_id", job.ID, "dataset_id", job.DatasetID, "error", err)
	}
	return result, nil
}

// finish 作业进入终态后发送通知
func (s *ProcessingService) finish(ctx context.Context, job *pipeline.Job, result *pipeline.Result, err error) {
	snap, ok := s.registry.Get(job.ID)
	if !ok || !snap.State.Terminal() {
		s.logger.Error("作业未进入终态", "job_id", job.ID, "error", err)
		return
	}
	if s.notifier == nil {
		return
	}
	processedPath := ""
	if result != nil {
		processedPath = s.datasets.ProcessedPath(job.DatasetID)
	}
	if nerr := s.notifier.Notify(context.WithoutCancel(ctx), notify.NewEvent(snap, processedPath)); nerr != nil {
		s.logger.Warn("作业通知发送失败", "job_id", job.ID, "status", snap.State, "error", nerr)
	}
}

func (s *ProcessingService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// Cancel 请求取消作业，取消在阶段边界生效
func (s *ProcessingService) Cancel(ctx context.Context, id string) (pipeline.Snapshot, error) {
	s.mu.Lock()
	cancel, active := s.cancels[id]
	s.mu.Unlock()
	if active {
		cancel()
		snap, _ := s.registry.Get(id)
		s.logger.Info("已请求取消处理作业", "job_id", id, "status", snap.State)
		return snap, nil
	}
	snap, err := s.Status(ctx, id)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return snap, fmt.Errorf("%w: %s", ErrJobFinished, snap.State)
}

// ActiveJobs 返回本实例尚未结束的作业标识
func (s *ProcessingService) ActiveJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.cancels))
	for id := range s.cancels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown 取消所有执行中的作业并等待其进入终态
func (s *ProcessingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait 等待所有已提交的作业结束
func (s *ProcessingService) Wait() {
	s.wg.Wait()
}

// Status 获取作业状态
func (s *ProcessingService) Status(ctx context.Context, id string) (pipeline.Snapshot, error) {
	if snap, ok := s.registry.Get(id); ok {
		return snap, nil
	}
	if s.jobs == nil {
		return pipeline.Snapshot{}, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return snapshotFromModel(job), nil
}

// LatestForDataset 获取数据集最近一次提交的作业
func (s *ProcessingService) LatestForDataset(ctx context.Context, datasetID string) (pipeline.Snapshot, error) {
	if err := store.ValidateDatasetID(datasetID); err != nil {
		return pipeline.Snapshot{}, err
	}
	if snap, ok := s.registry.LatestForDataset(datasetID); ok {
		return snap, nil
	}
	if s.jobs == nil {
		return pipeline.Snapshot{}, fmt.Errorf("%w: dataset %s", pipeline.ErrJobNotFound, datasetID)
	}
	job, err := s.jobs.LatestByDataset(ctx, datasetID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return snapshotFromModel(job), nil
}

// Transformations 获取转换记录，失败或取消的作业返回已完成阶段的记录
func (s *ProcessingService) Transformations(ctx context.Context, id string) ([]preprocess.TransformationRecord, error) {
	snap, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap.Records, nil
}

// Report 获取已完成作业的完整报告
func (s *ProcessingService) Report(ctx context.Context, id string) (*JobReport, error) {
	if result, ok := s.registry.Result(id); ok {
		snap, _ := s.registry.Get(id)
		return &JobReport{
			Snapshot:          snap,
			MissingValues:     result.MissingValueReport(),
			Outliers:          preprocess.BuildOutlierReport(result.Records),
			FeatureImportance: preprocess.BuildFeatureImportanceReport(result.Records),
			ProcessedPath:     s.datasets.ProcessedPath(snap.DatasetID),
		}, nil
	}
	if snap, ok := s.registry.Get(id); ok && snap.State != pipeline.StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrJobNotCompleted, snap.State)
	}
	if s.jobs == nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != string(pipeline.StateCompleted) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotCompleted, job.Status)
	}
	return &JobReport{
		Snapshot:          snapshotFromModel(job),
		MissingValues:     job.MissingValues,
		Outliers:          job.Outliers,
		FeatureImportance: job.FeatureImportance,
		ProcessedPath:     s.datasets.ProcessedPath(job.DatasetID),
	}, nil
}

// Artifacts 获取已完成作业的拟合产物，用于在新数据上重放
func (s *ProcessingService) Artifacts(ctx context.Context, id string) ([]preprocess.FitArtifact, error) {
	if result, ok := s.registry.Result(id); ok {
		return result.ChosenArtifacts(), nil
	}
	if snap, ok := s.registry.Get(id); ok && snap.State != pipeline.StateCompleted {
		return nil, fmt.Errorf("%w: %s", ErrJobNotCompleted, snap.State)
	}
	if s.jobs == nil {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrJobNotFound, id)
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != string(pipeline.StateCompleted) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotCompleted, job.Status)
	}
	return job.DecodeArtifacts()
}

// Replay 将已完成作业的拟合产物应用到另一个上传的数据集
func (s *ProcessingService) Replay(ctx context.Context, id, datasetID string) (*dataset.Dataset, error) {
	artifacts, err := s.Artifacts(ctx, id)
	if err != nil {
		return nil, err
	}
	ds, err := s.datasets.Load(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	return preprocess.Replay(ds, artifacts)
}

// snapshotFromModel 由作业表记录还原快照
func snapshotFromModel(job *models.ProcessingJob) pipeline.Snapshot {
	snap := pipeline.Snapshot{
		JobID:      job.ID,
		DatasetID:  job.DatasetID,
		State:      pipeline.JobState(job.Status),
		Stage:      job.Stage,
		ErrorKind:  preprocess.ErrorKind(job.ErrorKind),
		Error:      job.ErrorMessage,
		Options:    job.Config,
		Records:    job.Transformations,
		Validation: job.Validation,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if len(job.Summary) > 0 {
		if data, err := json.Marshal(job.Summary); err == nil {
			_ = json.Unmarshal(data, &snap.Summary)
		}
	}
	return snap
}
